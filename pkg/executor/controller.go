package executor

import (
	"context"
	"sync"
)

// FlowController pauses and resumes dispatch between commands.
type FlowController struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewFlowController returns a running controller.
func NewFlowController() *FlowController {
	return &FlowController{}
}

// Pause makes WaitIfPaused block. Pausing twice is a no-op.
func (c *FlowController) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.resume = make(chan struct{})
}

// Resume releases every waiter.
func (c *FlowController) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	close(c.resume)
}

// IsPaused reports whether the controller is paused.
func (c *FlowController) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// WaitIfPaused blocks until resumed or ctx is done.
func (c *FlowController) WaitIfPaused(ctx context.Context) error {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return nil
	}
	ch := c.resume
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
