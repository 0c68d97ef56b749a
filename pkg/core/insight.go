package core

import "sync"

// InsightLevel grades an insight.
type InsightLevel int

const (
	InsightNone InsightLevel = iota
	InsightInfo
	InsightWarning
)

func (l InsightLevel) String() string {
	switch l {
	case InsightInfo:
		return "info"
	case InsightWarning:
		return "warning"
	default:
		return "none"
	}
}

// Insight is a user-facing hint attached to the running command.
type Insight struct {
	Message string
	Level   InsightLevel
}

// Insights is a publish/subscribe channel for insights.
type Insights interface {
	Report(Insight)
	// OnInsightsUpdated registers a listener and returns its unregister func.
	OnInsightsUpdated(func(Insight)) func()
}

// InsightsHub is the default Insights implementation. Safe for concurrent use.
type InsightsHub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Insight)
}

// NewInsightsHub creates an empty hub.
func NewInsightsHub() *InsightsHub {
	return &InsightsHub{listeners: make(map[int]func(Insight))}
}

// Report delivers the insight to every registered listener.
func (h *InsightsHub) Report(in Insight) {
	h.mu.Lock()
	fns := make([]func(Insight), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(in)
	}
}

// OnInsightsUpdated implements Insights.
func (h *InsightsHub) OnInsightsUpdated(fn func(Insight)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}
