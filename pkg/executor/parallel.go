package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// Shard ports are claimed from this range.
const (
	shardPortFirst = 7001
	shardPortLast  = 7999
)

// DeviceWorker represents a single device worker that pulls from the queue.
type DeviceWorker struct {
	DeviceID string
	Driver   core.Driver
	Cleanup  func()
}

// Shard identifies the worker a flow ran on.
type Shard struct {
	Index    int
	ID       string
	DeviceID string
	Port     int
}

// FlowOutcome is the result of one flow run.
type FlowOutcome struct {
	Flow     *flow.Flow
	Index    int
	Shard    Shard
	Success  bool
	Err      error
	Duration time.Duration
}

// ShardConfig configures a ShardRunner.
type ShardConfig struct {
	// Options is the template for every Orchestra. Env is merged with the
	// per-flow defaults.
	Options Options
	// Callbacks returns the observers for one flow run. May be nil.
	Callbacks func(shard Shard, f *flow.Flow) Callbacks
	// OnFlowEnd is called after each flow, from the worker's goroutine.
	OnFlowEnd func(FlowOutcome)
}

// workItem represents a flow and its index in the original flow list.
type workItem struct {
	flow  *flow.Flow
	index int
}

// ShardRunner runs flows across device workers. Every worker pulls from the
// same queue and runs one flow at a time on its own Orchestra.
type ShardRunner struct {
	workers []DeviceWorker
	config  ShardConfig
	runID   string
}

// NewShardRunner creates a runner with one shard per worker.
func NewShardRunner(workers []DeviceWorker, config ShardConfig) *ShardRunner {
	return &ShardRunner{
		workers: workers,
		config:  config,
		runID:   uuid.NewString(),
	}
}

// RunID identifies this run.
func (r *ShardRunner) RunID() string { return r.runID }

// Run executes flows until the queue is drained. Outcomes are returned in
// input order; a flow never picked up has a zero outcome.
func (r *ShardRunner) Run(ctx context.Context, flows []*flow.Flow) ([]FlowOutcome, error) {
	if len(r.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}

	queue := make(chan workItem, len(flows))
	for i, f := range flows {
		queue <- workItem{flow: f, index: i}
	}
	close(queue)

	results := make([]FlowOutcome, len(flows))
	g, gctx := errgroup.WithContext(ctx)

	for i := range r.workers {
		index, worker := i, r.workers[i]
		g.Go(func() error {
			if worker.Cleanup != nil {
				defer worker.Cleanup()
			}

			shard := Shard{Index: index, ID: uuid.NewString(), DeviceID: worker.DeviceID}
			port, err := Ports.ClaimFree(shardPortFirst, shardPortLast, shard.ID)
			if err != nil {
				return fmt.Errorf("shard %d: %w", index, err)
			}
			defer Ports.Release(port)
			shard.Port = port
			logger.Info("shard %d started: device %s, port %d", index, worker.DeviceID, port)

			// Each index is written by exactly one worker.
			for item := range queue {
				results[item.index] = r.runFlow(gctx, shard, worker, item)
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func (r *ShardRunner) runFlow(ctx context.Context, shard Shard, worker DeviceWorker, item workItem) FlowOutcome {
	opts := r.config.Options
	opts.Env = FlowEnv(r.config.Options.Env, shard, item.flow)

	var cb Callbacks
	if r.config.Callbacks != nil {
		cb = r.config.Callbacks(shard, item.flow)
	}

	o := New(worker.Driver, cb, opts)
	defer o.Close()

	log := logger.With("shard", shard.Index)
	log.Infof("running %s", item.flow.Name())
	start := time.Now()
	ok, err := o.RunFlow(ctx, item.flow.Commands)
	outcome := FlowOutcome{
		Flow:     item.flow,
		Index:    item.index,
		Shard:    shard,
		Success:  ok && err == nil,
		Err:      err,
		Duration: time.Since(start),
	}
	if err != nil {
		log.Errorf("%s failed: %v", item.flow.Name(), err)
	}

	if r.config.OnFlowEnd != nil {
		r.config.OnFlowEnd(outcome)
	}
	return outcome
}
