package report

import (
	"errors"
	"sync"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/executor"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

// Recorder turns lifecycle callbacks of one flow run into a core.FlowResult.
// Every start appends a command entry, so repeated and retried bodies show
// one entry per run. Nesting depth follows the stack of open commands.
type Recorder struct {
	mu      sync.Mutex
	result  core.FlowResult
	open    []openCommand
	pending map[flow.Command]executor.CommandMetadata

	// Resolve decides how failures are handled. Nil means ResolutionFail.
	Resolve func(cmd flow.Command, err error) executor.ErrorResolution
	// OnUpdate is called after every recorded change, outside the lock.
	OnUpdate func(core.CommandResult)
}

type openCommand struct {
	cmd   flow.Command
	entry int
}

// NewRecorder creates a recorder for f. shardID may be empty.
func NewRecorder(f *flow.Flow, shardID string) *Recorder {
	r := &Recorder{pending: make(map[flow.Command]executor.CommandMetadata)}
	r.result.Status = core.StatusPending
	r.result.ShardID = shardID
	if f != nil {
		r.result.Name = f.Name()
		r.result.FilePath = f.SourcePath
		r.result.Tags = f.Config.Tags
	}
	return r
}

// SetPlatformInfo stores the device the flow ran on.
func (r *Recorder) SetPlatformInfo(info *core.PlatformInfo) {
	r.mu.Lock()
	r.result.PlatformInfo = info
	r.mu.Unlock()
}

// Callbacks returns the observers to pass to the executor.
func (r *Recorder) Callbacks() executor.Callbacks {
	return executor.Callbacks{
		OnFlowStart: func([]flow.Command) {
			r.mu.Lock()
			r.result.Status = core.StatusRunning
			r.result.StartTime = time.Now()
			r.mu.Unlock()
		},
		OnCommandStart: func(_ int, cmd flow.Command) { r.start(cmd) },
		OnCommandComplete: func(_ int, cmd flow.Command) {
			r.finish(cmd, core.StatusCompleted, nil)
		},
		OnCommandWarned: func(_ int, cmd flow.Command) {
			r.finish(cmd, core.StatusWarned, nil)
		},
		OnCommandSkipped: func(_ int, cmd flow.Command) {
			r.finish(cmd, core.StatusSkipped, nil)
		},
		OnCommandFailed: func(_ int, cmd flow.Command, err error) executor.ErrorResolution {
			r.finish(cmd, core.StatusFailed, err)
			if r.Resolve != nil {
				return r.Resolve(cmd, err)
			}
			return executor.ResolutionFail
		},
		OnCommandMetadataUpdate: r.metadata,
		OnCommandGeneratedOutput: func(cmd flow.Command, defects []core.Defect, screen []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if e := r.entry(cmd); e != nil && len(defects) > 0 {
				e.AIReasoning = defects[0].Reasoning
			}
		},
	}
}

func (r *Recorder) start(cmd flow.Command) {
	r.mu.Lock()
	r.result.Commands = append(r.result.Commands, core.CommandResult{
		Description: flow.Description(cmd),
		Depth:       len(r.open),
		Status:      core.StatusRunning,
		StartTime:   time.Now(),
	})
	idx := len(r.result.Commands) - 1
	r.open = append(r.open, openCommand{cmd: cmd, entry: idx})
	if md, ok := r.pending[cmd]; ok {
		applyMetadata(&r.result.Commands[idx], md)
		delete(r.pending, cmd)
	}
	snapshot := r.result.Commands[idx]
	r.mu.Unlock()
	r.notify(snapshot)
}

func (r *Recorder) finish(cmd flow.Command, status core.CommandStatus, err error) {
	r.mu.Lock()
	e := r.entry(cmd)
	if e == nil {
		// Skipped before it started.
		r.result.Commands = append(r.result.Commands, core.CommandResult{
			Description: flow.Description(cmd),
			Depth:       len(r.open),
			StartTime:   time.Now(),
		})
		e = &r.result.Commands[len(r.result.Commands)-1]
		delete(r.pending, cmd)
	} else {
		r.close(cmd)
	}

	e.Status = status
	if e.Duration == 0 {
		e.Duration = time.Since(e.StartTime)
	}
	if err != nil {
		e.Error = err.Error()
		var ee *core.ExecutionError
		if errors.As(err, &ee) {
			e.Category = ee.Category
			e.DebugMessage = ee.DebugMessage
		}
	}
	snapshot := *e
	r.mu.Unlock()
	r.notify(snapshot)
}

func (r *Recorder) metadata(cmd flow.Command, md executor.CommandMetadata) {
	r.mu.Lock()
	e := r.entry(cmd)
	if e == nil {
		// Evaluation is reported before the command starts.
		r.pending[cmd] = md
		r.mu.Unlock()
		return
	}
	applyMetadata(e, md)
	snapshot := *e
	r.mu.Unlock()
	r.notify(snapshot)
}

func applyMetadata(e *core.CommandResult, md executor.CommandMetadata) {
	if md.EvaluatedCommand != nil {
		e.Description = flow.Description(md.EvaluatedCommand)
	}
	if md.LabeledCommand != "" {
		e.Description = md.LabeledCommand
	}
	if md.NumberOfRuns != nil {
		n := *md.NumberOfRuns
		e.NumberOfRuns = &n
	}
	if md.Insight != nil {
		in := *md.Insight
		e.Insight = &in
	}
	if md.AIReasoning != "" {
		e.AIReasoning = md.AIReasoning
	}
	if md.Duration > 0 {
		e.Duration = md.Duration
	}
	e.Logs = append([]string(nil), md.LogMessages...)
	if len(md.Attachments) > 0 {
		e.Attachments = append([]core.Attachment(nil), md.Attachments...)
	}
}

// entry returns the innermost open entry for cmd. Callers hold mu.
func (r *Recorder) entry(cmd flow.Command) *core.CommandResult {
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i].cmd == cmd {
			return &r.result.Commands[r.open[i].entry]
		}
	}
	return nil
}

// close pops cmd and anything opened after it. Callers hold mu.
func (r *Recorder) close(cmd flow.Command) {
	for i := len(r.open) - 1; i >= 0; i-- {
		if r.open[i].cmd == cmd {
			r.open = r.open[:i]
			return
		}
	}
}

func (r *Recorder) notify(c core.CommandResult) {
	if r.OnUpdate != nil {
		r.OnUpdate(c)
	}
}

// Finish sets the flow status from the run's outcome and returns the result.
func (r *Recorder) Finish(ok bool, err error) core.FlowResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.result.StartTime.IsZero() {
		r.result.Duration = time.Since(r.result.StartTime)
	}
	r.result.ComputeSummary()

	switch {
	case err != nil:
		r.result.Status = core.StatusFailed
		r.result.Error = err.Error()
	case !ok:
		r.result.Status = core.StatusFailed
		r.result.Error = r.firstFailure()
	case r.result.WarnedCommands > 0:
		r.result.Status = core.StatusWarned
	default:
		r.result.Status = core.StatusCompleted
	}

	out := r.result
	out.Commands = append([]core.CommandResult(nil), r.result.Commands...)
	return out
}

func (r *Recorder) firstFailure() string {
	for _, c := range r.result.Commands {
		if c.Status == core.StatusFailed {
			return c.Error
		}
	}
	return ""
}
