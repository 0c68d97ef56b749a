// Package report records flow runs and writes them as JSON.
//
// Layout of a report directory:
//   - report.json: suite summary, rewritten on every flow status change
//   - flows/flow-NNN.json: full command results of one flow
//
// Flows run concurrently; all writes to report.json go through Writer.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// progressDelay debounces progress-only writes of report.json.
const progressDelay = 100 * time.Millisecond

// Writer provides thread-safe updates to a suite report on disk.
type Writer struct {
	mu    sync.Mutex
	dir   string
	suite core.SuiteResult
	timer *time.Timer
}

// BuildSkeleton lists every flow as pending before the run starts.
func BuildSkeleton(runID string, flows []*flow.Flow) core.SuiteResult {
	suite := core.SuiteResult{RunID: runID, Flows: make([]core.FlowResult, len(flows))}
	for i, f := range flows {
		suite.Flows[i] = core.FlowResult{
			Name:     f.Name(),
			FilePath: f.SourcePath,
			Tags:     f.Config.Tags,
			Status:   core.StatusPending,
		}
	}
	suite.ComputeSummary()
	return suite
}

// NewWriter creates the report directory and writes the skeleton.
func NewWriter(dir, runID string, flows []*flow.Flow) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, "flows"), 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	w := &Writer{dir: dir, suite: BuildSkeleton(runID, flows)}
	w.suite.StartTime = time.Now()
	if err := w.flushLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Dir returns the report directory.
func (w *Writer) Dir() string { return w.dir }

// FlowFile returns the detail file of flow i, relative to Dir.
func FlowFile(i int) string {
	return filepath.Join("flows", fmt.Sprintf("flow-%03d.json", i))
}

// Progress marks flow i as running. Writes are debounced.
func (w *Writer) Progress(i int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.suite.Flows) {
		return
	}
	w.suite.Flows[i].Status = core.StatusRunning
	if w.timer == nil {
		w.timer = time.AfterFunc(progressDelay, func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if err := w.flushLocked(); err != nil {
				logger.Warn("report: %v", err)
			}
		})
	}
}

// FlowDone stores the final result of flow i and flushes immediately.
func (w *Writer) FlowDone(i int, result core.FlowResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.suite.Flows) {
		return fmt.Errorf("flow index %d out of range", i)
	}
	if err := atomicWriteJSON(filepath.Join(w.dir, FlowFile(i)), result); err != nil {
		return err
	}
	w.suite.Flows[i] = result
	return w.flushLocked()
}

// End stamps the duration, writes the final report and returns it.
func (w *Writer) End() (core.SuiteResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.suite.Duration = time.Since(w.suite.StartTime)
	err := w.flushLocked()

	out := w.suite
	out.Flows = append([]core.FlowResult(nil), w.suite.Flows...)
	return out, err
}

// flushLocked writes report.json while holding the lock.
func (w *Writer) flushLocked() error {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.suite.ComputeSummary()

	// Commands live in the per-flow files.
	summary := w.suite
	summary.Flows = make([]core.FlowResult, len(w.suite.Flows))
	for i, f := range w.suite.Flows {
		f.Commands = nil
		summary.Flows[i] = f
	}
	return atomicWriteJSON(filepath.Join(w.dir, "report.json"), summary)
}

// atomicWriteJSON writes v to a temp file and renames it over path.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// ReadSuite loads report.json from dir.
func ReadSuite(dir string) (*core.SuiteResult, error) {
	var s core.SuiteResult
	if err := readJSON(filepath.Join(dir, "report.json"), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadFlow loads the detail file of flow i from dir.
func ReadFlow(dir string, i int) (*core.FlowResult, error) {
	var f core.FlowResult
	if err := readJSON(filepath.Join(dir, FlowFile(i)), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) //#nosec G304 -- report directory chosen by the user
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
