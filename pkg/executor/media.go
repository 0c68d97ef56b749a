package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// artifactPath places name under the screenshots directory with ext.
func (o *Orchestra) artifactPath(name, ext string) (string, error) {
	if !strings.HasSuffix(name, ext) {
		name += ext
	}
	path := name
	if !filepath.IsAbs(path) && o.opts.ScreenshotsDir != "" {
		path = filepath.Join(o.opts.ScreenshotsDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", core.ErrDestinationNotWritable.WithMessagef("cannot create %s", filepath.Dir(path)).WithCause(err)
	}
	return path, nil
}

func (o *Orchestra) takeScreenshot(ctx context.Context, raw flow.Command, name string) error {
	path, err := o.artifactPath(name, ".png")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return core.ErrDestinationNotWritable.WithMessagef("cannot write %s", path).WithCause(err)
	}
	defer f.Close()

	if err := o.driver.TakeScreenshot(ctx, f, false); err != nil {
		return fmt.Errorf("take screenshot: %w", err)
	}
	logger.Debug("screenshot saved to %s", path)
	o.attach(raw, core.NewScreenshotAttachment(path))
	return nil
}

// startRecording replaces any recording already in progress.
func (o *Orchestra) startRecording(ctx context.Context, raw flow.Command, name string) error {
	o.closeRecording()

	path, err := o.artifactPath(name, ".mp4")
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return core.ErrDestinationNotWritable.WithMessagef("cannot write %s", path).WithCause(err)
	}

	rec, err := o.driver.StartScreenRecording(ctx, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("start screen recording: %w", err)
	}

	o.mu.Lock()
	o.recording, o.recordingFile = rec, f
	o.mu.Unlock()
	logger.Debug("recording to %s", path)
	o.attach(raw, core.NewRecordingAttachment(path))
	return nil
}

// attach records a produced file on the metadata of raw. A nil raw is a
// direct call outside dispatch.
func (o *Orchestra) attach(raw flow.Command, a core.Attachment) {
	if raw == nil {
		return
	}
	o.metadata.update(raw, func(md *CommandMetadata) {
		md.Attachments = append(md.Attachments, a)
	})
}
