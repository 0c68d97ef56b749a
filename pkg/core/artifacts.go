// Package core provides the execution model types shared by the engine:
// view-tree snapshots, the driver contract, errors, insights and results.
package core

// Attachment is a file produced while a command ran.
type Attachment struct {
	Name        string `json:"name"`        // screenshot or recording
	ContentType string `json:"contentType"` // MIME type
	Path        string `json:"path"`        // Absolute path on disk
}

// Attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentRecording  = "recording"
)

// Content types
const (
	ContentTypePNG = "image/png"
	ContentTypeMP4 = "video/mp4"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string) Attachment {
	return Attachment{Name: AttachmentScreenshot, ContentType: ContentTypePNG, Path: path}
}

// NewRecordingAttachment creates a screen-recording attachment
func NewRecordingAttachment(path string) Attachment {
	return Attachment{Name: AttachmentRecording, ContentType: ContentTypeMP4, Path: path}
}
