package models

import (
	"fmt"
	"path/filepath"
	"time"
)

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
)

func (ft FileType) String() string {
	return string(ft)
}

// IsValid checks if the file type is known
func (ft FileType) IsValid() bool {
	switch ft {
	case FileTypeImage, FileTypeVideo:
		return true
	default:
		return false
	}
}

// Extension returns the file extension used for the type.
func (ft FileType) Extension() string {
	if ft == FileTypeImage {
		return "jpeg"
	}
	return "mp4"
}

// OutputRecord describes a finished file waiting for upload. Timestamp is
// the UTC time of the first frame of the segment the file belongs to.
type OutputRecord struct {
	SegmentID string    `json:"segment_id"`
	CameraID  string    `json:"camera_id"`
	FileType  FileType  `json:"file_type"`
	FilePath  string    `json:"file_path"`
	Timestamp time.Time `json:"timestamp"`
}

// ObjectKey is <file_type>/<YYYY>/<MM>/<DD>/<basename>.
func (r OutputRecord) ObjectKey() string {
	ts := r.Timestamp.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s", r.FileType, ts.Year(), int(ts.Month()), ts.Day(), filepath.Base(r.FilePath))
}

// FileName builds <camera>_<YYYY-MM-DDTHHMMSS>.<ext> for a segment starting at ts.
func FileName(cameraID string, ts time.Time, ft FileType) string {
	return fmt.Sprintf("%s_%s.%s", cameraID, ts.UTC().Format("2006-01-02T150405"), ft.Extension())
}
