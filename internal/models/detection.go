package models

import "fmt"

// Detection is a labeled, scored box in full-frame coordinates.
type Detection struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        Rectangle `json:"box"`
}

func (d Detection) String() string {
	return fmt.Sprintf("%s: %.0f%%", d.Label, d.Confidence*100)
}

// AnnotatedFrame pairs a frame with the detections found in it.
type AnnotatedFrame struct {
	Frame      *Frame
	Detections []Detection
}

func (a *AnnotatedFrame) HasDetections() bool {
	return len(a.Detections) > 0
}
