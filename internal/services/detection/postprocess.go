package detection

import "nvr-worker-go/internal/models"

// FilterConfidence drops detections scoring below threshold.
func FilterConfidence(detections []models.Detection, threshold float32) []models.Detection {
	out := detections[:0:0]
	for _, d := range detections {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// Remap translates region-relative boxes into frame coordinates.
func Remap(detections []models.Detection, region models.Rectangle) []models.Detection {
	out := make([]models.Detection, len(detections))
	for i, d := range detections {
		d.Box = d.Box.Offset(region.X1, region.Y1)
		out[i] = d
	}
	return out
}

// FilterClasses keeps detections whose label is allowed.
func FilterClasses(detections []models.Detection, allowed map[string]bool) []models.Detection {
	out := detections[:0:0]
	for _, d := range detections {
		if allowed[d.Label] {
			out = append(out, d)
		}
	}
	return out
}

// Merge folds same-label detections that overlap by more than ratio of
// the smaller box into one detection spanning all of them, carrying the
// highest confidence of the group.
func Merge(detections []models.Detection, ratio float64) []models.Detection {
	var labels []string
	byLabel := make(map[string][]models.Detection)
	for _, d := range detections {
		if _, seen := byLabel[d.Label]; !seen {
			labels = append(labels, d.Label)
		}
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}

	merged := make([]models.Detection, 0, len(detections))
	for _, label := range labels {
		group := byLabel[label]
		boxes := make([]models.Rectangle, len(group))
		for i, d := range group {
			boxes[i] = d.Box
		}

		for _, members := range models.GroupRectangles(boxes, ratio) {
			out := group[members[0]]
			for _, idx := range members[1:] {
				out.Box = out.Box.Union(group[idx].Box)
				out.Confidence = max(out.Confidence, group[idx].Confidence)
			}
			merged = append(merged, out)
		}
	}
	return merged
}
