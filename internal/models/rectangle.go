package models

import "sort"

// Rectangle is an axis-aligned box in pixel coordinates, X2/Y2 exclusive.
type Rectangle struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func NewRectangle(x1, y1, x2, y2 int) Rectangle {
	return Rectangle{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (r Rectangle) Width() int  { return r.X2 - r.X1 }
func (r Rectangle) Height() int { return r.Y2 - r.Y1 }

func (r Rectangle) Area() int {
	if r.Width() <= 0 || r.Height() <= 0 {
		return 0
	}
	return r.Width() * r.Height()
}

// OverlapArea returns the area of the intersection, 0 when disjoint.
func (r Rectangle) OverlapArea(o Rectangle) int {
	dx := min(r.X2, o.X2) - max(r.X1, o.X1)
	dy := min(r.Y2, o.Y2) - max(r.Y1, o.Y1)
	if dx <= 0 || dy <= 0 {
		return 0
	}
	return dx * dy
}

func (r Rectangle) Contains(o Rectangle) bool {
	return o.X1 >= r.X1 && o.Y1 >= r.Y1 && o.X2 <= r.X2 && o.Y2 <= r.Y2
}

// Union returns the smallest rectangle enclosing both.
func (r Rectangle) Union(o Rectangle) Rectangle {
	return Rectangle{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

// Offset translates the rectangle by (dx, dy).
func (r Rectangle) Offset(dx, dy int) Rectangle {
	return Rectangle{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Overlaps reports whether the intersection exceeds ratio of the smaller area.
func (r Rectangle) Overlaps(o Rectangle, ratio float64) bool {
	smaller := min(r.Area(), o.Area())
	if smaller == 0 {
		return false
	}
	return float64(r.OverlapArea(o)) > ratio*float64(smaller)
}

// GroupRectangles clusters rectangles greedily: each one joins the first
// group (smallest first) holding a member it overlaps by more than ratio of
// the smaller of the two areas, otherwise it starts a new group. The result
// holds indexes into rects.
func GroupRectangles(rects []Rectangle, ratio float64) [][]int {
	var groups [][]int
	for i, rect := range rects {
		joined := false
		for g, group := range groups {
			for _, idx := range group {
				if rect.Overlaps(rects[idx], ratio) {
					groups[g] = append(groups[g], i)
					joined = true
					break
				}
			}
			if joined {
				break
			}
		}
		if !joined {
			groups = append(groups, []int{i})
		}
		sort.SliceStable(groups, func(a, b int) bool { return len(groups[a]) < len(groups[b]) })
	}
	return groups
}

// MergeRectangles replaces every overlapping group by its enclosing box.
func MergeRectangles(rects []Rectangle, ratio float64) []Rectangle {
	groups := GroupRectangles(rects, ratio)
	out := make([]Rectangle, 0, len(groups))
	for _, group := range groups {
		merged := rects[group[0]]
		for _, idx := range group[1:] {
			merged = merged.Union(rects[idx])
		}
		out = append(out, merged)
	}
	return out
}
