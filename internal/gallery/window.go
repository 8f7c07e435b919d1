package gallery

import (
	"math"
	"sort"
)

// VisibleRange is a half-open interval [Start, End) of row indices.
type VisibleRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of rows in the range.
func (r VisibleRange) Len() int {
	return r.End - r.Start
}

// Contains reports whether row i lies inside the range.
func (r VisibleRange) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Expand widens the range by n rows on each side, clamped to [0, total].
func (r VisibleRange) Expand(n, total int) VisibleRange {
	if n <= 0 || r.Len() == 0 {
		return r
	}
	return clampRange(float64(r.Start-n), float64(r.End+n), total)
}

// VisibleRows returns the rows of a fixed-height list that intersect the
// viewport: start = floor(scroll/rowHeight), end = ceil((scroll+viewport)/rowHeight),
// clamped so every index lies in [0, totalRows). It has no side effects and
// may be called on every scroll or resize event.
func VisibleRows(scrollOffset, viewportHeight, rowHeight float64, totalRows int) VisibleRange {
	if totalRows <= 0 || !(rowHeight > 0) {
		return VisibleRange{}
	}
	scrollOffset = extent(scrollOffset)
	viewportHeight = extent(viewportHeight)

	start := math.Floor(scrollOffset / rowHeight)
	end := math.Ceil((scrollOffset + viewportHeight) / rowHeight)
	return clampRange(start, end, totalRows)
}

// VisibleRowsByOffset is VisibleRows for rows of varying height. tops holds
// the top edge of every row followed by the total height, so row i spans
// [tops[i], tops[i+1]).
func VisibleRowsByOffset(scrollOffset, viewportHeight float64, tops []float64) VisibleRange {
	total := len(tops) - 1
	if total <= 0 {
		return VisibleRange{}
	}
	scrollOffset = extent(scrollOffset)
	bottom := scrollOffset + extent(viewportHeight)

	start := sort.Search(total, func(i int) bool { return tops[i+1] > scrollOffset })
	end := sort.Search(total, func(i int) bool { return tops[i] >= bottom })
	return clampRange(float64(start), float64(end), total)
}

// extent maps negative and non-finite offsets or heights to 0.
func extent(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// clampRange keeps start in [0, total-1] and end in [start, total].
func clampRange(start, end float64, total int) VisibleRange {
	if total <= 0 || math.IsNaN(start) || math.IsNaN(end) {
		return VisibleRange{}
	}
	start = math.Min(math.Max(start, 0), float64(total-1))
	end = math.Min(math.Max(end, start), float64(total))
	return VisibleRange{Start: int(start), End: int(end)}
}
