package gallery

import "slices"

// ArrangeGrid returns the images in grid order. The grid makes no packing
// decisions; cell geometry is applied when the layout is built.
func ArrangeGrid(images []ImageRecord) []ImageRecord {
	return slices.Clone(images)
}

// GridColumns returns how many cells of the given size fit across width.
// At least one column is returned for a positive width.
func GridColumns(width, cell, gap float64) int {
	if width <= 0 {
		return 0
	}
	if cell <= 0 {
		return 1
	}
	n := int((width + gap) / (cell + gap))
	return max(n, 1)
}
