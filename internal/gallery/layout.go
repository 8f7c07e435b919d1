package gallery

// Geometry collects the sizes a layout is built against.
type Geometry struct {
	ContainerWidth  float64 `json:"container_width"`
	TargetRowHeight float64 `json:"target_row_height"`
	Gap             float64 `json:"gap"`
	GridCell        float64 `json:"grid_cell"`
}

// Layout is a fully positioned arrangement of images.
type Layout struct {
	Mode           Mode    `json:"mode"`
	ContainerWidth float64 `json:"container_width"`
	Rows           []Row   `json:"rows"`
	// Tops holds each row's top edge followed by the total height.
	Tops    []float64               `json:"-"`
	Height  float64                 `json:"height"`
	Skipped []*DegenerateImageError `json:"-"`
}

// Build lays images out in the given mode. A zero container width yields an
// empty layout.
func Build(mode Mode, images []ImageRecord, g Geometry) Layout {
	l := Layout{Mode: mode, ContainerWidth: g.ContainerWidth}
	if g.ContainerWidth <= 0 {
		l.Tops = []float64{0}
		return l
	}

	switch mode {
	case ModeGrid:
		l.Rows = gridRows(ArrangeGrid(images), g)
	default:
		p := Pack(images, PackOptions{
			ContainerWidth:  g.ContainerWidth,
			TargetRowHeight: g.TargetRowHeight,
			Gap:             g.Gap,
		})
		l.Rows, l.Skipped = p.Rows, p.Skipped
	}

	l.Tops = make([]float64, len(l.Rows)+1)
	var y float64
	for i, r := range l.Rows {
		l.Tops[i] = y
		y += r.Height
		if i < len(l.Rows)-1 {
			y += g.Gap
		}
	}
	l.Tops[len(l.Rows)] = y
	l.Height = y
	return l
}

// Window returns the rows intersecting the viewport, widened by overscan.
func (l Layout) Window(scrollOffset, viewportHeight float64, overscan int) VisibleRange {
	var r VisibleRange
	if l.Mode == ModeGrid && len(l.Rows) > 0 {
		r = VisibleRows(scrollOffset, viewportHeight, l.Rows[0].Height+l.Rows[0].Gap, len(l.Rows))
	} else {
		r = VisibleRowsByOffset(scrollOffset, viewportHeight, l.Tops)
	}
	return r.Expand(overscan, len(l.Rows))
}

func gridRows(images []ImageRecord, g Geometry) []Row {
	cols := GridColumns(g.ContainerWidth, g.GridCell, g.Gap)
	if cols == 0 || len(images) == 0 {
		return nil
	}
	cell := g.GridCell
	if cell <= 0 || cell > g.ContainerWidth {
		cell = g.ContainerWidth
	}

	rows := make([]Row, 0, (len(images)+cols-1)/cols)
	for start := 0; start < len(images); start += cols {
		end := min(start+cols, len(images))
		row := Row{Height: cell, Gap: g.Gap, Tiles: make([]Tile, 0, end-start)}
		for _, img := range images[start:end] {
			row.Tiles = append(row.Tiles, Tile{Image: img, Width: cell})
		}
		rows = append(rows, row)
	}
	return rows
}
