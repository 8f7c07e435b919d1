package gallery

import "math"

// PackOptions holds the numeric inputs of the row packer.
type PackOptions struct {
	ContainerWidth  float64
	TargetRowHeight float64
	// Gap is the horizontal space between adjacent tiles of a row.
	Gap float64
}

// Tile is one image placed in a row.
type Tile struct {
	Image ImageRecord `json:"image"`
	Width float64     `json:"width"`
}

// Row is a run of tiles sharing one height.
type Row struct {
	Tiles  []Tile  `json:"tiles"`
	Height float64 `json:"height"`
	Gap    float64 `json:"gap"`
	// Filled is true when tiles plus gaps span the whole container width.
	Filled bool `json:"filled"`
}

// Width returns the rendered width of the row including gaps.
func (r Row) Width() float64 {
	if len(r.Tiles) == 0 {
		return 0
	}
	w := float64(len(r.Tiles)-1) * r.Gap
	for _, t := range r.Tiles {
		w += t.Width
	}
	return w
}

// Packing is the result of Pack.
type Packing struct {
	Rows []Row
	// Skipped lists images excluded because of degenerate dimensions.
	Skipped []*DegenerateImageError
}

type candidate struct {
	image  ImageRecord
	aspect float64
}

// Pack arranges images into justified rows.
//
// Images are visited once, in order. Each image is estimated at
// TargetRowHeight; a row is closed when adding the next estimate would make
// it strictly wider than the container, so an exact fit stays on the row.
// Closed rows get the height that makes their tiles plus gaps span the
// container exactly. The trailing row is not stretched: it keeps
// min(TargetRowHeight, fill height). A packing with a single row is filled.
//
// A non-positive or non-finite ContainerWidth or TargetRowHeight, or no
// images, yields no rows. Pack is a pure function of its inputs.
func Pack(images []ImageRecord, opts PackOptions) Packing {
	var p Packing
	if !finitePositive(opts.ContainerWidth) || !finitePositive(opts.TargetRowHeight) || len(images) == 0 {
		return p
	}

	var (
		groups  [][]candidate
		current []candidate
		acc     float64
	)
	for _, img := range images {
		aspect, err := img.AspectRatio()
		if err != nil {
			p.Skipped = append(p.Skipped, err.(*DegenerateImageError))
			continue
		}
		estimated := opts.TargetRowHeight * aspect
		if acc+estimated > opts.ContainerWidth && len(current) > 0 {
			groups = append(groups, current)
			current = []candidate{{image: img, aspect: aspect}}
			acc = estimated
			continue
		}
		current = append(current, candidate{image: img, aspect: aspect})
		acc += estimated
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	p.Rows = make([]Row, 0, len(groups))
	for i, g := range groups {
		trailing := i == len(groups)-1 && len(groups) > 1
		p.Rows = append(p.Rows, justify(g, opts, trailing))
	}
	return p
}

func justify(g []candidate, opts PackOptions, trailing bool) Row {
	var sum float64
	for _, c := range g {
		sum += c.aspect
	}
	height := (opts.ContainerWidth - float64(len(g)-1)*opts.Gap) / sum
	if height < 0 {
		height = 0
	}
	filled := true
	if trailing && height > opts.TargetRowHeight {
		height = opts.TargetRowHeight
		filled = false
	}

	row := Row{Tiles: make([]Tile, len(g)), Height: height, Gap: opts.Gap, Filled: filled}
	for i, c := range g {
		row.Tiles[i] = Tile{Image: c.image, Width: height * c.aspect}
	}
	return row
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
