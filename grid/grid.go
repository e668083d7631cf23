// Package grid walks a projected bounding box in fixed-size steps,
// producing one tile bounding box per step.
package grid

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"github.com/paulmach/orb"
)

var ErrInvalidGrid = errors.New("gridfetch: invalid grid")

// MaxTiles bounds the tile count of a grid.
const MaxTiles = math.MaxInt32

// Size is a tile extent in projected units (meters for EPSG:3857).
type Size struct {
	Width  float64
	Height float64
}

// Tile is a single grid cell. Row counts steps north and Col counts steps east
// from the grid origin (the bottom-left corner of the region).
type Tile struct {
	Row   int
	Col   int
	Bound orb.Bound
}

// Grid describes a tiling of a region; it holds no walk state.
type Grid struct {
	region  orb.Bound
	step    Size
	partial bool
	rows    int
	cols    int
}

type Option func(*Grid)

// WithPartial covers the far edges of the region with full-size tiles
// that overhang the region instead of dropping the remainder.
func WithPartial() Option {
	return func(g *Grid) { g.partial = true }
}

// New creates a Grid over region with the given step.
//
// By default the tile counts are truncated, so a strip narrower than a step
// along the east and north edges is left uncovered (see Remainder).
func New(region orb.Bound, step Size, opts ...Option) (*Grid, error) {
	g := &Grid{region: region, step: step}
	for _, opt := range opts {
		opt(g)
	}

	if !(step.Width > 0) || !(step.Height > 0) || math.IsInf(step.Width, 0) || math.IsInf(step.Height, 0) {
		return nil, fmt.Errorf("%w: step %vx%v must be positive", ErrInvalidGrid, step.Width, step.Height)
	}
	for _, v := range []float64{region.Min.X(), region.Min.Y(), region.Max.X(), region.Max.Y()} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: region %v is not finite", ErrInvalidGrid, region)
		}
	}
	if region.Min.X() >= region.Max.X() || region.Min.Y() >= region.Max.Y() {
		return nil, fmt.Errorf("%w: region min %v is not below max %v", ErrInvalidGrid, region.Min, region.Max)
	}

	round := math.Floor
	if g.partial {
		round = math.Ceil
	}
	rows := round((region.Max.Y() - region.Min.Y()) / step.Height)
	cols := round((region.Max.X() - region.Min.X()) / step.Width)
	if rows > MaxTiles || cols > MaxTiles || rows*cols > MaxTiles {
		return nil, fmt.Errorf("%w: %v rows by %v cols exceeds %d tiles", ErrInvalidGrid, rows, cols, MaxTiles)
	}
	g.rows, g.cols = int(rows), int(cols)

	return g, nil
}

func (g *Grid) Region() orb.Bound { return g.region }
func (g *Grid) Step() Size        { return g.step }
func (g *Grid) Rows() int         { return g.rows }
func (g *Grid) Cols() int         { return g.cols }
func (g *Grid) Count() int        { return g.rows * g.cols }

// Tile returns the cell at the given row and column.
// The bound is computed from the origin, so neighbouring tiles share edges exactly.
func (g *Grid) Tile(row, col int) Tile {
	minX := g.region.Min.X() + float64(col)*g.step.Width
	minY := g.region.Min.Y() + float64(row)*g.step.Height
	maxX := g.region.Min.X() + float64(col+1)*g.step.Width
	maxY := g.region.Min.Y() + float64(row+1)*g.step.Height
	return Tile{
		Row:   row,
		Col:   col,
		Bound: orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}},
	}
}

// Tiles returns the tiles row by row from south to north,
// each row from west to east.
func (g *Grid) Tiles() iter.Seq[Tile] {
	return func(yield func(Tile) bool) {
		for row := range g.rows {
			for col := range g.cols {
				if !yield(g.Tile(row, col)) {
					return
				}
			}
		}
	}
}

// Coverage returns the area actually covered by the tiles.
// It is empty (Min == Max) when the region is smaller than a single step.
func (g *Grid) Coverage() orb.Bound {
	if g.Count() == 0 {
		return orb.Bound{Min: g.region.Min, Max: g.region.Min}
	}
	return orb.Bound{
		Min: g.region.Min,
		Max: g.Tile(g.rows-1, g.cols-1).Bound.Max,
	}
}

// Remainder returns the width of the uncovered strip along the east edge
// and the height of the one along the north edge.
// Both are zero when the grid covers the region.
func (g *Grid) Remainder() Size {
	coverage := g.Coverage()
	return Size{
		Width:  math.Max(0, g.region.Max.X()-coverage.Max.X()),
		Height: math.Max(0, g.region.Max.Y()-coverage.Max.Y()),
	}
}

// AbsoluteIndex returns the row and column of t counted from the projection origin
// rather than the grid origin. Grids with the same step and origin-aligned regions
// produce matching indices for the same area.
// Indices are floored, so tiles west of Greenwich or south of the equator get
// negative indices starting at -1 rather than sharing index 0 with their neighbours.
func (g *Grid) AbsoluteIndex(t Tile) (row, col int) {
	row = int(math.Floor(t.Bound.Min.Y()/g.step.Height + 1e-9))
	col = int(math.Floor(t.Bound.Min.X()/g.step.Width + 1e-9))
	return row, col
}
