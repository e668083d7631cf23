// Package tile provides common tile sink and source interfaces and types.
package tile

import (
	"cmp"
	"fmt"
	"image"
)

// Key identifies one saved raster: a grid cell and the label of the layer fetched for it.
// Labels of time-dependent layers carry the date (e.g. "sat_2016_05_01"),
// so a Key is unique per row, column, layer and date.
type Key struct {
	Row   int
	Col   int
	Layer string
}

func (k Key) String() string {
	return fmt.Sprintf("%d_%d_%s", k.Row, k.Col, k.Layer)
}

// Compare orders keys by layer, then row, then column.
func Compare(a, b Key) int {
	return cmp.Or(
		cmp.Compare(a.Layer, b.Layer),
		cmp.Compare(a.Row, b.Row),
		cmp.Compare(a.Col, b.Col),
	)
}

// Writer defines an interface for saving tile rasters.
type Writer interface {
	// WriteTile saves a single raster, replacing any previous one with the same key.
	WriteTile(key Key, img image.Image) error

	// Finalize completes the writing process: flushes buffers, writes indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single raster.
	// If the tile does not exist, it returns a nil image with no error.
	ReadTile(key Key) (image.Image, error)
}

type Visitor interface {
	// VisitTiles visits all saved tiles, calling the visitor for each.
	// It returns an error if visiting fails.
	// Order of tiles is implementation-defined.
	VisitTiles(visitor func(Key, image.Image) error) error
}

// Checker reports whether a tile is already saved, without decoding it.
type Checker interface {
	HasTile(key Key) (bool, error)
}
