package tile

import (
	"errors"
	"image"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterTiles returns an iterator over all tiles of the visitor.
// It yields tile keys and their rasters. Iteration may panic on unrecoverable errors.
func IterTiles(r Visitor) iter.Seq2[Key, image.Image] {
	return func(yield func(Key, image.Image) bool) {
		err := r.VisitTiles(func(key Key, img image.Image) error {
			if !yield(key, img) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// IterKeys is IterTiles without the rasters.
func IterKeys(r Visitor) iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for key := range IterTiles(r) {
			if !yield(key) {
				return
			}
		}
	}
}
