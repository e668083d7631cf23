package tile_test

import (
	"errors"
	"image"
	"slices"
	"testing"

	"github.com/eak1mov/go-gridfetch/internal"
	"github.com/eak1mov/go-gridfetch/tile"
	"github.com/google/go-cmp/cmp"
)

type sliceVisitor struct {
	keys []tile.Key
	err  error // returned after all keys are visited
}

func (v *sliceVisitor) VisitTiles(visitor func(tile.Key, image.Image) error) error {
	for i, key := range v.keys {
		if err := visitor(key, internal.TestImage(2, 2, uint8(i))); err != nil {
			return err
		}
	}
	return v.err
}

var testKeys = []tile.Key{
	{Row: 0, Col: 0, Layer: "tulips_2016"},
	{Row: 0, Col: 1, Layer: "tulips_2016"},
	{Row: 1, Col: 0, Layer: "sat_2016_05_01"},
}

func TestIterTiles(t *testing.T) {
	visitor := &sliceVisitor{keys: testKeys}

	var got []tile.Key
	for key, img := range tile.IterTiles(visitor) {
		if img == nil {
			t.Errorf("IterTiles yielded nil image for %v", key)
		}
		got = append(got, key)
	}
	if diff := cmp.Diff(testKeys, got); diff != "" {
		t.Errorf("IterTiles keys mismatch (-want+got):\n%v", diff)
	}

	if diff := cmp.Diff(testKeys, slices.Collect(tile.IterKeys(visitor))); diff != "" {
		t.Errorf("IterKeys mismatch (-want+got):\n%v", diff)
	}
}

func TestIterTilesBreak(t *testing.T) {
	// stopping early must not surface the internal cancellation as a panic
	visitor := &sliceVisitor{keys: testKeys}
	for key := range tile.IterKeys(visitor) {
		if key != testKeys[0] {
			t.Errorf("IterKeys first key = %v, want = %v", key, testKeys[0])
		}
		break
	}
}

func TestIterTilesPanicsOnError(t *testing.T) {
	visitErr := errors.New("disk failure")
	visitor := &sliceVisitor{keys: testKeys, err: visitErr}

	visited := 0
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, visitErr) {
			t.Errorf("IterTiles panic = %v, want = %v", r, visitErr)
		}
		if visited != len(testKeys) {
			t.Errorf("visited %v tiles before the error, want = %v", visited, len(testKeys))
		}
	}()

	for range tile.IterTiles(visitor) {
		visited++
	}
	t.Errorf("IterTiles did not panic")
}
