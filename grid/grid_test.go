package grid_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/eak1mov/go-gridfetch/geo"
	"github.com/eak1mov/go-gridfetch/grid"
	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func bound(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestFourTiles(t *testing.T) {
	g, err := grid.New(bound(0, 0, 3000, 3000), grid.Size{Width: 1500, Height: 1500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []grid.Tile{
		{Row: 0, Col: 0, Bound: bound(0, 0, 1500, 1500)},
		{Row: 0, Col: 1, Bound: bound(1500, 0, 3000, 1500)},
		{Row: 1, Col: 0, Bound: bound(0, 1500, 1500, 3000)},
		{Row: 1, Col: 1, Bound: bound(1500, 1500, 3000, 3000)},
	}
	if diff := cmp.Diff(want, slices.Collect(g.Tiles())); diff != "" {
		t.Errorf("Tiles() mismatch (-want+got):\n%v", diff)
	}
	if got, want := g.Count(), 4; got != want {
		t.Errorf("Count() = %v, want = %v", got, want)
	}
	if diff := cmp.Diff(grid.Size{}, g.Remainder()); diff != "" {
		t.Errorf("Remainder() mismatch (-want+got):\n%v", diff)
	}
}

func TestCount(t *testing.T) {
	for _, tc := range []struct {
		region orb.Bound
		step   grid.Size
		rows   int
		cols   int
	}{
		{bound(0, 0, 3000, 3000), grid.Size{Width: 1500, Height: 1500}, 2, 2},
		{bound(0, 0, 3999, 1000), grid.Size{Width: 1000, Height: 300}, 3, 3},
		{bound(-500, -500, 500, 500), grid.Size{Width: 100, Height: 250}, 4, 10},
		{bound(0, 0, 100, 100), grid.Size{Width: 1500, Height: 1500}, 0, 0},
		{bound(10, 20, 10010, 5020), grid.Size{Width: 1000, Height: 1000}, 5, 10},
	} {
		g, err := grid.New(tc.region, tc.step)
		if err != nil {
			t.Fatalf("New(%v, %v) failed: %v", tc.region, tc.step, err)
		}
		height := tc.region.Max.Y() - tc.region.Min.Y()
		width := tc.region.Max.X() - tc.region.Min.X()
		wantCount := int(math.Floor(height/tc.step.Height)) * int(math.Floor(width/tc.step.Width))

		if g.Rows() != tc.rows || g.Cols() != tc.cols {
			t.Errorf("New(%v, %v): rows, cols = %v, %v, want = %v, %v", tc.region, tc.step, g.Rows(), g.Cols(), tc.rows, tc.cols)
		}
		if got := g.Count(); got != wantCount {
			t.Errorf("New(%v, %v).Count() = %v, want = %v", tc.region, tc.step, got, wantCount)
		}
		if got := len(slices.Collect(g.Tiles())); got != wantCount {
			t.Errorf("New(%v, %v): %v tiles emitted, want = %v", tc.region, tc.step, got, wantCount)
		}
	}
}

func TestAdjacency(t *testing.T) {
	region, err := geo.ProjectBound(geo.LatLon{Lat: 51.976331, Lon: 4.019444}, geo.LatLon{Lat: 52.1, Lon: 4.2})
	if err != nil {
		t.Fatalf("ProjectBound failed: %v", err)
	}
	g, err := grid.New(region, grid.Size{Width: 1500, Height: 1500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var prev *grid.Tile
	for tile := range g.Tiles() {
		if prev != nil && prev.Row == tile.Row {
			if prev.Bound.Max.X() != tile.Bound.Min.X() {
				t.Errorf("tiles %v,%v and %v,%v do not share an edge: %v != %v",
					prev.Row, prev.Col, tile.Row, tile.Col, prev.Bound.Max.X(), tile.Bound.Min.X())
			}
			if prev.Bound.Min.Y() != tile.Bound.Min.Y() || prev.Bound.Max.Y() != tile.Bound.Max.Y() {
				t.Errorf("tiles %v,%v and %v,%v are not in one row", prev.Row, prev.Col, tile.Row, tile.Col)
			}
		}
		if tile.Row > 0 {
			below := g.Tile(tile.Row-1, tile.Col)
			if below.Bound.Max.Y() != tile.Bound.Min.Y() {
				t.Errorf("tile %v,%v does not share an edge with the tile below", tile.Row, tile.Col)
			}
		}
		if !region.Contains(tile.Bound.Max) {
			t.Errorf("tile %v,%v = %v exceeds region %v", tile.Row, tile.Col, tile.Bound, region)
		}
		prev = &tile
	}
}

func TestWalkOrder(t *testing.T) {
	g, err := grid.New(bound(0, 0, 3000, 4500), grid.Size{Width: 1000, Height: 1500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var got [][2]int
	for tile := range g.Tiles() {
		got = append(got, [2]int{tile.Row, tile.Col})
	}
	want := [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {2, 0}, {2, 1}, {2, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("walk order mismatch (-want+got):\n%v", diff)
	}
}

func TestEarlyStop(t *testing.T) {
	g, err := grid.New(bound(0, 0, 10000, 10000), grid.Size{Width: 100, Height: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	n := 0
	for range g.Tiles() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("visited %v tiles, want = 3", n)
	}
}

func TestTruncatedEdges(t *testing.T) {
	g, err := grid.New(bound(0, 0, 3700, 3200), grid.Size{Width: 1500, Height: 1500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if diff := cmp.Diff(bound(0, 0, 3000, 3000), g.Coverage()); diff != "" {
		t.Errorf("Coverage() mismatch (-want+got):\n%v", diff)
	}
	if diff := cmp.Diff(grid.Size{Width: 700, Height: 200}, g.Remainder()); diff != "" {
		t.Errorf("Remainder() mismatch (-want+got):\n%v", diff)
	}
}

func TestPartial(t *testing.T) {
	g, err := grid.New(bound(0, 0, 3700, 3200), grid.Size{Width: 1500, Height: 1500}, grid.WithPartial())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got, want := g.Count(), 9; got != want {
		t.Errorf("Count() = %v, want = %v", got, want)
	}
	if diff := cmp.Diff(bound(0, 0, 4500, 4500), g.Coverage()); diff != "" {
		t.Errorf("Coverage() mismatch (-want+got):\n%v", diff)
	}
	if diff := cmp.Diff(grid.Size{}, g.Remainder()); diff != "" {
		t.Errorf("Remainder() mismatch (-want+got):\n%v", diff)
	}
}

func TestAbsoluteIndex(t *testing.T) {
	g, err := grid.New(bound(3000, -1500, 6000, 1500), grid.Size{Width: 1500, Height: 1500})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var got [][2]int
	for tile := range g.Tiles() {
		row, col := g.AbsoluteIndex(tile)
		got = append(got, [2]int{row, col})
	}
	want := [][2]int{{-1, 2}, {-1, 3}, {0, 2}, {0, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AbsoluteIndex mismatch (-want+got):\n%v", diff)
	}
}

func TestLargeGrid(t *testing.T) {
	g, err := grid.New(bound(0, 0, 4e7, 4e7), grid.Size{Width: 1e4, Height: 1e4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got, want := g.Count(), 4000*4000; got != want {
		t.Errorf("Count() = %v, want = %v", got, want)
	}
}

func TestInvalid(t *testing.T) {
	for _, tc := range []struct {
		region orb.Bound
		step   grid.Size
	}{
		{bound(0, 0, 100, 100), grid.Size{Width: 0, Height: 10}},
		{bound(0, 0, 100, 100), grid.Size{Width: 10, Height: -1}},
		{bound(0, 0, 100, 100), grid.Size{Width: math.NaN(), Height: 10}},
		{bound(100, 0, 0, 100), grid.Size{Width: 10, Height: 10}},
		{bound(0, 100, 100, 100), grid.Size{Width: 10, Height: 10}},
		{bound(0, 0, math.Inf(1), 100), grid.Size{Width: 10, Height: 10}},
		{bound(0, 0, 4e7, 4e7), grid.Size{Width: 1e-12, Height: 1e-12}},
		{bound(0, 0, 4e7, 4e7), grid.Size{Width: 1e-3, Height: 1e-3}},
		{bound(0, 0, 4e7, 4e7), grid.Size{Width: 1e-3, Height: 1e7}},
		{bound(0, 0, 4e7, 4e7), grid.Size{Width: 100, Height: 100}},
	} {
		if _, err := grid.New(tc.region, tc.step); !errors.Is(err, grid.ErrInvalidGrid) {
			t.Errorf("New(%v, %v) error = %v, want = %v", tc.region, tc.step, err, grid.ErrInvalidGrid)
		}
	}
}
