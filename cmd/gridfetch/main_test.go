package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eak1mov/go-gridfetch/archive"
	"github.com/eak1mov/go-gridfetch/bmpdir"
	"github.com/eak1mov/go-gridfetch/config"
	"github.com/eak1mov/go-gridfetch/internal"
	"github.com/eak1mov/go-gridfetch/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDeduceFormat(t *testing.T) {
	testCases := []struct {
		format, path, want string
	}{
		{"", "out/tiles" + archive.Extension, "archive"},
		{"", "images/{row}_{col}_{layer}.bmp", "bmp"},
		{"bmp", "out/tiles" + archive.Extension, "bmp"},
		{"archive", "tiles.db", "archive"},
	}
	for _, tc := range testCases {
		if got := deduceFormat(tc.format, tc.path); got != tc.want {
			t.Errorf("deduceFormat(%q, %q) = %q, want = %q", tc.format, tc.path, got, tc.want)
		}
	}
}

func TestPrintPlan(t *testing.T) {
	cfg := config.Default()
	cfg.Region.BottomLeft = config.PointConfig{Lat: 52.0, Lon: 4.5}
	cfg.Region.TopRight = config.PointConfig{Lat: 52.03, Lon: 4.55}
	g, err := cfg.Grid()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printPlan(&out, cfg, g, false))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	header := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "row ") {
			header = i
		}
	}
	if header < 0 {
		t.Fatalf("printPlan output has no tile table:\n%v", out.String())
	}
	if got, want := len(lines)-header-1, g.Count(); got != want {
		t.Errorf("printPlan printed %v tile rows, want = %v", got, want)
	}
	for _, want := range []string{"rows", "cols", "uncovered", "EPSG:3857"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("printPlan output does not mention %q", want)
		}
	}

	out.Reset()
	require.NoError(t, printPlan(&out, cfg, g, true))
	if strings.Contains(out.String(), "min_x") {
		t.Errorf("printPlan(summary) printed the tile table")
	}
}

func TestConvertTiles(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "images", "{row}_{col}_{layer}.bmp")
	archivePath := filepath.Join(dir, "tiles"+archive.Extension)
	copyPattern := filepath.Join(dir, "copy", "{layer}", "{row}_{col}.bmp")

	tiles := map[tile.Key]bool{
		{Row: 0, Col: 0, Layer: "tulips_2016"}:    true,
		{Row: 0, Col: 1, Layer: "tulips_2016"}:    true,
		{Row: 0, Col: 0, Layer: "sat_2016_05_01"}: true,
	}
	bmpWriter, err := bmpdir.NewWriter(pattern)
	require.NoError(t, err)
	for key := range tiles {
		require.NoError(t, bmpWriter.WriteTile(key, internal.TestImage(4, 4, uint8(key.Col))))
	}
	require.NoError(t, bmpWriter.Finalize())

	// bmp -> archive -> bmp
	steps := []struct{ inFormat, in, outFormat, out string }{
		{"bmp", pattern, "archive", archivePath},
		{"archive", archivePath, "bmp", copyPattern},
	}
	for _, step := range steps {
		reader, err := newVisitor(step.inFormat, step.in)
		require.NoError(t, err)
		writer, err := newWriter(step.outFormat, step.out, slog.New(slog.DiscardHandler), nil)
		require.NoError(t, err)

		count := 0
		require.NoError(t, convertTiles(reader, writer, func() { count++ }))
		if count != len(tiles) {
			t.Errorf("convert %v -> %v copied %v tiles, want = %v", step.inFormat, step.outFormat, count, len(tiles))
		}

		if closer, ok := writer.(*archive.Writer); ok {
			require.NoError(t, closer.Close())
		}
		if closer, ok := reader.(*archive.Reader); ok {
			require.NoError(t, closer.Close())
		}
	}

	reader, err := bmpdir.NewReader(copyPattern)
	require.NoError(t, err)
	got := make(map[tile.Key]bool)
	for key, img := range tile.IterTiles(reader) {
		got[key] = true
		if !internal.SameImage(img, internal.TestImage(4, 4, uint8(key.Col))) {
			t.Errorf("converted image mismatch for %v", key)
		}
	}
	if diff := cmp.Diff(tiles, got); diff != "" {
		t.Errorf("converted tiles mismatch (-want+got):\n%v", diff)
	}
}
