// Package fetch downloads every configured layer for every tile of a grid
// and saves the rasters to a tile.Writer.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/eak1mov/go-gridfetch/geo"
	"github.com/eak1mov/go-gridfetch/grid"
	"github.com/eak1mov/go-gridfetch/tile"
	"github.com/eak1mov/go-gridfetch/wms"
)

// Getter is the GetMap contract; *wms.Client implements it.
type Getter interface {
	GetMap(ctx context.Context, req wms.Request) (image.Image, error)
}

// Source is one image layer fetched for every tile.
type Source struct {
	Label  string // output name of the layer, e.g. "sat_2016_05_01"
	Layer  string // service layer code, e.g. "TRUE_COLOR"
	Time   string // optional WMS TIME value
	Getter Getter
}

// Stats counts the work done by Run.
type Stats struct {
	Tiles   int // grid tiles visited
	Saved   int // rasters fetched and saved
	Skipped int // rasters already present in the writer
}

// Fetcher walks a grid sequentially: for every tile, every source in order.
type Fetcher struct {
	writer        tile.Writer
	sources       []Source
	logger        *slog.Logger
	width         int
	height        int
	absoluteIndex bool
	skipExisting  bool
	progress      func(grid.Tile)
}

type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// WithImageSize sets the requested raster size in pixels (default 512x512).
func WithImageSize(width, height int) Option {
	return func(f *Fetcher) { f.width, f.height = width, height }
}

// WithAbsoluteIndex names tiles by grid.AbsoluteIndex instead of their row and column in the grid.
func WithAbsoluteIndex() Option {
	return func(f *Fetcher) { f.absoluteIndex = true }
}

// WithSkipExisting skips rasters the writer already has.
// It has no effect unless the writer implements tile.Checker.
func WithSkipExisting() Option {
	return func(f *Fetcher) { f.skipExisting = true }
}

// WithProgress calls fn after each tile is done.
func WithProgress(fn func(grid.Tile)) Option {
	return func(f *Fetcher) { f.progress = fn }
}

var ErrNoSources = errors.New("gridfetch: no sources")

func New(writer tile.Writer, sources []Source, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		writer:  writer,
		sources: sources,
		logger:  slog.New(slog.DiscardHandler),
		width:   512,
		height:  512,
	}
	for _, opt := range opts {
		opt(f)
	}

	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	labels := make(map[string]bool)
	for _, s := range sources {
		if s.Label == "" || s.Layer == "" || s.Getter == nil {
			return nil, fmt.Errorf("gridfetch: incomplete source %q (layer %q)", s.Label, s.Layer)
		}
		if labels[s.Label] {
			return nil, fmt.Errorf("gridfetch: duplicate source label %q", s.Label)
		}
		labels[s.Label] = true
	}
	if f.width <= 0 || f.height <= 0 {
		return nil, fmt.Errorf("gridfetch: invalid image size %vx%v", f.width, f.height)
	}

	return f, nil
}

// Key returns the key a raster of source label for t is saved under.
func (f *Fetcher) Key(g *grid.Grid, t grid.Tile, label string) tile.Key {
	row, col := t.Row, t.Col
	if f.absoluteIndex {
		row, col = g.AbsoluteIndex(t)
	}
	return tile.Key{Row: row, Col: col, Layer: label}
}

// Run fetches and saves all rasters of g. It stops at the first error,
// leaving the rasters saved so far in the writer. Finalize is left to the caller.
func (f *Fetcher) Run(ctx context.Context, g *grid.Grid) (Stats, error) {
	var stats Stats

	if remainder := g.Remainder(); remainder.Width > 0 || remainder.Height > 0 {
		f.logger.Warn("gridfetch: grid does not cover the whole region",
			"uncovered_east_m", remainder.Width, "uncovered_north_m", remainder.Height)
	}
	f.logger.Info("gridfetch: starting", "rows", g.Rows(), "cols", g.Cols(), "tiles", g.Count(), "sources", len(f.sources))

	checker, _ := f.writer.(tile.Checker)

	for t := range g.Tiles() {
		stats.Tiles++
		f.logger.Debug("gridfetch: loading", "at", geo.ToGeographic(t.Bound.Min), "row", t.Row, "col", t.Col)

		for _, source := range f.sources {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			key := f.Key(g, t, source.Label)

			if f.skipExisting && checker != nil {
				exists, err := checker.HasTile(key)
				if err != nil {
					return stats, fmt.Errorf("gridfetch: checking tile %v: %w", key, err)
				}
				if exists {
					f.logger.Debug("gridfetch: skipping saved tile", "key", key.String())
					stats.Skipped++
					continue
				}
			}

			img, err := source.Getter.GetMap(ctx, wms.Request{
				Bound:  t.Bound,
				Width:  f.width,
				Height: f.height,
				CRS:    geo.EPSG,
				Layer:  source.Layer,
				Time:   source.Time,
			})
			if err != nil {
				return stats, fmt.Errorf("gridfetch: fetching tile %v: %w", key, err)
			}

			if err := f.writer.WriteTile(key, img); err != nil {
				return stats, fmt.Errorf("gridfetch: saving tile %v: %w", key, err)
			}
			stats.Saved++
		}

		if f.progress != nil {
			f.progress(t)
		}
	}

	f.logger.Info("gridfetch: done", "tiles", stats.Tiles, "saved", stats.Saved, "skipped", stats.Skipped)
	return stats, nil
}
