package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/eak1mov/go-gridfetch/config"
	"github.com/eak1mov/go-gridfetch/fetch"
	"github.com/eak1mov/go-gridfetch/geo"
	"github.com/eak1mov/go-gridfetch/grid"
	"github.com/eak1mov/go-gridfetch/wms"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type fetchCmd struct {
	configPath   string
	outputPath   string
	outputFormat string
	skipExisting bool
	dryRun       bool
}

func (c *fetchCmd) Name() string     { return "fetch" }
func (c *fetchCmd) Synopsis() string { return "download all layers for every tile of the grid" }
func (c *fetchCmd) Usage() string {
	return "gridfetch fetch [-config <path>] [-o <path>] [-of <format>] [-skip-existing] [-dry-run]\n"
}
func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Config file path")
	f.StringVar(&c.outputPath, "o", "", "Output path (file pattern for bmp, file for archive)")
	f.StringVar(&c.outputFormat, "of", "", "Output format (bmp, archive)")
	f.BoolVar(&c.skipExisting, "skip-existing", false, "Do not fetch tiles that are already saved")
	f.BoolVar(&c.dryRun, "dry-run", false, "Print GetMap URLs instead of fetching")
}

type layerClient struct {
	layer  config.LayerConfig
	code   string
	client *wms.Client
}

func (c *fetchCmd) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.outputPath != "" {
		cfg.Output.Path = c.outputPath
		cfg.Output.Format = deduceFormat(c.outputFormat, c.outputPath)
	} else if c.outputFormat != "" {
		cfg.Output.Format = c.outputFormat
	}
	if c.skipExisting {
		cfg.Output.SkipExisting = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClients(cfg *config.Config, logger *slog.Logger) ([]layerClient, error) {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	clients := make([]layerClient, 0, len(cfg.Layers))
	for _, layer := range cfg.Layers {
		client, err := wms.NewClient(
			cfg.ResolveURL(layer),
			wms.WithHTTPClient(httpClient),
			wms.WithUserAgent(cfg.HTTP.UserAgent),
			wms.WithFormat(cfg.Image.Format),
			wms.WithVersion(cmp.Or(layer.Version, wms.Version130)),
			wms.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.Label, err)
		}
		clients = append(clients, layerClient{layer: layer, code: cfg.ResolveLayer(layer), client: client})
	}
	return clients, nil
}

func printURLs(w io.Writer, cfg *config.Config, g *grid.Grid, clients []layerClient) {
	for t := range g.Tiles() {
		for _, lc := range clients {
			fmt.Fprintln(w, lc.client.URL(wms.Request{
				Bound:  t.Bound,
				Width:  cfg.Image.Width,
				Height: cfg.Image.Height,
				CRS:    geo.EPSG,
				Layer:  lc.code,
				Time:   lc.layer.Time,
			}))
		}
	}
}

func (c *fetchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := c.loadConfig()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	logger := setupLogger(cfg.Log)

	g, err := cfg.Grid()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	clients, err := newClients(cfg, logger)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if c.dryRun {
		printURLs(os.Stdout, cfg, g, clients)
		return subcommands.ExitSuccess
	}

	metadata := map[string]string{
		"crs":    geo.CRS,
		"region": fmt.Sprintf("%v,%v", g.Region().Min, g.Region().Max),
		"step":   fmt.Sprintf("%vx%v", cfg.Step.Width, cfg.Step.Height),
		"size":   fmt.Sprintf("%vx%v", cfg.Image.Width, cfg.Image.Height),
	}
	writer, err := newWriter(cfg.Output.Format, cfg.Output.Path, logger, metadata)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	sources := make([]fetch.Source, 0, len(clients))
	for _, lc := range clients {
		sources = append(sources, fetch.Source{
			Label:  lc.layer.Label,
			Layer:  lc.code,
			Time:   lc.layer.Time,
			Getter: lc.client,
		})
	}

	bar := progressbar.NewOptions(g.Count(),
		progressbar.OptionSetDescription("fetching"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
	)

	opts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithImageSize(cfg.Image.Width, cfg.Image.Height),
		fetch.WithProgress(func(grid.Tile) { bar.Add(1) }),
	}
	if cfg.Output.AbsoluteIndex {
		opts = append(opts, fetch.WithAbsoluteIndex())
	}
	if cfg.Output.SkipExisting {
		opts = append(opts, fetch.WithSkipExisting())
	}

	fetcher, err := fetch.New(writer, sources, opts...)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	stats, err := fetcher.Run(ctx, g)
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Printf("%v (saved %d, skipped %d)", err, stats.Saved, stats.Skipped)
		return subcommands.ExitFailure
	}

	if err := writer.Finalize(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
