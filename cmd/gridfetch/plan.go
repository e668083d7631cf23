package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/eak1mov/go-gridfetch/config"
	"github.com/eak1mov/go-gridfetch/geo"
	"github.com/eak1mov/go-gridfetch/grid"
	"github.com/google/subcommands"
)

type planCmd struct {
	configPath string
	summary    bool
}

func (c *planCmd) Name() string     { return "plan" }
func (c *planCmd) Synopsis() string { return "print the tile grid without fetching anything" }
func (c *planCmd) Usage() string {
	return "gridfetch plan [-config <path>] [-summary]\n"
}
func (c *planCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "Config file path")
	f.BoolVar(&c.summary, "summary", false, "Print only the grid summary")
}

func printPlan(out io.Writer, cfg *config.Config, g *grid.Grid, summary bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	bl, tr := geo.UnprojectBound(g.Region())
	remainder := g.Remainder()
	fmt.Fprintf(w, "region\t%v - %v\n", bl, tr)
	fmt.Fprintf(w, "projected\t%v - %v (%s)\n", g.Region().Min, g.Region().Max, geo.CRS)
	fmt.Fprintf(w, "step\t%v x %v m\n", g.Step().Width, g.Step().Height)
	fmt.Fprintf(w, "rows\t%d\n", g.Rows())
	fmt.Fprintf(w, "cols\t%d\n", g.Cols())
	fmt.Fprintf(w, "tiles\t%d\n", g.Count())
	fmt.Fprintf(w, "images\t%d\n", g.Count()*len(cfg.Layers))
	fmt.Fprintf(w, "coverage\t%v - %v\n", g.Coverage().Min, g.Coverage().Max)
	fmt.Fprintf(w, "uncovered\t%.2f m east, %.2f m north\n", remainder.Width, remainder.Height)
	if err := w.Flush(); err != nil {
		return err
	}
	if summary {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(w, "row\tcol\tmin_x\tmin_y\tmax_x\tmax_y\tbottom_left\ttop_right")
	for t := range g.Tiles() {
		tileBL, tileTR := geo.UnprojectBound(t.Bound)
		fmt.Fprintf(w, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%v\t%v\n",
			t.Row, t.Col,
			t.Bound.Min.X(), t.Bound.Min.Y(), t.Bound.Max.X(), t.Bound.Max.Y(),
			tileBL, tileTR)
	}
	return w.Flush()
}

func (c *planCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	setupLogger(cfg.Log)

	g, err := cfg.Grid()
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if err := printPlan(os.Stdout, cfg, g, c.summary); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
