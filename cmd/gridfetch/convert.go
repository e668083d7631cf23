package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"

	"github.com/eak1mov/go-gridfetch/archive"
	"github.com/eak1mov/go-gridfetch/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type convertCmd struct {
	inputFormat  string
	inputPath    string
	outputFormat string
	outputPath   string
}

func (c *convertCmd) Name() string     { return "convert" }
func (c *convertCmd) Synopsis() string { return "copy saved tiles between bitmap directories and archives" }
func (c *convertCmd) Usage() string {
	return "gridfetch convert -i <path> -o <path> [-if <format> | -of <format>]\n"
}
func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path (file pattern for bmp, file for archive)")
	f.StringVar(&c.inputFormat, "if", "", "Input format (bmp, archive)")
	f.StringVar(&c.outputPath, "o", "", "Output path (file pattern for bmp, file for archive)")
	f.StringVar(&c.outputFormat, "of", "", "Output format (bmp, archive)")
}

func convertTiles(reader tile.Visitor, writer tile.Writer, onTile func()) error {
	err := reader.VisitTiles(func(key tile.Key, img image.Image) error {
		err := writer.WriteTile(key, img)
		onTile()
		return err
	})
	if err != nil {
		return err
	}
	return writer.Finalize()
}

func (c *convertCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Println("both -i and -o are required")
		return subcommands.ExitUsageError
	}

	reader, err := newVisitor(deduceFormat(c.inputFormat, c.inputPath), c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	var metadata map[string]string
	if archiveReader, ok := reader.(*archive.Reader); ok {
		metadata, err = archiveReader.ReadMetadata()
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}

	writer, err := newWriter(deduceFormat(c.outputFormat, c.outputPath), c.outputPath, slog.Default(), metadata)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	err = convertTiles(reader, writer, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
