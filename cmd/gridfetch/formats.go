package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/eak1mov/go-gridfetch/archive"
	"github.com/eak1mov/go-gridfetch/bmpdir"
	"github.com/eak1mov/go-gridfetch/tile"
)

func deduceFormat(format, path string) string {
	if format == "" && strings.HasSuffix(path, archive.Extension) {
		return "archive"
	}
	if format == "" {
		return "bmp"
	}
	return format
}

func newWriter(format, path string, logger *slog.Logger, metadata map[string]string) (tile.Writer, error) {
	switch format {
	case "archive":
		return archive.NewWriter(path, archive.WithLogger(logger), archive.WithMetadata(metadata))
	case "bmp":
		return bmpdir.NewWriter(path)
	default:
		return nil, fmt.Errorf("invalid output format: %q", format)
	}
}

func newVisitor(format, path string) (tile.Visitor, error) {
	switch format {
	case "archive":
		return archive.NewReader(path)
	case "bmp":
		return bmpdir.NewReader(path)
	default:
		return nil, fmt.Errorf("invalid input format: %q", format)
	}
}
