package bmpdir

import (
	"image"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-gridfetch/tile"
	"golang.org/x/image/bmp"
)

// Writer implements tile.Writer interface for bitmap files.
type Writer struct {
	filePattern string
}

// NewWriter creates a new Writer for the given file pattern (e.g. "/home/user/images/{row}_{col}_{layer}.bmp").
func NewWriter(filePattern string) (*Writer, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}
	return &Writer{filePattern}, nil
}

// WriteTile encodes img as BMP. The file appears under its final name only
// once it is complete, so an interrupted run never leaves a truncated tile behind.
func (w *Writer) WriteTile(key tile.Key, img image.Image) (err error) {
	if err := validateKey(key); err != nil {
		return err
	}
	filePath := formatPattern(w.filePattern, key)

	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dirPath, ".tile-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	if err = bmp.Encode(file, img); err != nil {
		return err
	}
	if err = file.Chmod(0644); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), filePath)
}

// HasTile implements tile.Checker.
func (w *Writer) HasTile(key tile.Key) (bool, error) {
	return hasFile(w.filePattern, key)
}

func (w *Writer) Finalize() error {
	return nil
}

func hasFile(filePattern string, key tile.Key) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	info, err := os.Stat(formatPattern(filePattern, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular() && info.Size() > 0, nil
}
