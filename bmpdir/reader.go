package bmpdir

import (
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/eak1mov/go-gridfetch/tile"
	"golang.org/x/image/bmp"
)

// Reader implements tile.Reader interface for bitmap files.
type Reader struct {
	filePattern string
	rootDir     string
	pathRegexp  *regexp.Regexp
}

// NewReader creates a new Reader for the given file pattern (e.g. "/home/user/images/{row}_{col}_{layer}.bmp").
func NewReader(filePattern string) (*Reader, error) {
	if err := validatePattern(filePattern); err != nil {
		return nil, err
	}

	pathRegexp, err := compilePattern(filePattern)
	if err != nil {
		return nil, err
	}

	return &Reader{filePattern, rootDir(filePattern), pathRegexp}, nil
}

func (r *Reader) ReadTile(key tile.Key) (image.Image, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	img, err := readFile(formatPattern(r.filePattern, key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return img, err
}

// HasTile implements tile.Checker.
func (r *Reader) HasTile(key tile.Key) (bool, error) {
	return hasFile(r.filePattern, key)
}

func (r *Reader) VisitTiles(visitor func(tile.Key, image.Image) error) error {
	if _, err := os.Stat(r.rootDir); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(r.rootDir, func(filePath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		matches := r.pathRegexp.FindStringSubmatch(filepath.Clean(filePath))
		if matches == nil {
			return nil
		}

		row, err := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("row")])
		if err != nil {
			return err
		}
		col, err := strconv.Atoi(matches[r.pathRegexp.SubexpIndex("col")])
		if err != nil {
			return err
		}
		layer := matches[r.pathRegexp.SubexpIndex("layer")]

		img, err := readFile(filePath)
		if err != nil {
			return err
		}

		return visitor(tile.Key{Row: row, Col: col, Layer: layer}, img)
	})
}

func readFile(filePath string) (image.Image, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return bmp.Decode(file)
}
