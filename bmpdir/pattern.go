// Package bmpdir provides API for reading and writing tile rasters as individual
// bitmap files with paths like "images/{row}_{col}_{layer}.bmp".
package bmpdir

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-gridfetch/tile"
)

// DefaultPattern is the file layout used when none is configured.
const DefaultPattern = "images/{row}_{col}_{layer}.bmp"

var (
	ErrInvalidPattern = errors.New("gridfetch: invalid file pattern")
	ErrInvalidKey     = errors.New("gridfetch: invalid tile key")
)

var placeholders = map[string]string{
	"{row}":   `(?P<row>-?\d+)`,
	"{col}":   `(?P<col>-?\d+)`,
	"{layer}": `(?P<layer>[^/\\]+?)`,
}

func validatePattern(pattern string) error {
	for _, p := range []string{"{row}", "{col}", "{layer}"} {
		if !strings.Contains(pattern, p) {
			return fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	return nil
}

func validateKey(key tile.Key) error {
	if key.Layer == "" || key.Layer == "." || key.Layer == ".." || strings.ContainsAny(key.Layer, `/\`) {
		return fmt.Errorf("%w: layer %q cannot be used in a file name", ErrInvalidKey, key.Layer)
	}
	return nil
}

func formatPattern(pattern string, key tile.Key) string {
	result := pattern
	result = strings.ReplaceAll(result, "{row}", strconv.Itoa(key.Row))
	result = strings.ReplaceAll(result, "{col}", strconv.Itoa(key.Col))
	result = strings.ReplaceAll(result, "{layer}", key.Layer)
	return result
}

// compilePattern turns pattern into an anchored regexp matching the files it produces.
// Only the first occurrence of each placeholder is captured.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	seen := make(map[string]bool)
	rest := filepath.Clean(pattern)
	for rest != "" {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			sb.WriteString(regexp.QuoteMeta(rest))
			break
		}
		sb.WriteString(regexp.QuoteMeta(rest[:start]))
		rest = rest[start:]

		matched := false
		for name, expr := range placeholders {
			if strings.HasPrefix(rest, name) {
				if seen[name] {
					sb.WriteString(strings.Replace(expr, "?P<"+name[1:len(name)-1]+">", "", 1))
				} else {
					sb.WriteString(expr)
				}
				seen[name] = true
				rest = rest[len(name):]
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteString(regexp.QuoteMeta("{"))
			rest = rest[1:]
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return re, nil
}

// rootDir returns the longest directory prefix shared by all paths of the pattern.
func rootDir(pattern string) string {
	path0 := formatPattern(pattern, tile.Key{Row: 0, Col: 0, Layer: "a"})
	path1 := formatPattern(pattern, tile.Key{Row: 1, Col: 1, Layer: "b"})
	for path0 != path1 {
		path0 = filepath.Dir(path0)
		path1 = filepath.Dir(path1)
	}
	return path0
}
