// Package archive provides API for reading and writing tile rasters in a single
// SQLite file, one row per (layer, row, column) with PNG-encoded data.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package archive

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/eak1mov/go-gridfetch/tile"
)

// Extension is the conventional archive file suffix.
const Extension = ".gridtiles"

const tileFormat = "png"

var (
	ErrInvalidKey        = errors.New("gridfetch: invalid tile key")
	ErrUnsupportedFormat = errors.New("gridfetch: unsupported archive tile format")
)

// Reader implements tile.Reader interface for archive files.
type Reader struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// NewReader creates a new Reader for the given archive file path.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	if _, err := readMetadata(db); err != nil {
		db.Close()
		return nil, err
	}

	stmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE layer = ? AND tile_row = ? AND tile_col = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, stmt: stmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.stmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	return readMetadata(r.db)
}

// readMetadata loads the metadata table and checks that tiles are stored as tileFormat.
// An archive without a format entry is accepted.
func readMetadata(db *sql.DB) (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if format, ok := metadata["format"]; ok && format != tileFormat {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return metadata, nil
}

func (r *Reader) ReadTile(key tile.Key) (image.Image, error) {
	var tileData []byte
	if err := r.stmt.QueryRow(key.Layer, key.Row, key.Col).Scan(&tileData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return decodeTile(key, tileData)
}

// HasTile implements tile.Checker.
func (r *Reader) HasTile(key tile.Key) (bool, error) {
	return hasTile(r.db, key)
}

// VisitTiles visits tiles layer by layer, each layer in Hilbert curve order.
func (r *Reader) VisitTiles(visitor func(tile.Key, image.Image) error) error {
	rows, err := r.db.Query("SELECT layer, tile_row, tile_col, tile_data FROM tiles ORDER BY layer, tile_code")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key tile.Key
		var tileData []byte

		if err := rows.Scan(&key.Layer, &key.Row, &key.Col, &tileData); err != nil {
			return err
		}

		img, err := decodeTile(key, tileData)
		if err != nil {
			return err
		}

		if err := visitor(key, img); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return err
	}

	return nil
}

func decodeTile(key tile.Key, tileData []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(tileData))
	if err != nil {
		return nil, fmt.Errorf("gridfetch: decoding tile %v: %w", key, err)
	}
	return img, nil
}
