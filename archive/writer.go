package archive

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"maps"

	"github.com/eak1mov/go-gridfetch/tile"
)

const schema = `
	CREATE TABLE IF NOT EXISTS metadata (name TEXT PRIMARY KEY, value TEXT);
	CREATE TABLE IF NOT EXISTS tiles (
		layer TEXT NOT NULL,
		tile_row INTEGER NOT NULL,
		tile_col INTEGER NOT NULL,
		tile_code INTEGER NOT NULL,
		tile_data BLOB NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (layer, tile_row, tile_col);
`

// Writer implements tile.Writer interface for archive files.
// Opening an existing archive appends to it, so an interrupted run can be resumed.
type Writer struct {
	db     *sql.DB
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

// WithMetadata stores name/value pairs (e.g. region bounds, step size) in the archive.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter opens or creates an archive file for writing tiles.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("gridfetch: creating archive schema: %w", err)
	}

	if _, err = readMetadata(db); err != nil {
		return nil, err
	}

	metadata := maps.Clone(config.Metadata)
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["format"] = tileFormat
	for k, v := range metadata {
		_, err = db.Exec("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)", k, v)
		if err != nil {
			return nil, err
		}
	}

	stmt, err := db.Prepare("INSERT OR REPLACE INTO tiles (layer, tile_row, tile_col, tile_code, tile_data) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{db, stmt, config.Logger}, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

func (w *Writer) WriteTile(key tile.Key, img image.Image) error {
	if key.Layer == "" {
		return fmt.Errorf("%w: empty layer", ErrInvalidKey)
	}
	code, err := EncodeTileCode(key)
	if err != nil {
		return err
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		return err
	}

	_, err = w.stmt.Exec(key.Layer, key.Row, key.Col, code, buffer.Bytes())
	return err
}

// HasTile implements tile.Checker.
func (w *Writer) HasTile(key tile.Key) (bool, error) {
	return hasTile(w.db, key)
}

func (w *Writer) Finalize() error {
	w.logger.Debug("gridfetch: creating archive index")
	_, err := w.db.Exec("CREATE INDEX IF NOT EXISTS tile_code_index ON tiles (layer, tile_code)")
	if err != nil {
		return err
	}

	w.logger.Debug("gridfetch: analyze")
	_, err = w.db.Exec("ANALYZE")

	w.logger.Debug("gridfetch: archive done")
	return err
}

func hasTile(db *sql.DB, key tile.Key) (bool, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM tiles WHERE layer = ? AND tile_row = ? AND tile_col = ?",
		key.Layer, key.Row, key.Col).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
