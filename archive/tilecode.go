package archive

import (
	"fmt"

	"github.com/eak1mov/go-gridfetch/tile"
	"github.com/google/hilbert"
)

// Tile rows and columns are shifted by codeOffset onto a codeSide x codeSide
// Hilbert square, so negative (absolute) indices are supported.
const (
	codeSide   = 1 << 16
	codeOffset = codeSide / 2
)

var curve *hilbert.Hilbert

func init() {
	var err error
	curve, err = hilbert.NewHilbert(codeSide)
	if err != nil {
		panic(err)
	}
}

// EncodeTileCode returns the position of the key's cell along a Hilbert curve.
// Cells close on the grid get close codes.
func EncodeTileCode(key tile.Key) (int64, error) {
	x, y := key.Col+codeOffset, key.Row+codeOffset
	if x < 0 || x >= codeSide || y < 0 || y >= codeSide {
		return 0, fmt.Errorf("%w: row %v, col %v out of range [%v, %v)", ErrInvalidKey, key.Row, key.Col, -codeOffset, codeOffset)
	}
	code, err := curve.MapInverse(x, y)
	if err != nil {
		return 0, err
	}
	return int64(code), nil
}

// DecodeTileCode is the inverse of EncodeTileCode; it returns the row and column.
func DecodeTileCode(code int64) (row, col int, err error) {
	x, y, err := curve.Map(int(code))
	if err != nil {
		return 0, 0, err
	}
	return y - codeOffset, x - codeOffset, nil
}
