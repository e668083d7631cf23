// Package geo converts coordinates between WGS84 (EPSG:4326) and Web Mercator (EPSG:3857).
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// EPSG is the code of the projected system used for tiling.
	EPSG = 3857
	// CRS is EPSG in the form WMS services expect.
	CRS = "EPSG:3857"
)

// MaxLatitude is the largest latitude Web Mercator can represent.
const MaxLatitude = 85.05112877980659

var ErrOutOfDomain = errors.New("gridfetch: coordinate out of projection domain")

// LatLon is a WGS84 point in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

func (ll LatLon) String() string {
	return strconv.FormatFloat(ll.Lat, 'f', -1, 64) + "°," + strconv.FormatFloat(ll.Lon, 'f', -1, 64) + "°"
}

func (ll LatLon) valid() error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lon) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lon, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrOutOfDomain, ll)
	}
	if math.Abs(ll.Lat) > MaxLatitude {
		return fmt.Errorf("%w: latitude %v beyond ±%v", ErrOutOfDomain, ll.Lat, MaxLatitude)
	}
	if math.Abs(ll.Lon) > 180 {
		return fmt.Errorf("%w: longitude %v beyond ±180", ErrOutOfDomain, ll.Lon)
	}
	return nil
}

// ToProjected maps ll to Web Mercator meters.
func ToProjected(ll LatLon) (orb.Point, error) {
	if err := ll.valid(); err != nil {
		return orb.Point{}, err
	}
	return project.WGS84.ToMercator(orb.Point{ll.Lon, ll.Lat}), nil
}

// ToGeographic is the inverse of ToProjected.
func ToGeographic(p orb.Point) LatLon {
	q := project.Mercator.ToWGS84(p)
	return LatLon{Lat: q.Lat(), Lon: q.Lon()}
}

// ProjectBound projects the two corners of a geographic box.
// The result is validated to have Min strictly below Max on both axes.
func ProjectBound(bottomLeft, topRight LatLon) (orb.Bound, error) {
	minPoint, err := ToProjected(bottomLeft)
	if err != nil {
		return orb.Bound{}, err
	}
	maxPoint, err := ToProjected(topRight)
	if err != nil {
		return orb.Bound{}, err
	}
	if minPoint.X() >= maxPoint.X() || minPoint.Y() >= maxPoint.Y() {
		return orb.Bound{}, fmt.Errorf("%w: bottom-left %v is not below and west of top-right %v", ErrOutOfDomain, bottomLeft, topRight)
	}
	return orb.Bound{Min: minPoint, Max: maxPoint}, nil
}

// UnprojectBound returns the bottom-left and top-right corners of b in WGS84.
func UnprojectBound(b orb.Bound) (LatLon, LatLon) {
	return ToGeographic(b.Min), ToGeographic(b.Max)
}
