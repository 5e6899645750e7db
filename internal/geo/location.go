// Package geo supplies the user's coordinates for outgoing chat requests.
package geo

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is the failure reported when no location source is configured.
var ErrUnsupported = errors.New("geolocation is not supported")

// State is the acquisition state of a Location.
type State int

const (
	StatePending State = iota
	StateResolved
	StateFailed
)

// Location is the most recent geolocation outcome. The zero value is pending.
type Location struct {
	State     State
	Latitude  float64
	Longitude float64
	Err       error
}

// Resolved returns a resolved location.
func Resolved(lat, lon float64) Location {
	return Location{State: StateResolved, Latitude: lat, Longitude: lon}
}

// Failed returns a failed location carrying err.
func Failed(err error) Location {
	return Location{State: StateFailed, Err: err}
}

// Coordinates reports the coordinates only when the location is resolved.
func (l Location) Coordinates() (lat, lon float64, ok bool) {
	if l.State != StateResolved {
		return 0, 0, false
	}
	return l.Latitude, l.Longitude, true
}

// Status is the short indicator text shown next to the input.
func (l Location) Status() string {
	switch l.State {
	case StateResolved:
		return "GPS Active"
	case StateFailed:
		return "Location Error"
	default:
		return "Locating..."
	}
}

func (l Location) String() string {
	switch l.State {
	case StateResolved:
		return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
	case StateFailed:
		return fmt.Sprintf("unavailable (%v)", l.Err)
	default:
		return "pending"
	}
}

// Locator acquires the location once.
type Locator interface {
	Locate(ctx context.Context) Location
}

// Static always reports fixed coordinates.
type Static struct {
	Latitude  float64
	Longitude float64
}

func (s Static) Locate(context.Context) Location {
	return Resolved(s.Latitude, s.Longitude)
}

// Unavailable reports ErrUnsupported.
type Unavailable struct{}

func (Unavailable) Locate(context.Context) Location {
	return Failed(ErrUnsupported)
}

// ValidCoordinates reports whether lat/lon are within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
