// Package fix defines the position sample the tracker consumes,
// and the decoders that turn provider payloads into them.
package fix

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"math"
	"time"
)

var ErrMalformed = errors.New("malformed fix")

// Fix is a single position sample. It is a value; don't mutate a Fix
// once it has been handed to a tracker.
type Fix struct {
	Latitude   float64
	Longitude  float64
	ObservedAt time.Time
}

func New(lat, lon float64, at time.Time) Fix {
	return Fix{Latitude: lat, Longitude: lon, ObservedAt: at}
}

// Point returns the fix as an orb.Point, which is [lon, lat].
func (f Fix) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// Validate returns an error wrapping ErrMalformed for non-finite or
// out-of-range coordinates, or a missing observation time.
func (f Fix) Validate() error {
	if math.IsNaN(f.Latitude) || math.IsInf(f.Latitude, 0) ||
		math.IsNaN(f.Longitude) || math.IsInf(f.Longitude, 0) {
		return fmt.Errorf("%w: non-finite coordinates (%v, %v)", ErrMalformed, f.Latitude, f.Longitude)
	}
	if f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrMalformed, f.Latitude)
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrMalformed, f.Longitude)
	}
	if f.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing time", ErrMalformed)
	}
	return nil
}

func (f Fix) String() string {
	return fmt.Sprintf("(%.6f, %.6f)@%s", f.Latitude, f.Longitude, f.ObservedAt.Format(time.RFC3339))
}

// Key is the comparable identity of a fix, used for hashing and dedupe.
type Key struct {
	Latitude  float64
	Longitude float64
	UnixNano  int64
}

func (f Fix) Key() Key {
	return Key{Latitude: f.Latitude, Longitude: f.Longitude, UnixNano: f.ObservedAt.UnixNano()}
}

// Feature returns the fix as a GeoJSON Point feature.
// Time is kept in both the RFC3339 and unix forms, like a cat track.
func (f Fix) Feature() *geojson.Feature {
	ft := geojson.NewFeature(f.Point())
	ft.Properties["Time"] = f.ObservedAt.Format(time.RFC3339Nano)
	ft.Properties["UnixTime"] = f.ObservedAt.Unix()
	return ft
}

// MarshalJSON implements the json.Marshaler interface.
func (f Fix) MarshalJSON() ([]byte, error) {
	return f.Feature().MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// It accepts any single-fix shape that Decode does.
func (f *Fix) UnmarshalJSON(data []byte) error {
	var got []Fix
	err := DecodeObject(data, func(fx Fix) error {
		got = append(got, fx)
		return nil
	})
	if err != nil {
		return err
	}
	if len(got) != 1 {
		return fmt.Errorf("want 1 fix, got %d", len(got))
	}
	*f = got[0]
	return nil
}
