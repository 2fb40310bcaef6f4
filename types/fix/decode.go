package fix

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
	"io"
	"time"
)

var ErrDecodeFix = errors.New("could not decode as geojson feature or flat fix object")

var (
	latKeys  = []string{"lat", "latitude"}
	lonKeys  = []string{"lon", "long", "lng", "longitude"}
	timeKeys = []string{"time", "timestamp", "observedAt"}
)

// ScanJSONMessages reads a stream of JSON messages from an io.Reader,
// and calls onEach for each decoded message.
// Newline-delimited objects and a single top-level array are both supported;
// for an array onEach is called per element.
func ScanJSONMessages(body io.Reader, onEach func(message json.RawMessage) error) error {
	buf := bufio.NewReader(body)
	peek, err := firstNonSpace(buf)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(buf)
	if peek == '[' {
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	for dec.More() {
		var msg json.RawMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("decode err: %T %w", err, err)
		}
		if err := onEach(msg); err != nil {
			return err
		}
	}
	return nil
}

func firstNonSpace(buf *bufio.Reader) (byte, error) {
	for {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b, buf.UnreadByte()
	}
}

// DecodeObject decodes a single JSON object into fixes.
// A GeoJSON FeatureCollection calls onEach once per feature;
// a GeoJSON Feature or a flat {lat, lon, time} object calls it once.
func DecodeObject(msg json.RawMessage, onEach func(f Fix) error) error {
	parsed := gjson.ParseBytes(msg)
	if parsed.IsArray() {
		for _, el := range parsed.Array() {
			if err := DecodeObject([]byte(el.Raw), onEach); err != nil {
				return err
			}
		}
		return nil
	}
	if !parsed.IsObject() {
		return fmt.Errorf("%w: not an object", ErrDecodeFix)
	}

	switch parsed.Get("type").String() {
	case "FeatureCollection":
		feats := parsed.Get("features")
		if !feats.Exists() {
			return errors.New("no 'features' attribute present in feature collection")
		}
		for _, f := range feats.Array() {
			if err := DecodeObject([]byte(f.Raw), onEach); err != nil {
				return err
			}
		}
		return nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(msg)
		if err != nil {
			return err
		}
		fx, err := FromFeature(f)
		if err != nil {
			return err
		}
		return onEach(fx)
	}

	fx, err := fromFlat(parsed)
	if err != nil {
		return err
	}
	return onEach(fx)
}

// Decode reads every fix from a stream of JSON messages.
func Decode(r io.Reader, onEach func(f Fix) error) error {
	return ScanJSONMessages(r, func(message json.RawMessage) error {
		return DecodeObject(message, onEach)
	})
}

// FromFeature converts a GeoJSON Point feature carrying a Time or UnixTime property.
func FromFeature(f *geojson.Feature) (Fix, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Fix{}, fmt.Errorf("%w: geometry %T is not a point", ErrDecodeFix, f.Geometry)
	}
	var at time.Time
	if v, ok := f.Properties["UnixTime"]; ok {
		switch n := v.(type) {
		case float64:
			at = time.Unix(int64(n), 0).UTC()
		case int64:
			at = time.Unix(n, 0).UTC()
		}
	}
	if s, ok := f.Properties["Time"].(string); ok {
		// Prefer the finer-grained RFC3339 time when both exist.
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			at = t
		}
	}
	if at.IsZero() {
		return Fix{}, fmt.Errorf("%w: feature missing Time property", ErrDecodeFix)
	}
	return New(pt.Lat(), pt.Lon(), at), nil
}

func fromFlat(obj gjson.Result) (Fix, error) {
	lat, ok := firstOf(obj, latKeys)
	if !ok {
		return Fix{}, fmt.Errorf("%w: missing latitude", ErrDecodeFix)
	}
	lon, ok := firstOf(obj, lonKeys)
	if !ok {
		return Fix{}, fmt.Errorf("%w: missing longitude", ErrDecodeFix)
	}
	if lat.Type != gjson.Number || lon.Type != gjson.Number {
		return Fix{}, fmt.Errorf("%w: non-numeric coordinates %s, %s", ErrDecodeFix, lat.Raw, lon.Raw)
	}
	tv, ok := firstOf(obj, timeKeys)
	if !ok {
		return Fix{}, fmt.Errorf("%w: missing time", ErrDecodeFix)
	}
	var at time.Time
	switch tv.Type {
	case gjson.Number:
		at = time.Unix(tv.Int(), 0).UTC()
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, tv.String())
		if err != nil {
			return Fix{}, fmt.Errorf("%w: %v", ErrDecodeFix, err)
		}
		at = t
	default:
		return Fix{}, fmt.Errorf("%w: unsupported time %s", ErrDecodeFix, tv.Raw)
	}
	return New(lat.Float(), lon.Float(), at), nil
}

func firstOf(obj gjson.Result, keys []string) (gjson.Result, bool) {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// DecodeBytes is a convenience wrapper for small payloads.
func DecodeBytes(data []byte) ([]Fix, error) {
	out := []Fix{}
	err := Decode(bytes.NewReader(data), func(f Fix) error {
		out = append(out, f)
		return nil
	})
	return out, err
}
