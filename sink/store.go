package sink

import (
	"context"
	"encoding/json"

	"github.com/rotblauer/motiond/catdb/flat"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/state"
	"github.com/rotblauer/motiond/types/fix"
)

// Store appends events to the state store's event log.
type Store struct {
	Store *state.Store
}

func (s *Store) Emit(ctx context.Context, ev events.Event) error {
	_, err := s.Store.AppendEvent(ev)
	return err
}

// Archive appends received fixes, as GeoJSON lines, to the tracker's gzipped archive.
// The archive can be fed back through the replay command.
type Archive struct {
	w   *flat.GZFileWriter
	enc *json.Encoder
}

func NewArchive(f *flat.Flat) (*Archive, error) {
	w, err := f.NamedGZWriter(flat.FixesFileName, nil)
	if err != nil {
		return nil, err
	}
	return &Archive{w: w, enc: json.NewEncoder(w)}, nil
}

func (a *Archive) Received(ctx context.Context, f fix.Fix) error {
	return a.enc.Encode(f)
}

func (a *Archive) Close() error {
	return a.w.Close()
}
