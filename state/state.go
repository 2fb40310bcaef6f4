// Package state persists a tracker's session snapshot and event log in bbolt.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"go.etcd.io/bbolt"
)

var ErrNoSnapshot = errors.New("no session snapshot")

type Store struct {
	DB      *bbolt.DB
	Waiting sync.WaitGroup
	rOnly   bool
}

// Open opens (creating if needed) the state db at path.
// Opening a writable db holds a file lock; other openers block until it is closed.
func Open(path string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	return &Store{DB: db, rOnly: readOnly}, nil
}

func (s *Store) Wait() {
	s.Waiting.Wait()
}

func (s *Store) Close() error {
	s.Wait()
	return s.DB.Close()
}

func (s *Store) storeKV(bucket, key, data []byte) error {
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// readKV returns a copy of the value, or nil if the bucket or key is missing.
func (s *Store) readKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// The value returned by Get is only valid in the scope of the transaction.
		got := b.Get(key)
		if got == nil {
			return nil
		}
		out = append([]byte{}, got...)
		return nil
	})
	return out, err
}

func (s *Store) StoreSession(sess motion.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.storeKV(params.StateBucket, params.StateKeySession, b)
}

// ReadSession returns the persisted session, or ErrNoSnapshot.
func (s *Store) ReadSession() (motion.Session, error) {
	got, err := s.readKV(params.StateBucket, params.StateKeySession)
	if err != nil {
		return motion.Session{}, err
	}
	if got == nil {
		return motion.Session{}, ErrNoSnapshot
	}
	var sess motion.Session
	if err := json.Unmarshal(got, &sess); err != nil {
		return motion.Session{}, fmt.Errorf("%w: %q", err, string(got))
	}
	slog.Debug("Read session", "state", sess.State, "accepted", sess.LastAccepted)
	return sess, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// AppendEvent adds ev to the event log and returns its sequence number.
func (s *Store) AppendEvent(ev events.Event) (uint64, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(params.EventsBucket)
		if err != nil {
			return err
		}
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	return seq, err
}

// ReadEvents returns up to limit of the most recent events, oldest first.
// A limit <= 0 returns the whole log.
func (s *Store) ReadEvents(limit int) ([]events.Event, error) {
	var out []events.Event
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.EventsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var ev events.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("event %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, ev)
		}
		return nil
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, err
}

// CountEvents returns the number of logged events.
func (s *Store) CountEvents() (int, error) {
	n := 0
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.EventsBucket)
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
