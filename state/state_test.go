package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/types/fix"
	"go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltOpenNX(t *testing.T) {
	target := filepath.Join(t.TempDir(), "bbolt-test.db")
	db, err := bbolt.Open(target, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		t.Log("Sleeping 1...")
		time.Sleep(time.Second)
		db.Close()
	}()
	db2, err := bbolt.Open(target, 0600, nil)
	if err == nil {
		t.Log("next db conn! open 2x is blocking, not erroring")
	} else {
		t.Errorf("next db conn: %v", err)
	}
	db2.Close()
}

func TestSession_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ReadSession(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("want ErrNoSnapshot, got %v", err)
	}

	accepted := fix.New(45.5, -122.6, time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC))
	received := fix.New(45.51, -122.61, time.Date(2024, 11, 20, 10, 0, 30, 0, time.UTC))
	want := motion.Session{
		State:        motion.Moving,
		LastAccepted: &accepted,
		LastReceived: &received,
		TimerArmed:   true,
	}
	if err := s.StoreSession(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadSession()
	if err != nil {
		t.Fatal(err)
	}
	if got.State != want.State || got.TimerArmed != want.TimerArmed {
		t.Errorf("got %+v", got)
	}
	if got.LastReceived == nil || !got.LastReceived.ObservedAt.Equal(received.ObservedAt) ||
		got.LastReceived.Latitude != received.Latitude {
		t.Errorf("last received: got %v want %v", got.LastReceived, received)
	}
	if got.LastAccepted == nil || got.LastAccepted.Longitude != accepted.Longitude {
		t.Errorf("last accepted: got %v want %v", got.LastAccepted, accepted)
	}
}

func TestEvents_AppendRead(t *testing.T) {
	s := openTestStore(t)
	if evs, err := s.ReadEvents(10); err != nil || len(evs) != 0 {
		t.Fatalf("empty log: %v %v", evs, err)
	}

	at := time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)
	f := fix.New(1, 2, at)
	in := []events.Event{
		events.Started(f, 0, at),
		events.Rejected(f, events.InsufficientDistance, at.Add(time.Second)),
		events.Progress(f, 700, at.Add(2*time.Second)),
		events.Stopped(&f, at.Add(3*time.Second)),
	}
	for i, ev := range in {
		seq, err := s.AppendEvent(ev)
		if err != nil {
			t.Fatal(err)
		}
		if seq != uint64(i+1) {
			t.Errorf("seq: got %d want %d", seq, i+1)
		}
	}

	n, err := s.CountEvents()
	if err != nil || n != len(in) {
		t.Fatalf("count: %d %v", n, err)
	}

	all, err := s.ReadEvents(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(in) {
		t.Fatalf("got %d events", len(all))
	}
	for i := range in {
		if all[i].Kind != in[i].Kind || !all[i].At.Equal(in[i].At) {
			t.Errorf("%d: got %v want %v", i, all[i], in[i])
		}
	}

	last2, err := s.ReadEvents(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(last2) != 2 || last2[0].Kind != events.MotionProgress || last2[1].Kind != events.MotionStopped {
		t.Errorf("last 2: %v", last2)
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"), true)
	if err == nil {
		t.Fatal("read-only open of a missing db should fail")
	}
}
