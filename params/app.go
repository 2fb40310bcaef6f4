package params

import (
	"github.com/mitchellh/go-homedir"
	"path/filepath"
	"time"
)

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(home, ".motiond")
}()

const (
	StateDBName = "state.db"
	ConfigName  = "config"
)

var (
	// StateBucket holds the session snapshot.
	StateBucket = []byte("state")
	// EventsBucket holds the event log, keyed by sequence.
	EventsBucket = []byte("events")

	StateKeySession = []byte("session")
)

// DefaultBufferSize is the channel capacity used between the tracker and its sinks.
var DefaultBufferSize = 256

// DefaultRecentEvents is the number of recent events kept in memory for the web daemon.
var DefaultRecentEvents = 1_000

var (
	CacheLastKnownTTL = 7 * 24 * time.Hour
)

// DefaultDedupeSize is the LRU size used to drop duplicate fixes. Zero disables dedupe.
var DefaultDedupeSize = 10_000
