package testdata

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/rotblauer/motiond/types/fix"
)

// basepath is the root directory of this package.
var basepath string

func init() {
	_, currentFile, _, _ := runtime.Caller(0)
	basepath = filepath.Dir(currentFile)
}

// Path returns the absolute path the given relative file or directory path,
// relative to this testdata/ directory in the user's GOPATH.
// If rel is already absolute, it is returned unmodified.
// Taken from https://github.com/grpc/grpc-go/blob/master/testdata/testdata.go.
func Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	return filepath.Join(basepath, rel)
}

// Commute fix counts, per leg.
const (
	CommuteHomeFixes  = 10
	CommuteDriveFixes = 20
	CommuteParkFixes  = 10
)

// CommuteInterval is the spacing of Commute fixes.
const CommuteInterval = 30 * time.Second

var (
	commuteHome = fix.New(44.98890, -93.25550, time.Time{})
	// Each drive fix is 0.006° of latitude, about 667m, north of the last.
	commuteStep = 0.006
)

// Commute is a synthetic trip sampled every CommuteInterval from start:
// sitting at home with a few meters of GPS jitter, driving north with every
// fix well over 500m from the one before, then parked with jitter again.
func Commute(start time.Time) []fix.Fix {
	out := make([]fix.Fix, 0, CommuteHomeFixes+CommuteDriveFixes+CommuteParkFixes)
	at := start
	next := func(lat, lon float64) {
		out = append(out, fix.New(lat, lon, at))
		at = at.Add(CommuteInterval)
	}
	// About 5m of jitter, alternating.
	jitter := func(i int) float64 {
		if i%2 == 0 {
			return 0.00004
		}
		return -0.00004
	}

	for i := 0; i < CommuteHomeFixes; i++ {
		next(commuteHome.Latitude+jitter(i), commuteHome.Longitude)
	}
	lat := commuteHome.Latitude
	for i := 0; i < CommuteDriveFixes; i++ {
		lat += commuteStep
		next(lat, commuteHome.Longitude)
	}
	for i := 0; i < CommuteParkFixes; i++ {
		next(lat+jitter(i), commuteHome.Longitude+jitter(i+1))
	}
	return out
}
