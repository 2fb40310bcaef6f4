package motion

import (
	"time"

	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/motiond/types/fix"
)

// Distance returns the great-circle distance between two fixes in meters.
func Distance(a, b fix.Fix) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// IsSignificant reports whether candidate is far enough from reference to count.
// A nil reference is always significant. The comparison is strict: a candidate
// exactly thresholdMeters away is not significant.
// meters is the measured distance, or 0 with no reference.
func IsSignificant(reference *fix.Fix, candidate fix.Fix, thresholdMeters float64, enabled bool) (significant bool, meters float64) {
	if reference != nil {
		meters = Distance(*reference, candidate)
	}
	if !enabled || reference == nil {
		return true, meters
	}
	return meters > thresholdMeters, meters
}

// HourOf returns the hour of day of t in zone, or in t's own offset for a nil zone.
func HourOf(t time.Time, zone *time.Location) int {
	if zone != nil {
		t = t.In(zone)
	}
	return t.Hour()
}

// IsPermitted reports whether hour lies in [start, end], inclusive on both ends.
func IsPermitted(hour, start, end int, enabled bool) bool {
	if !enabled {
		return true
	}
	return start <= hour && hour <= end
}
