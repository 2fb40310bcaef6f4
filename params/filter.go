package params

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

// FilterConfig is the immutable snapshot of thresholds the motion machine
// filters fixes with. Change it by replacing the whole value.
type FilterConfig struct {
	// DistanceThresholdMeters is the displacement a fix must exceed (strictly)
	// from the last accepted fix to count as movement.
	DistanceThresholdMeters float64 `mapstructure:"distance-threshold" json:"distanceThresholdMeters"`

	// DistanceFilterEnabled false lets every fix count as movement.
	DistanceFilterEnabled bool `mapstructure:"distance-filter" json:"distanceFilterEnabled"`

	// TimeWindowStartHour and TimeWindowEndHour bound (inclusive)
	// the hours of the day during which fixes are considered at all.
	TimeWindowStartHour int  `mapstructure:"time-window-start" json:"timeWindowStartHour"`
	TimeWindowEndHour   int  `mapstructure:"time-window-end" json:"timeWindowEndHour"`
	TimeWindowEnabled   bool `mapstructure:"time-window" json:"timeWindowEnabled"`

	// TimeZone names the zone (IANA, "UTC" or "Local") the window's hours are
	// read in. Empty reads each fix's hour in the offset it was observed with.
	TimeZone string `mapstructure:"time-zone" json:"timeZone,omitempty"`

	// StationaryTimeoutSeconds is how long the machine stays Moving
	// without a qualifying fix before it reverts to Stationary.
	StationaryTimeoutSeconds float64 `mapstructure:"stationary-timeout" json:"stationaryTimeoutSeconds"`
}

// DefaultFilterConfig returns the stock thresholds:
// 500m distance filter, 09-18 time window (disabled), one minute stationary timeout.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		DistanceThresholdMeters:  500,
		DistanceFilterEnabled:    true,
		TimeWindowStartHour:      9,
		TimeWindowEndHour:        18,
		TimeWindowEnabled:        false,
		StationaryTimeoutSeconds: 60,
	}
}

func (c FilterConfig) StationaryTimeout() time.Duration {
	return time.Duration(c.StationaryTimeoutSeconds * float64(time.Second))
}

// Zone loads TimeZone. It returns nil for an empty TimeZone.
func (c FilterConfig) Zone() (*time.Location, error) {
	if c.TimeZone == "" {
		return nil, nil
	}
	return time.LoadLocation(c.TimeZone)
}

func (c FilterConfig) Validate() error {
	if c.DistanceThresholdMeters < 0 {
		return fmt.Errorf("%w: negative distance threshold %v", ErrInvalidConfig, c.DistanceThresholdMeters)
	}
	if c.TimeWindowStartHour < 0 || c.TimeWindowStartHour > 23 ||
		c.TimeWindowEndHour < 0 || c.TimeWindowEndHour > 23 {
		return fmt.Errorf("%w: time window hours must be 0-23, got %d-%d",
			ErrInvalidConfig, c.TimeWindowStartHour, c.TimeWindowEndHour)
	}
	// A disabled window may hold any ordering until it is turned on.
	if c.TimeWindowEnabled && c.TimeWindowStartHour > c.TimeWindowEndHour {
		return fmt.Errorf("%w: time window start %d after end %d",
			ErrInvalidConfig, c.TimeWindowStartHour, c.TimeWindowEndHour)
	}
	if _, err := c.Zone(); err != nil {
		return fmt.Errorf("%w: time zone: %v", ErrInvalidConfig, err)
	}
	if c.StationaryTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: stationary timeout must be positive, got %v", ErrInvalidConfig, c.StationaryTimeoutSeconds)
	}
	return nil
}
