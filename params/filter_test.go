package params

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestFilterConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *FilterConfig)
		wantErr bool
	}{
		{"default", func(c *FilterConfig) {}, false},
		{"zero threshold", func(c *FilterConfig) { c.DistanceThresholdMeters = 0 }, false},
		{"negative threshold", func(c *FilterConfig) { c.DistanceThresholdMeters = -1 }, true},
		{"hour too big", func(c *FilterConfig) { c.TimeWindowEndHour = 24 }, true},
		{"hour negative", func(c *FilterConfig) { c.TimeWindowStartHour = -1 }, true},
		{"inverted window", func(c *FilterConfig) {
			c.TimeWindowEnabled = true
			c.TimeWindowStartHour, c.TimeWindowEndHour = 18, 9
		}, true},
		{"inverted window disabled", func(c *FilterConfig) { c.TimeWindowStartHour, c.TimeWindowEndHour = 18, 9 }, false},
		{"out of range disabled", func(c *FilterConfig) { c.TimeWindowEndHour = 30 }, true},
		{"single hour window", func(c *FilterConfig) { c.TimeWindowStartHour, c.TimeWindowEndHour = 12, 12 }, false},
		{"utc zone", func(c *FilterConfig) { c.TimeZone = "UTC" }, false},
		{"named zone", func(c *FilterConfig) { c.TimeZone = "America/Chicago" }, false},
		{"unknown zone", func(c *FilterConfig) { c.TimeZone = "Mars/Olympus_Mons" }, true},
		{"zero timeout", func(c *FilterConfig) { c.StationaryTimeoutSeconds = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultFilterConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("want ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFilterConfig_StationaryTimeout(t *testing.T) {
	c := DefaultFilterConfig()
	if got := c.StationaryTimeout(); got != time.Minute {
		t.Errorf("want 1m, got %v", got)
	}
	c.StationaryTimeoutSeconds = 1.5
	if got := c.StationaryTimeout(); got != 1500*time.Millisecond {
		t.Errorf("want 1.5s, got %v", got)
	}
}
