package params

import (
	"path/filepath"
	"time"
)

type TrackerConfig struct {
	// Name labels logs, metrics and published topics.
	Name string `mapstructure:"name"`

	Filter FilterConfig `mapstructure:",squash"`

	// InitialState is "stationary" or "moving".
	// A persisted session, when present, wins over this.
	InitialState string `mapstructure:"initial-state"`

	// DataDir holds the bbolt state db. Empty disables persistence.
	DataDir string `mapstructure:"datadir"`

	// MeterInterval is how often the received-fix rate is logged. Zero disables.
	MeterInterval time.Duration `mapstructure:"meter-interval"`

	// KeepAlive keeps the tracker running after its provider returns,
	// so that a pending stationary timeout can still fire.
	KeepAlive bool `mapstructure:"keep-alive"`
}

func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		Name:          "default",
		Filter:        DefaultFilterConfig(),
		InitialState:  "stationary",
		DataDir:       DatadirRoot,
		MeterInterval: 30 * time.Second,
	}
}

func (c *TrackerConfig) StateDBPath() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, c.Name, StateDBName)
}

type ProviderConfig struct {
	// PassiveInterval is the minimum spacing between fixes delivered
	// while the provider runs in passive (coarse) mode.
	// Zero delivers every fix regardless of mode.
	PassiveInterval time.Duration `mapstructure:"passive-interval"`

	// DedupeSize bounds the duplicate-fix LRU. Zero disables dedupe.
	DedupeSize int `mapstructure:"dedupe"`

	// SerialPort and BaudRate configure an NMEA serial source.
	SerialPort string `mapstructure:"serial-port"`
	BaudRate   uint   `mapstructure:"baud"`
}

func DefaultProviderConfig() *ProviderConfig {
	return &ProviderConfig{
		PassiveInterval: 5 * time.Minute,
		DedupeSize:      DefaultDedupeSize,
		SerialPort:      "/dev/serial0",
		BaudRate:        9600,
	}
}
