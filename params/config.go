package params

// Config is everything a motiond process is configured with.
// Tracker and provider settings sit at the top level; the rest is nested by concern.
type Config struct {
	Tracker  TrackerConfig   `mapstructure:",squash"`
	Provider ProviderConfig  `mapstructure:",squash"`
	Web      WebDaemonConfig `mapstructure:"web"`
	MQTT     MQTTConfig      `mapstructure:"mqtt"`
	InfluxDB InfluxDBConfig  `mapstructure:"influxdb"`

	// Notify writes human-readable notifications to stdout.
	Notify bool `mapstructure:"notify"`
	// NotifyDetail adds a notification for every received fix.
	NotifyDetail bool `mapstructure:"notify-detail"`
	// Archive appends every received fix to the tracker's gzipped fixes file.
	Archive bool `mapstructure:"archive"`
}

func DefaultConfig() *Config {
	return &Config{
		Tracker:  *DefaultTrackerConfig(),
		Provider: *DefaultProviderConfig(),
		Web:      *DefaultWebDaemonConfig(),
		MQTT:     *DefaultMQTTConfig(),
		InfluxDB: *DefaultInfluxDBConfig(),
		Notify:   true,
	}
}
