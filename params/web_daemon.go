package params

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash"`

	// RecentEvents bounds the in-memory event history served at /events.
	RecentEvents int `mapstructure:"recent-events"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: DefaultWebListenerConfig(),
		RecentEvents:   DefaultRecentEvents,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		RecentEvents: 10,
	}
}
