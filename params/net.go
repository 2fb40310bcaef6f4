package params

type ListenerConfig struct {
	// Network is the network to listen on.
	// The network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string `mapstructure:"network"`
	// Address is the address to listen on.
	Address string `mapstructure:"address"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client-id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic-prefix"`
	QoS         byte   `mapstructure:"qos"`
	Retain      bool   `mapstructure:"retain"`
}

func DefaultMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		Enabled:     false,
		Broker:      "tcp://localhost:1883",
		ClientID:    "motiond",
		TopicPrefix: "motiond",
		QoS:         1,
	}
}

// FixesTopic is where a remote device publishes its fixes.
func (c *MQTTConfig) FixesTopic(name string) string {
	return c.TopicPrefix + "/" + name + "/fixes"
}

// CadenceTopic is where cadence commands for a remote device are published.
func (c *MQTTConfig) CadenceTopic(name string) string {
	return c.TopicPrefix + "/" + name + "/cadence"
}

// EventsTopic is where reportable events are published, per event kind.
func (c *MQTTConfig) EventsTopic(name, kind string) string {
	return c.TopicPrefix + "/" + name + "/events/" + kind
}

type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

func DefaultInfluxDBConfig() *InfluxDBConfig {
	return &InfluxDBConfig{
		URL:    "http://localhost:8086",
		Org:    "motiond",
		Bucket: "motiond",
	}
}
