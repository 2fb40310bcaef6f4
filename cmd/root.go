/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/motiond/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "motiond",
	Short: "Motion-aware location tracking",
	Long: `motiond watches a stream of location fixes and decides whether you are moving.

While stationary the location source is asked for coarse, infrequent fixes.
A fix far enough from the last accepted one starts motion, and the source
is switched to frequent, fine-grained fixes. When no qualifying fix arrives
for the stationary timeout, motion stops and the source goes back to coarse.

Every flag can also be set in the config file (default ~/.motiond/config.yaml)
or the environment, eg. MOTIOND_DISTANCE_THRESHOLD=250 or MOTIOND_MQTT_BROKER=tcp://pi:1883.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := params.DefaultConfig()
	pFlags := rootCmd.PersistentFlags()

	pFlags.StringVar(&cfgFile, "config", "", "config file (default is ~/.motiond/config.yaml)")
	pFlags.Int("verbosity", int(slog.LevelInfo), "Log level: -4 debug, 0 info, 4 warn, 8 error")
	pFlags.String("log-format", "text", "Log format: text or json")

	// Tracker.
	pFlags.String("name", defaults.Tracker.Name, "Tracker name, used for state, logs, metrics and topics")
	pFlags.String("datadir", defaults.Tracker.DataDir, "Data directory. Empty disables persistence")
	pFlags.String("initial-state", defaults.Tracker.InitialState, "State to start in without a persisted session: stationary or moving")
	pFlags.Duration("meter-interval", defaults.Tracker.MeterInterval, "Interval for logging the received-fix rate. 0 disables")
	pFlags.Bool("keep-alive", defaults.Tracker.KeepAlive, "Keep running after the source is exhausted")

	// Filter.
	pFlags.Float64("distance-threshold", defaults.Tracker.Filter.DistanceThresholdMeters, "Meters a fix must move (strictly) to count as motion")
	pFlags.Bool("distance-filter", defaults.Tracker.Filter.DistanceFilterEnabled, "Enable the distance filter")
	pFlags.Bool("time-window", defaults.Tracker.Filter.TimeWindowEnabled, "Enable the hour-of-day window")
	pFlags.Int("time-window-start", defaults.Tracker.Filter.TimeWindowStartHour, "First hour (inclusive) fixes are considered")
	pFlags.Int("time-window-end", defaults.Tracker.Filter.TimeWindowEndHour, "Last hour (inclusive) fixes are considered")
	pFlags.String("time-zone", defaults.Tracker.Filter.TimeZone, "Zone the window's hours are read in, eg. America/Chicago. Empty uses each fix's own offset")
	pFlags.Float64("stationary-timeout", defaults.Tracker.Filter.StationaryTimeoutSeconds, "Seconds without a qualifying fix before motion stops")

	// Provider.
	pFlags.Duration("passive-interval", defaults.Provider.PassiveInterval, "Minimum spacing of fixes from a stream source while passive. 0 delivers every fix")
	pFlags.Int("dedupe", defaults.Provider.DedupeSize, "Duplicate-fix LRU size. 0 disables")
	pFlags.String("serial-port", defaults.Provider.SerialPort, "NMEA serial device")
	pFlags.Uint("baud", defaults.Provider.BaudRate, "NMEA serial baud rate")

	// Sinks.
	pFlags.Bool("notify", defaults.Notify, "Print notifications to stdout")
	pFlags.Bool("notify-detail", defaults.NotifyDetail, "Also notify on every received fix")
	pFlags.Bool("archive", defaults.Archive, "Append received fixes to <datadir>/trackers/<name>/fixes.geojson.gz")

	pFlags.String("web.network", defaults.Web.Network, "Web daemon network")
	pFlags.String("web.address", defaults.Web.Address, "Web daemon address")
	pFlags.Int("web.recent-events", defaults.Web.RecentEvents, "Events kept in memory for /events and /summary")

	pFlags.Bool("mqtt.enabled", defaults.MQTT.Enabled, "Publish events to MQTT")
	pFlags.String("mqtt.broker", defaults.MQTT.Broker, "MQTT broker URL")
	pFlags.String("mqtt.client-id", defaults.MQTT.ClientID, "MQTT client id prefix")
	pFlags.String("mqtt.username", defaults.MQTT.Username, "MQTT username")
	pFlags.String("mqtt.password", defaults.MQTT.Password, "MQTT password")
	pFlags.String("mqtt.topic-prefix", defaults.MQTT.TopicPrefix, "MQTT topic prefix")
	pFlags.Uint8("mqtt.qos", defaults.MQTT.QoS, "MQTT QoS")
	pFlags.Bool("mqtt.retain", defaults.MQTT.Retain, "Retain published events")

	pFlags.Bool("influxdb.enabled", defaults.InfluxDB.Enabled, "Export events to InfluxDB")
	pFlags.String("influxdb.url", defaults.InfluxDB.URL, "InfluxDB URL")
	pFlags.String("influxdb.token", defaults.InfluxDB.Token, "InfluxDB token")
	pFlags.String("influxdb.org", defaults.InfluxDB.Org, "InfluxDB organization")
	pFlags.String("influxdb.bucket", defaults.InfluxDB.Bucket, "InfluxDB bucket")

	if err := viper.BindPFlags(pFlags); err != nil {
		log.Fatalln(err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		p, err := homedir.Expand(cfgFile)
		if err != nil {
			log.Fatalln(err)
		}
		viper.SetConfigFile(p)
	} else {
		viper.AddConfigPath(params.DatadirRoot)
		viper.SetConfigName(params.ConfigName)
	}

	viper.SetEnvPrefix("MOTIOND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Info("Using config file", "file", viper.ConfigFileUsed())
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		log.Fatalln(err)
	}
}

// loadConfig returns the defaults overlaid with the config file, environment and flags.
func loadConfig() *params.Config {
	cfg := params.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatalln(err)
	}
	return cfg
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	opts := &slog.HandlerOptions{
		Level: slog.Level(viper.GetInt("verbosity")),
	}
	var handler slog.Handler
	switch viper.GetString("log-format") {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
}
