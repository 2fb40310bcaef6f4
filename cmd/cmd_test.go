package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/motiond/params"
)

func TestReadFixes_SortsWithinBatches(t *testing.T) {
	ndjson := `{"lat": 1, "lon": 1, "time": "2024-11-20T10:00:20Z"}
{"lat": 2, "lon": 2, "time": "2024-11-20T10:00:10Z"}
{"lat": 3, "lon": 3, "time": "2024-11-20T10:00:00Z"}
`
	array := `[{"lat": 4, "lon": 4, "time": "2024-11-20T09:00:00Z"}]`

	fixes, err := readFixes(context.Background(), 3, nil, strings.NewReader(ndjson), strings.NewReader(array))
	if err != nil {
		t.Fatal(err)
	}
	var lats []float64
	for _, f := range fixes {
		lats = append(lats, f.Latitude)
	}
	// The fourth fix is earlier than all, but in the next batch.
	want := []float64{3, 2, 1, 4}
	if len(lats) != len(want) {
		t.Fatalf("want %v, got %v", want, lats)
	}
	for i := range want {
		if lats[i] != want[i] {
			t.Fatalf("want %v, got %v", want, lats)
		}
	}
}

func TestReadFixes_Empty(t *testing.T) {
	fixes, err := readFixes(context.Background(), 10, nil, strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 0 {
		t.Errorf("fixes %v", fixes)
	}
}

func TestReadFixes_DecodeError(t *testing.T) {
	_, err := readFixes(context.Background(), 10, nil, strings.NewReader(`{"lat": 1}`))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestReadFixes_Window(t *testing.T) {
	ndjson := `{"lat": 1, "lon": 1, "time": "2024-11-20T09:00:00Z"}
{"lat": 2, "lon": 2, "time": "2024-11-20T10:00:00Z"}
{"lat": 3, "lon": 3, "time": "2024-11-20T11:00:00Z"}
{"lat": 4, "lon": 4, "time": "2024-11-20T12:00:00Z"}
`
	keep, err := replayWindow("2024-11-20T10:00:00Z", "2024-11-20T11:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	fixes, err := readFixes(context.Background(), 10, keep, strings.NewReader(ndjson))
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 2 || fixes[0].Latitude != 2 || fixes[1].Latitude != 3 {
		t.Errorf("fixes %v", fixes)
	}

	if _, err := replayWindow("yesterday", ""); err == nil {
		t.Error("expected error for bad since")
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("MOTIOND_DISTANCE_THRESHOLD", "250")
	t.Setenv("MOTIOND_STATIONARY_TIMEOUT", "90")
	t.Setenv("MOTIOND_MQTT_BROKER", "tcp://pi.local:1883")
	t.Setenv("MOTIOND_WEB_ADDRESS", "0.0.0.0:8080")
	cfgFile = ""
	initConfig()

	cfg := loadConfig()
	if cfg.Tracker.Filter.DistanceThresholdMeters != 250 {
		t.Errorf("threshold %v", cfg.Tracker.Filter.DistanceThresholdMeters)
	}
	if cfg.Tracker.Filter.StationaryTimeout() != 90*time.Second {
		t.Errorf("timeout %v", cfg.Tracker.Filter.StationaryTimeout())
	}
	if cfg.MQTT.Broker != "tcp://pi.local:1883" {
		t.Errorf("broker %q", cfg.MQTT.Broker)
	}
	if cfg.Web.Address != "0.0.0.0:8080" {
		t.Errorf("web address %q", cfg.Web.Address)
	}

	// Unset values keep their defaults.
	defaults := params.DefaultConfig()
	if cfg.Tracker.Filter.DistanceFilterEnabled != defaults.Tracker.Filter.DistanceFilterEnabled ||
		cfg.Tracker.Name != defaults.Tracker.Name ||
		cfg.Provider.PassiveInterval != defaults.Provider.PassiveInterval ||
		cfg.MQTT.TopicPrefix != defaults.MQTT.TopicPrefix {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}
