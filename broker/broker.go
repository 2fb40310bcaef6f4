// Package broker builds the MQTT client shared by the MQTT provider and publisher.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotblauer/motiond/params"
)

var ErrTimeout = errors.New("mqtt: timed out")

// ConnectTimeout bounds the initial connection attempt.
var ConnectTimeout = 10 * time.Second

// NewClient returns an unconnected, auto-reconnecting client for cfg.
// suffix is appended to the configured client id so that a provider and a
// publisher in the same process don't kick each other off the broker.
func NewClient(cfg *params.MQTTConfig, suffix string) mqtt.Client {
	logger := slog.With("mqtt", cfg.Broker)

	clientID := cfg.ClientID
	if suffix != "" {
		clientID += "-" + suffix
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		logger.Info("MQTT connection established", "client", clientID)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		logger.Error("MQTT connection lost", "client", clientID, "error", err)
	})
	return mqtt.NewClient(opts)
}

// Wait blocks on tok until it completes, ctx is done or timeout passes.
func Wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}

// Connect connects c unless it already is.
func Connect(ctx context.Context, c mqtt.Client) error {
	if c.IsConnected() {
		return nil
	}
	if err := Wait(ctx, c.Connect(), ConnectTimeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}
