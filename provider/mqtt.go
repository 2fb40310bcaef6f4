package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotblauer/motiond/broker"
	"github.com/rotblauer/motiond/geo/motion"
	"github.com/rotblauer/motiond/params"
	"github.com/rotblauer/motiond/types/fix"
)

// PublishTimeout bounds a cadence command publish.
var PublishTimeout = 5 * time.Second

// MQTTQueueSize is the number of received fixes held while the tracker is busy.
// Fixes arriving to a full queue are dropped.
var MQTTQueueSize = 256

// MQTT receives fixes a remote device publishes to <prefix>/<name>/fixes,
// and publishes cadence commands to <prefix>/<name>/cadence (retained),
// so the device can realize them itself.
type MQTT struct {
	client  mqtt.Client
	cfg     *params.MQTTConfig
	name    string
	logger  *slog.Logger
	dropped atomic.Uint64
}

func NewMQTT(cfg *params.MQTTConfig, name string) *MQTT {
	return NewMQTTWithClient(cfg, name, broker.NewClient(cfg, "provider"))
}

func NewMQTTWithClient(cfg *params.MQTTConfig, name string, client mqtt.Client) *MQTT {
	return &MQTT{
		client: client,
		cfg:    cfg,
		name:   name,
		logger: slog.With("provider", "mqtt", "topic", cfg.FixesTopic(name)),
	}
}

func (p *MQTT) Run(ctx context.Context, deliver func(fix.Fix)) error {
	if err := broker.Connect(ctx, p.client); err != nil {
		return err
	}
	defer p.client.Disconnect(250)

	// The handler runs on the client's router and must not block on the
	// tracker: cadence publishes wait on acks read by that same router.
	queue := make(chan fix.Fix, MQTTQueueSize)
	topic := p.cfg.FixesTopic(p.name)
	tok := p.client.Subscribe(topic, p.cfg.QoS, func(c mqtt.Client, msg mqtt.Message) {
		fixes, err := fix.DecodeBytes(msg.Payload())
		if err != nil {
			p.logger.Warn("Skipping undecodable message", "error", err, "payload", string(msg.Payload()))
		}
		for _, f := range fixes {
			select {
			case queue <- f:
			default:
				p.dropped.Add(1)
				p.logger.Warn("Queue full, dropping fix", "fix", f, "dropped", p.dropped.Load())
			}
		}
	})
	if err := broker.Wait(ctx, tok, broker.ConnectTimeout); err != nil {
		return err
	}
	p.logger.Info("Subscribed")
	defer p.client.Unsubscribe(topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-queue:
			deliver(f)
		}
	}
}

// Dropped returns the number of fixes dropped to a full queue.
func (p *MQTT) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *MQTT) SetCadence(ctx context.Context, c motion.Cadence) error {
	if err := broker.Connect(ctx, p.client); err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	tok := p.client.Publish(p.cfg.CadenceTopic(p.name), p.cfg.QoS, true, payload)
	return broker.Wait(ctx, tok, PublishTimeout)
}
