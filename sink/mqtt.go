package sink

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rotblauer/motiond/broker"
	"github.com/rotblauer/motiond/events"
	"github.com/rotblauer/motiond/params"
)

// MQTTPublisher forwards events as JSON to <prefix>/<name>/events/<kind>.
type MQTTPublisher struct {
	client  mqtt.Client
	cfg     *params.MQTTConfig
	name    string
	timeout time.Duration
}

func NewMQTTPublisher(cfg *params.MQTTConfig, name string) *MQTTPublisher {
	return NewMQTTPublisherWithClient(cfg, name, broker.NewClient(cfg, "publisher"))
}

func NewMQTTPublisherWithClient(cfg *params.MQTTConfig, name string, client mqtt.Client) *MQTTPublisher {
	return &MQTTPublisher{client: client, cfg: cfg, name: name, timeout: 5 * time.Second}
}

func (p *MQTTPublisher) Emit(ctx context.Context, ev events.Event) error {
	if err := broker.Connect(ctx, p.client); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	tok := p.client.Publish(p.cfg.EventsTopic(p.name, ev.Kind.String()), p.cfg.QoS, p.cfg.Retain, payload)
	return broker.Wait(ctx, tok, p.timeout)
}

func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
