// Package brokertest provides an in-memory MQTT client for tests.
// Topics match exactly; wildcards are not supported.
package brokertest

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type token struct {
	err  error
	done chan struct{}
}

func newToken(err error) *token {
	t := &token{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.done }
func (t *token) Error() error                   { return t.err }

// Message is a published message.
type Message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return m.qos }
func (m *Message) Retained() bool    { return m.retained }
func (m *Message) Topic() string     { return m.topic }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.payload }
func (m *Message) Ack()              {}

// Client is an in-memory mqtt.Client. Publishes are delivered synchronously
// to the subscribers of the same Client.
type Client struct {
	mu        sync.Mutex
	connected bool
	subs      map[string]mqtt.MessageHandler
	retained  map[string]*Message
	published []*Message

	// FailPublish, when set, is returned by every Publish.
	FailPublish error
}

var _ mqtt.Client = (*Client)(nil)

func New() *Client {
	return &Client{
		subs:     map[string]mqtt.MessageHandler{},
		retained: map[string]*Message{},
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return newToken(nil)
}

func (c *Client) Disconnect(quiesce uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	default:
		return newToken(fmt.Errorf("unknown payload type %T", payload))
	}
	c.mu.Lock()
	if c.FailPublish != nil {
		err := c.FailPublish
		c.mu.Unlock()
		return newToken(err)
	}
	if !c.connected {
		c.mu.Unlock()
		return newToken(fmt.Errorf("not connected"))
	}
	msg := &Message{topic: topic, qos: qos, retained: retained, payload: b}
	c.published = append(c.published, msg)
	if retained {
		c.retained[topic] = msg
	}
	h := c.subs[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, msg)
	}
	return newToken(nil)
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subs[topic] = callback
	msg := c.retained[topic]
	c.mu.Unlock()
	if msg != nil && callback != nil {
		callback(c, msg)
	}
	return newToken(nil)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return newToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	return newToken(nil)
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = callback
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// Subscribed reports whether anything is subscribed to topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

// Published returns the messages published on topic, oldest first.
func (c *Client) Published(topic string) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Message
	for _, m := range c.published {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}
