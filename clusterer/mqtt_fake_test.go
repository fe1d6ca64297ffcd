package clusterer

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken is an mqtt.Token that has already completed
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient is an in-memory mqtt.Client. Messages are delivered
// synchronously to the handler subscribed on the exact topic.
type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	subscribed map[string]byte
	handlers   map[string]mqtt.MessageHandler
	sent       []published
}

func newFakeClient(connected bool) *fakeClient {
	return &fakeClient{
		connected:  connected,
		subscribed: make(map[string]byte),
		handlers:   make(map[string]mqtt.MessageHandler),
	}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{mqtt.ErrNotConnected}
	}
	if c.publishErr != nil {
		return doneToken{c.publishErr}
	}
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}
	c.sent = append(c.sent, published{topic: topic, qos: qos, retain: retained, payload: data})
	return doneToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return doneToken{mqtt.ErrNotConnected}
	}
	for topic, qos := range filters {
		c.subscribed[topic] = qos
		c.handlers[topic] = callback
	}
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.subscribed, topic)
		delete(c.handlers, topic)
	}
	return doneToken{}
}

func (c *fakeClient) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = callback
}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// deliver hands payload to the handler of topic, reporting whether one was subscribed
func (c *fakeClient) deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	handler := c.handlers[topic]
	c.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(c, &fakeMessage{topic: topic, payload: payload})
	return true
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]published, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
