package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken completes immediately unless hang is set.
type fakeToken struct {
	err  error
	hang bool
}

func (t *fakeToken) Wait() bool {
	return !t.hang
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	return !t.hang
}

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.hang {
		close(ch)
	}

	return ch
}

func (t *fakeToken) Error() error {
	return t.err
}

// published is one recorded Publish call.
type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records publishes and subscriptions. Methods not overridden panic
// through the nil embedded interface.
type fakePaho struct {
	paho.Client

	mu            sync.Mutex
	connected     bool
	publishToken  *fakeToken
	publishes     []published
	subscriptions map[string]paho.MessageHandler
	disconnected  bool
	retained      map[string][]byte
}

func newFakePaho() *fakePaho {
	return &fakePaho{
		connected:     true,
		publishToken:  &fakeToken{},
		subscriptions: make(map[string]paho.MessageHandler),
		retained:      make(map[string][]byte),
	}
}

func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload any) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, _ := payload.([]byte)
	f.publishes = append(f.publishes, published{topic: topic, qos: qos, retained: retained, payload: data})

	return f.publishToken
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	f.subscriptions[topic] = callback
	payload, ok := f.retained[topic]
	f.mu.Unlock()

	if ok {
		go callback(f, &fakeMessage{topic: topic, payload: payload})
	}

	return &fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, topic := range topics {
		delete(f.subscriptions, topic)
	}

	return &fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnected = true
	f.connected = false
}

func (f *fakePaho) Publishes() []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]published(nil), f.publishes...)
}

func (f *fakePaho) Subscription(topic string) paho.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.subscriptions[topic]
}

// fakeMessage is an inbound message.
type fakeMessage struct {
	paho.Message

	topic   string
	payload []byte
}

func (m *fakeMessage) Topic() string {
	return m.topic
}

func (m *fakeMessage) Payload() []byte {
	return m.payload
}
