package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{} { return t.done }
func (t *doneToken) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool { return false }
func (m message) Qos() byte { return 0 }
func (m message) Retained() bool { return false }
func (m message) Topic() string { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte { return m.payload }
func (m message) Ack() {}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	published  []message
	handlers   map[string]paho.MessageHandler
	unsubbed   []string
	disconnect bool
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message{topic: topic, payload: payload.([]byte)})
	if h, ok := f.handlers[topic]; ok {
		h(nil, message{topic: topic, payload: payload.([]byte)})
	}
	return newToken(nil)
}

func (f *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]paho.MessageHandler{}
	}
	f.handlers[topic] = callback
	return newToken(nil)
}

func (f *fakeClient) Unsubscribe(topics ...string) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed = append(f.unsubbed, topics...)
	return newToken(nil)
}

func (f *fakeClient) Disconnect(uint) { f.disconnect = true }

func TestBroker_PublishUsesSlashTopics(t *testing.T) {
	c := &fakeClient{connected: true}
	b := newBroker(c, Config{TopicPrefix: "clinic-queue"}, nil)

	require.NoError(t, b.Publish(context.Background(), "clinic.called", []byte(`{"patient_number":4}`)))
	require.Len(t, c.published, 1)
	assert.Equal(t, "clinic-queue/clinic/called", c.published[0].topic)
}

func TestBroker_PublishWhileDisconnected(t *testing.T) {
	b := newBroker(&fakeClient{}, Config{}, nil)
	assert.Error(t, b.Publish(context.Background(), "clinic.called", nil))
}

func TestBroker_SubscribeUntilCancelled(t *testing.T) {
	c := &fakeClient{connected: true}
	b := newBroker(c, Config{TopicPrefix: "q"}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := b.Subscribe(ctx, "notification.created")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "notification.created", []byte("hi")))
	assert.Equal(t, []byte("hi"), <-ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, []string{"q/notification/created"}, c.unsubbed)

	require.NoError(t, b.Close())
	assert.True(t, c.disconnect)
}

func TestBroker_PublishError(t *testing.T) {
	c := &erroringClient{fakeClient: fakeClient{connected: true}}
	b := newBroker(c, Config{}, nil)
	assert.ErrorIs(t, b.Publish(context.Background(), "x", []byte("y")), assert.AnError)
}

type erroringClient struct {
	fakeClient
}

func (e *erroringClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	return newToken(assert.AnError)
}
