// Package mqtt bridges integration events to MQTT consumers such as LED
// counter boards and pagers.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jwalitptl/clinic-queue/pkg/logger"
	"github.com/jwalitptl/clinic-queue/pkg/messaging"
)

type Config struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	TopicPrefix  string
	QoS          byte
	Retain       bool
	WriteTimeout time.Duration
}

// client is the part of paho.Client the broker uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

type Broker struct {
	client client
	cfg    Config
	log    *logger.Logger
}

var _ messaging.Broker = (*Broker)(nil)

// NewBroker connects with auto-reconnect enabled.
func NewBroker(cfg Config, log *logger.Logger) (*Broker, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("broker", "mqtt")

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c paho.Client) {
		log.Info("mqtt connection established", "broker", cfg.Broker)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err.Error())
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return newBroker(c, cfg, log), nil
}

func newBroker(c client, cfg Config, log *logger.Logger) *Broker {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Broker{client: c, cfg: cfg, log: log}
}

func (b *Broker) Topic(eventType string) string {
	return messaging.Topic(b.cfg.TopicPrefix, eventType, "/")
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if !b.client.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := b.client.Publish(b.Topic(topic), b.cfg.QoS, b.cfg.Retain, payload)
	return b.wait(ctx, token, "publish")
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	full := b.Topic(topic)
	out := make(chan []byte, 100)
	token := b.client.Subscribe(full, b.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		select {
		case out <- msg.Payload():
		default:
			b.log.Warn("mqtt subscriber lagging, dropping message", "topic", msg.Topic())
		}
	})
	if err := b.wait(ctx, token, "subscribe"); err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		b.client.Unsubscribe(full).WaitTimeout(b.cfg.WriteTimeout)
		close(out)
	}()
	return out, nil
}

func (b *Broker) Close() error {
	b.client.Disconnect(250)
	return nil
}

func (b *Broker) wait(ctx context.Context, token paho.Token, op string) error {
	timer := time.NewTimer(b.cfg.WriteTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt %s failed: %w", op, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("mqtt %s timeout", op)
	case <-ctx.Done():
		return ctx.Err()
	}
}
