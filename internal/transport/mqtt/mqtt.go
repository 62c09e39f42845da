// Package mqtt publishes notifications as JSON envelopes to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"maillog/internal/mail"
	"maillog/internal/transport"
)

const (
	DefaultTopic = "maillog/notifications"

	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds
	maxQoS                   = 2
)

var (
	ErrInvalidQoS     = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrPublishTimeout = errors.New("mqtt: publish timed out")
)

type Config struct {
	Broker   string // tcp://host:1883 or ssl://host:8883
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
}

// publisher is the subset of pahomqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

type Transport struct {
	client   publisher
	topic    string
	qos      byte
	retained bool
}

// Connect creates the paho client and waits for the first connection.
// Later drops are handled by paho's auto-reconnect.
func Connect(cfg Config) (*Transport, error) {
	if cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "maillog"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	if strings.HasPrefix(cfg.Broker, "ssl://") || strings.HasPrefix(cfg.Broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	return newTransport(c, cfg), nil
}

func newTransport(c publisher, cfg Config) *Transport {
	topic := strings.Trim(strings.TrimSpace(cfg.Topic), "/")
	if topic == "" {
		topic = DefaultTopic
	}
	return &Transport{client: c, topic: topic, qos: cfg.QoS, retained: cfg.Retained}
}

func (t *Transport) Send(ctx context.Context, msg *mail.Message) error {
	if msg == nil {
		return transport.ErrNilMessage
	}
	payload, err := transport.NewEnvelope(msg).Marshal()
	if err != nil {
		return err
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}

	token := t.client.Publish(t.topic, t.qos, t.retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("%w after %v", ErrPublishTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	return nil
}

func (t *Transport) Close() error {
	t.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}
