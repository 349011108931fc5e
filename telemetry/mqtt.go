package telemetry

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"mvave-bridge/config"
	"mvave-bridge/logging"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 500 // milliseconds
	keepAlive         = 60 * time.Second
	reconnectInitial  = time.Second
	reconnectMax      = 30 * time.Second
	maxQoS            = 2
)

// MessageHandler receives a message on a subscribed topic.
type MessageHandler func(topic string, payload []byte) error

// Broker is the part of an MQTT client the publisher and the command
// listener need. MQTTClient implements it.
type Broker interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler MessageHandler) error
	Close() error
}

// MQTTClient wraps paho with reconnect-safe subscriptions and an
// online/offline status topic backed by a last will.
type MQTTClient struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	logger *logging.Logger

	subMu sync.RWMutex
	subs  map[string]MessageHandler
}

// Connect dials the broker described by cfg and waits for the first
// connection.
func Connect(cfg config.MQTTConfig, logger *logging.Logger) (*MQTTClient, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, fmt.Errorf("%w: qos %d", ErrConnectionFailed, cfg.QoS)
	}

	c := &MQTTClient{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		logger: logging.OrDefault(logger).Category("mqtt"),
		subs:   make(map[string]MessageHandler),
	}

	opts := c.options()
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("connection lost", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return c, nil
}

func (c *MQTTClient) options() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if c.cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, c.cfg.Host, c.cfg.Port))
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(reconnectInitial)
	opts.SetMaxReconnectInterval(reconnectMax)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	opts.SetWill(c.topics.Status(), statusPayload(c.cfg.ClientID, "offline", "unexpected_disconnect"), byte(c.cfg.QoS), true)
	return opts
}

// handleConnect runs on the first connect and on every reconnect.
func (c *MQTTClient) handleConnect() {
	c.subMu.RLock()
	for topic, h := range c.subs {
		c.client.Subscribe(topic, byte(c.cfg.QoS), c.wrap(h))
	}
	c.subMu.RUnlock()

	c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, statusPayload(c.cfg.ClientID, "online", ""))
	c.logger.Info("connected", "host", c.cfg.Host, "port", c.cfg.Port)
}

// IsConnected reports the paho connection state.
func (c *MQTTClient) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends payload at the configured QoS and waits for completion.
func (c *MQTTClient) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is restored
// after a reconnect.
func (c *MQTTClient) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[topic] = handler
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, byte(c.cfg.QoS), c.wrap(handler))
	if !token.WaitTimeout(publishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

func (c *MQTTClient) forget(topic string) {
	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()
}

// wrap recovers handler panics and logs handler errors.
func (c *MQTTClient) wrap(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *MQTTClient) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, statusPayload(c.cfg.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	return nil
}

func statusPayload(clientID, status, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}
