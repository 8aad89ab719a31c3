package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kneeflexiq/internal/config"
	"kneeflexiq/internal/types"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Client mirrors readings and link health to a broker. It is strictly a side
// channel: nothing here gates the HTTP post.
type Client struct {
	client    mqtt.Client
	deviceID  string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Agent, logger *slog.Logger) *Client {
	c := &Client{
		deviceID: cfg.DeviceID,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Broker drops this if the agent dies without a clean Disconnect.
	will, _ := json.Marshal(types.LinkHealth{DeviceID: cfg.DeviceID, Connected: false})
	opts.SetBinaryWill(healthTopic(cfg.DeviceID), will, 1, true)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

func telemetryTopic(deviceID string) string { return fmt.Sprintf("devices/%s/flex", deviceID) }
func healthTopic(deviceID string) string    { return fmt.Sprintf("devices/%s/health", deviceID) }

// Connect waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true) paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishReading mirrors one flex value on devices/<id>/flex.
func (c *Client) PublishReading(value int, at time.Time) error {
	return c.publish(telemetryTopic(c.deviceID), false, types.Telemetry{
		DeviceID:  c.deviceID,
		Timestamp: at,
		FlexValue: value,
	})
}

// PublishLinkHealth publishes a retained link-state message.
func (c *Client) PublishLinkHealth(connected bool, at time.Time) error {
	return c.publish(healthTopic(c.deviceID), true, types.LinkHealth{
		DeviceID:  c.deviceID,
		Connected: connected,
		ChangedAt: at,
	})
}

func (c *Client) publish(topic string, retained bool, v any) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	// Returns before the broker acks; awaitPublish logs the outcome.
	token := c.client.Publish(topic, 1, retained, data)
	go c.awaitPublish(token, topic, retained)
	return nil
}

func (c *Client) awaitPublish(token mqtt.Token, topic string, retained bool) {
	if !token.WaitTimeout(publishTimeout) {
		c.logger.Warn("mqtt publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("mqtt published", "topic", topic, "retained", retained)
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent; after Disconnect, Connect returns "client stopped".
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
