// Package mqtt provides an abstraction for MQTT client functionality used
// to publish confirmed attendance events.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/jsalmela/attendant/internal/conf"
	"github.com/jsalmela/attendant/internal/logging"
)

// Client is the interface the engine publishes attendance events through.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
	Disconnect()
}

// Config holds MQTT connection settings.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	ReconnectCooldown time.Duration
}

type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	logger          *slog.Logger
}

// NewClient creates a new MQTT client from settings.
func NewClient(settings *conf.Settings) Client {
	return &client{
		config: Config{
			Broker:            settings.Realtime.MQTT.Broker,
			ClientID:          settings.Main.Name,
			Username:          settings.Realtime.MQTT.Username,
			Password:          settings.Realtime.MQTT.Password,
			ReconnectCooldown: 5 * time.Second,
		},
		logger: logging.ForService("mqtt"),
	}
}

// Connect attempts to establish a connection to the MQTT broker.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastConnAttempt.IsZero() && time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to broker %s: %w", c.config.Broker, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	c.logger.Info("connected to MQTT broker", "broker", c.config.Broker)
	return nil
}

// Publish sends a payload to the given topic.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	internalClient := c.internalClient
	c.mu.Unlock()

	if internalClient == nil || !internalClient.IsConnected() {
		return fmt.Errorf("not connected to broker")
	}

	token := internalClient.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether the client currently has a broker connection.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the broker connection.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(250)
	}
}
