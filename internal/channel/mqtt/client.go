package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/smart-lock/internal/logger"
)

// Quality of service levels used on each topic.
const (
	telemetryQoS byte = 0
	commandQoS   byte = 1
	statusQoS    byte = 1
)

const (
	// disconnectQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250
	// connectRetryInterval spaces connection attempts while the broker is unreachable.
	connectRetryInterval = 5 * time.Second
	// defaultPublishTimeout bounds a publish when Options leave it unset.
	defaultPublishTimeout = time.Second
)

// errPublishTimeout is returned when the broker does not acknowledge in time.
var errPublishTimeout = errors.New("publish timed out")

// MessageHandler receives command payloads. Calls are sequential, in arrival order.
type MessageHandler func(ctx context.Context, payload []byte)

// Options configures a Client.
type Options struct {
	// Broker is the broker URL, for example ssl://broker:8883.
	Broker string
	// ClientID identifies the session on the broker.
	ClientID string
	// CommandTopic is subscribed when a handler is given.
	CommandTopic string
	// TelemetryTopic receives occupancy events.
	TelemetryTopic string
	// StatusTopic carries the retained heartbeat.
	StatusTopic string
	// Announce registers an offline last-will on StatusTopic and publishes the
	// same farewell on Close. Only the daemon announces itself.
	Announce bool
	// TLS holds the transport security settings.
	TLS TLSOptions
	// KeepAlive is the MQTT keep-alive period.
	KeepAlive time.Duration
	// PublishTimeout bounds every publish.
	PublishTimeout time.Duration
	// ConnectTimeout bounds the initial wait for a connection. The client keeps
	// retrying in the background once it expires.
	ConnectTimeout time.Duration
}

// Client is a connected command channel.
type Client struct {
	// client is the underlying Paho client.
	client paho.Client
	// opts are the settings the client was built with.
	opts Options
	// handler receives command payloads; nil for publish-only clients.
	handler MessageHandler
	// baseCtx carries the logger into Paho callbacks.
	baseCtx context.Context //nolint:containedctx // Paho callbacks have no context of their own.
}

// Connect dials the broker and, when handler is not nil, subscribes it to the
// command topic. If the broker is unreachable within ConnectTimeout the client
// is still returned and keeps retrying in the background.
func Connect(ctx context.Context, opts Options, handler MessageHandler) (*Client, error) {
	tlsConfig, err := opts.TLS.Config()
	if err != nil {
		return nil, err
	}

	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	c := &Client{
		opts:    opts,
		handler: handler,
		baseCtx: logger.WithName(context.WithoutCancel(ctx), "mqtt"),
	}

	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetTLSConfig(tlsConfig).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.KeepAlive > 0 {
		clientOptions.SetKeepAlive(opts.KeepAlive)
	}

	if opts.Announce && opts.StatusTopic != "" {
		clientOptions.SetWill(opts.StatusTopic, string(offlinePayload()), statusQoS, true)
	}

	c.client = paho.NewClient(clientOptions)

	token := c.client.Connect()

	if opts.ConnectTimeout > 0 && !token.WaitTimeout(opts.ConnectTimeout) {
		logger.WarnKV(c.baseCtx, "Broker not reachable yet, retrying in background", "broker", opts.Broker)
		return c, nil
	}

	if opts.ConnectTimeout <= 0 {
		token.Wait()
	}

	if err = token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, err)
	}

	return c, nil
}

// newClient wraps an existing Paho client.
func newClient(ctx context.Context, client paho.Client, opts Options, handler MessageHandler) *Client {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	return &Client{
		client:  client,
		opts:    opts,
		handler: handler,
		baseCtx: logger.WithName(ctx, "mqtt"),
	}
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close marks the device offline on the status topic and disconnects.
func (c *Client) Close() {
	if c.opts.Announce && c.opts.StatusTopic != "" && c.client.IsConnectionOpen() {
		token := c.client.Publish(c.opts.StatusTopic, statusQoS, true, offlinePayload())
		token.WaitTimeout(c.opts.PublishTimeout)
	}

	c.client.Disconnect(disconnectQuiesce)
	logger.Info(c.baseCtx, "Disconnected from broker")
}

func (c *Client) onConnect(client paho.Client) {
	logger.InfoKV(c.baseCtx, "Connected to broker", "broker", c.opts.Broker)

	if c.handler == nil || c.opts.CommandTopic == "" {
		return
	}

	// Subscriptions do not survive a reconnect with a clean session.
	token := client.Subscribe(c.opts.CommandTopic, commandQoS, c.onMessage)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		logger.ErrorKV(c.baseCtx, "Subscribe timed out", "topic", c.opts.CommandTopic)
		return
	}

	if err := token.Error(); err != nil {
		logger.ErrorKV(c.baseCtx, "Subscribe failed", "topic", c.opts.CommandTopic, "error", err)
		return
	}

	logger.InfoKV(c.baseCtx, "Subscribed to commands", "topic", c.opts.CommandTopic)
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	logger.WarnKV(c.baseCtx, "Connection to broker lost", "error", err)
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	ctx := logger.WithKV(c.baseCtx, "topic", msg.Topic())

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Command handler panicked", "panic", r)
		}
	}()

	c.handler(ctx, msg.Payload())
}
