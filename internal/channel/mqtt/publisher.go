package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// PublishTelemetry publishes one occupancy event at QoS 0. It fails fast while
// disconnected and never retries.
func (c *Client) PublishTelemetry(_ context.Context, event presence.TelemetryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode telemetry: %w", presence.ErrChannelFailed, err)
	}

	return c.publish(c.opts.TelemetryTopic, telemetryQoS, false, payload)
}

// PublishStatus publishes the retained heartbeat.
func (c *Client) PublishStatus(_ context.Context, status Status) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("%w: encode status: %w", presence.ErrChannelFailed, err)
	}

	return c.publish(c.opts.StatusTopic, statusQoS, true, payload)
}

// PublishCommand sends a lock command to the command topic.
func (c *Client) PublishCommand(_ context.Context, cmd lock.RemoteCommand) error {
	payload, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("%w: encode command: %w", presence.ErrChannelFailed, err)
	}

	return c.publish(c.opts.CommandTopic, commandQoS, false, payload)
}

func (c *Client) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("%w: publish to %s: not connected", presence.ErrChannelFailed, topic)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return fmt.Errorf("%w: publish to %s: %w", presence.ErrChannelFailed, topic, errPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish to %s: %w", presence.ErrChannelFailed, topic, err)
	}

	return nil
}
