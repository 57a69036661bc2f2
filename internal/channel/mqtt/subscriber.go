package mqtt

import (
	"context"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// FetchStatus waits for the retained heartbeat on the status topic.
func (c *Client) FetchStatus(ctx context.Context) (Status, error) {
	received := make(chan []byte, 1)

	token := c.client.Subscribe(c.opts.StatusTopic, statusQoS, func(_ paho.Client, msg paho.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	})

	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return Status{}, fmt.Errorf("%w: subscribe to %s: %w", presence.ErrChannelFailed, c.opts.StatusTopic, errPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return Status{}, fmt.Errorf("%w: subscribe to %s: %w", presence.ErrChannelFailed, c.opts.StatusTopic, err)
	}

	defer c.client.Unsubscribe(c.opts.StatusTopic)

	select {
	case <-ctx.Done():
		return Status{}, fmt.Errorf("wait for status: %w", ctx.Err())
	case payload := <-received:
		status, err := DecodeStatus(payload)
		if err != nil {
			return Status{}, fmt.Errorf("decode status: %w", err)
		}

		return status, nil
	}
}
