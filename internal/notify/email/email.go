package email

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/oshokin/smart-lock/internal/domain/presence"
)

// Options configures a Notifier.
type Options struct {
	// Host is the SMTP server.
	Host string
	// Port is the submission port.
	Port int
	// From is the sender address.
	From string
	// To is the recipient address.
	To string
	// Username authenticates the session.
	Username string
	// Password authenticates the session.
	Password string
	// Timeout bounds dialing and sending.
	Timeout time.Duration
}

// Notifier sends one message per alert. Delivery is never retried.
type Notifier struct {
	// opts holds server and addresses.
	opts Options
}

// New creates a Notifier.
func New(opts Options) *Notifier {
	return &Notifier{opts: opts}
}

// Subject is the message subject for alert.
func Subject(alert presence.Alert) string {
	if !alert.Known {
		return "Unknown Person at Your Door"
	}

	return alert.Label + " at Your Door"
}

// Body is the plain text body for alert.
func Body(alert presence.Alert) string {
	if !alert.Known {
		return "An unknown individual was detected at your door."
	}

	return alert.Label + " was detected at your door."
}

// Message builds the e-mail for alert.
func (n *Notifier) Message(alert presence.Alert) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(n.opts.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}

	if err := msg.To(n.opts.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	msg.Subject(Subject(alert))
	msg.SetBodyString(mail.TypeTextPlain, Body(alert))

	if len(alert.Image) > 0 {
		if err := msg.AttachReader(alert.ImageName, bytes.NewReader(alert.Image)); err != nil {
			return nil, fmt.Errorf("attach image: %w", err)
		}
	}

	return msg, nil
}

// Notify sends the alert. Failures wrap presence.ErrNotificationFailed.
func (n *Notifier) Notify(ctx context.Context, alert presence.Alert) error {
	msg, err := n.Message(alert)
	if err != nil {
		return fmt.Errorf("%w: %w", presence.ErrNotificationFailed, err)
	}

	client, err := mail.NewClient(n.opts.Host,
		mail.WithPort(n.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.opts.Username),
		mail.WithPassword(n.opts.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(n.opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("%w: create client: %w", presence.ErrNotificationFailed, err)
	}

	if err = client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: send to %s: %w", presence.ErrNotificationFailed, n.opts.To, err)
	}

	return nil
}
