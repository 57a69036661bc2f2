package mqtt

import "github.com/oshokin/smart-lock/internal/config"

// FromConfig maps the channel settings to client options. The result does not
// announce presence; the daemon turns Announce on.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Broker:         cfg.Channel.Broker,
		ClientID:       cfg.Channel.ClientID,
		CommandTopic:   cfg.Channel.CommandTopic,
		TelemetryTopic: cfg.Channel.TelemetryTopic,
		StatusTopic:    cfg.Channel.StatusTopic,
		TLS: TLSOptions{
			CACertFile:         cfg.Channel.CACertFile,
			CertFile:           cfg.Channel.CertFile,
			KeyFile:            cfg.Channel.KeyFile,
			InsecureSkipVerify: cfg.Channel.InsecureSkipVerify,
		},
		KeepAlive:      cfg.Channel.KeepAlive,
		PublishTimeout: cfg.Channel.PublishTimeout,
		ConnectTimeout: cfg.Timeout,
	}
}
