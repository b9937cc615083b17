// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers templated account messages over SMTP, Kafka or the
// process log. Delivery is best effort; see Dispatcher.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Template names.
const (
	TemplateActivation    = "activation"
	TemplatePasswordReset = "password_reset"
)

// Drivers selectable in Config.
const (
	DriverLog   = "log"
	DriverSMTP  = "smtp"
	DriverKafka = "kafka"
)

// Message is a templated notification addressed to one recipient.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
	Data     Data   `json:"data"`
}

// Data is the template context.
type Data struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Notifier sends a single message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Config selects and configures the notification driver.
type Config struct {
	Driver      string        `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=log,enum=smtp,enum=kafka"`
	Workers     int           `koanf:"workers" json:"workers,omitempty" jsonschema:"minimum=1"`
	QueueSize   int           `koanf:"queue_size" json:"queue_size,omitempty" jsonschema:"minimum=1"`
	SendTimeout time.Duration `koanf:"send_timeout" json:"send_timeout,omitempty"`
	Debug       bool          `koanf:"debug" json:"debug,omitempty"`
	SMTP        SMTPConfig    `koanf:"smtp" json:"smtp,omitempty"`
	Kafka       KafkaConfig   `koanf:"kafka" json:"kafka,omitempty"`
}

// DefaultConfig returns the development defaults: log driver, two workers.
func DefaultConfig() Config {
	return Config{
		Driver:      DriverLog,
		Workers:     2,
		QueueSize:   256,
		SendTimeout: 10 * time.Second,
		SMTP:        SMTPConfig{Port: 587},
		Kafka:       KafkaConfig{Topic: "account-notifications"},
	}
}

// Validate checks the settings the selected driver needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverLog:
	case DriverSMTP:
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			return oops.Code("NOTIFY_CONFIG_INVALID").With("driver", c.Driver).Errorf("smtp host and from are required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return oops.Code("NOTIFY_CONFIG_INVALID").With("port", c.SMTP.Port).Errorf("smtp port out of range")
		}
	case DriverKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return oops.Code("NOTIFY_CONFIG_INVALID").With("driver", c.Driver).Errorf("kafka brokers and topic are required")
		}
	default:
		return oops.Code("NOTIFY_CONFIG_INVALID").With("driver", c.Driver).Errorf("unknown notification driver")
	}
	if c.Workers < 1 || c.QueueSize < 1 {
		return oops.Code("NOTIFY_CONFIG_INVALID").Errorf("workers and queue_size must be positive")
	}
	if c.SendTimeout < 0 {
		return oops.Code("NOTIFY_CONFIG_INVALID").With("send_timeout", c.SendTimeout).Errorf("send_timeout must not be negative")
	}
	return nil
}

// Transport is a Notifier whose resources must be released.
type Transport interface {
	Notifier
	Close() error
}

// New builds the transport selected by cfg.
func New(cfg Config, logger *slog.Logger) (Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverSMTP:
		return NewMailer(cfg.SMTP)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka), nil
	default:
		return NewLogNotifier(logger, cfg.Debug), nil
	}
}
