// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "smtp complete", mutate: func(c *Config) {
			c.Driver = DriverSMTP
			c.SMTP.Host = "mail.example.com"
			c.SMTP.From = "noreply@example.com"
		}},
		{name: "smtp missing host", wantErr: true, mutate: func(c *Config) {
			c.Driver = DriverSMTP
			c.SMTP.From = "noreply@example.com"
		}},
		{name: "smtp bad port", wantErr: true, mutate: func(c *Config) {
			c.Driver = DriverSMTP
			c.SMTP.Host = "mail.example.com"
			c.SMTP.From = "noreply@example.com"
			c.SMTP.Port = 70000
		}},
		{name: "kafka complete", mutate: func(c *Config) {
			c.Driver = DriverKafka
			c.Kafka.Brokers = []string{"localhost:9092"}
		}},
		{name: "kafka missing brokers", wantErr: true, mutate: func(c *Config) {
			c.Driver = DriverKafka
		}},
		{name: "unknown driver", wantErr: true, mutate: func(c *Config) { c.Driver = "pigeon" }},
		{name: "zero workers", wantErr: true, mutate: func(c *Config) { c.Workers = 0 }},
		{name: "zero send timeout is unbounded", mutate: func(c *Config) { c.SendTimeout = 0 }},
		{name: "negative send timeout", wantErr: true, mutate: func(c *Config) { c.SendTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "NOTIFY_CONFIG_INVALID")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_SelectsDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	cfg := DefaultConfig()
	tr, err := New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, tr)

	cfg.Driver = DriverSMTP
	cfg.SMTP.Host, cfg.SMTP.From = "mail.example.com", "noreply@example.com"
	tr, err = New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &Mailer{}, tr)

	cfg = DefaultConfig()
	cfg.Driver = DriverKafka
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	tr, err = New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, tr)
	assert.NoError(t, tr.Close())

	_, err = New(Config{Driver: "pigeon"}, logger)
	errutil.AssertErrorCode(t, err, "NOTIFY_CONFIG_INVALID")
}

func TestLogNotifier_Send(t *testing.T) {
	msg := Message{To: "ada@example.com", Subject: "Activate your account", Template: TemplateActivation, Data: Data{Name: "Ada", Code: "s3cret"}}

	t.Run("hides codes by default", func(t *testing.T) {
		var buf bytes.Buffer
		n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)), false)
		require.NoError(t, n.Send(context.Background(), msg))
		assert.Contains(t, buf.String(), "to=ada@example.com")
		assert.Contains(t, buf.String(), "template=activation")
		assert.NotContains(t, buf.String(), "s3cret")
	})

	t.Run("shows codes in debug mode", func(t *testing.T) {
		var buf bytes.Buffer
		n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)), true)
		require.NoError(t, n.Send(context.Background(), msg))
		assert.Contains(t, buf.String(), "code=s3cret")
		assert.NoError(t, n.Close())
	})
}
