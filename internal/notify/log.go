// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	logger    *slog.Logger
	showCodes bool
}

// NewLogNotifier creates a LogNotifier. Codes are logged only when showCodes is set.
func NewLogNotifier(logger *slog.Logger, showCodes bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, showCodes: showCodes}
}

// Send logs msg at info level.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	attrs := []any{"to", msg.To, "subject", msg.Subject, "template", msg.Template}
	if n.showCodes {
		attrs = append(attrs, "code", msg.Data.Code)
	}
	n.logger.InfoContext(ctx, "notification", attrs...)
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error { return nil }
