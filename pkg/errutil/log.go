// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Redacted replaces the value of sensitive keys.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":      true,
	"password_hash": true,
	"confirm":       true,
	"access_token":  true,
	"authorization": true,
	"signing_key":   true,
}

// IsSensitive reports whether values under key must never be logged.
// Matching ignores case.
func IsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Code returns the oops code carried by err, or "" if it has none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok {
			return code
		}
	}
	return ""
}

// LogError logs err at error level. For oops errors the code and context are
// logged as separate attributes, with sensitive context values redacted.
// Extra attrs are appended as given.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, append([]any{"error", err}, attrs...)...)
		return
	}

	out := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		out = append(out, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		out = append(out, "context", redactContext(ctx))
	}
	logger.Error(msg, append(out, attrs...)...)
}

func redactContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if IsSensitive(k) {
			v = Redacted
		}
		out[k] = v
	}
	return out
}
