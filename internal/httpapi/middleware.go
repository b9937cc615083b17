// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/token"
)

const claimsKey = "claims"

// bearerGuard rejects requests without a valid bearer token and stores the
// claims in the request locals.
func bearerGuard(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return oops.Code(CodeUnauthorized).Errorf("missing bearer token")
		}
		claims, err := v.Parse(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) (token.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(token.Claims)
	return claims, ok
}

// observe logs and counts each request once the handler chain finishes.
// Errors are rendered first so the recorded status is final.
func (s *Server) observe(c *fiber.Ctx) error {
	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := s.handleError(c, err); herr != nil {
			return herr
		}
	}

	status := c.Response().StatusCode()
	route := c.Route().Path
	s.recorder.RecordHTTPRequest(route, status)
	s.logger.Info("http request",
		"method", c.Method(),
		"path", c.Path(),
		"route", route,
		"status", status,
		"duration", time.Since(start),
	)
	return nil
}
