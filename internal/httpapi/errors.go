// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/pkg/errutil"
)

// Codes raised by the HTTP layer itself.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeTokenInvalid     = "TOKEN_INVALID"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL"
)

type errorMapping struct {
	status  int
	message string
}

var errorMappings = map[string]errorMapping{
	account.CodeDuplicateEmail:     {fiber.StatusConflict, "email already registered"},
	account.CodeAlreadyActive:      {fiber.StatusConflict, "account is already active"},
	account.CodeInvalidCredentials: {fiber.StatusUnauthorized, "invalid email or password"},
	account.CodeInactiveAccount:    {fiber.StatusForbidden, "your account is inactive"},
	account.CodeInvalidCode:        {fiber.StatusBadRequest, "code is not valid"},
	account.CodeCodeExpired:        {fiber.StatusGone, "code is expired"},
	account.CodeEmailNotFound:      {fiber.StatusNotFound, "email not found"},
	account.CodeAccountNotFound:    {fiber.StatusNotFound, "account not found"},
	account.CodePasswordMismatch:   {fiber.StatusBadRequest, "password and confirmation do not match"},
	account.CodeInvalidQuery:       {fiber.StatusBadRequest, "invalid query"},
	account.CodeInvalidID:          {fiber.StatusBadRequest, "invalid id"},
	CodeValidationFailed:           {fiber.StatusBadRequest, "request validation failed"},
	CodeUnauthorized:               {fiber.StatusUnauthorized, "missing bearer token"},
	CodeTokenInvalid:               {fiber.StatusUnauthorized, "invalid token"},
	CodeTokenExpired:               {fiber.StatusUnauthorized, "token expired"},
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: fiberCode(fe.Code), Message: fe.Message})
	}

	code := account.ErrorCode(err)
	mapping, ok := errorMappings[code]
	if !ok {
		errutil.LogError(s.logger, "request failed", err, "method", c.Method(), "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
			Error:   CodeInternal,
			Message: "internal server error",
		})
	}
	body := errorBody{Error: code, Message: mapping.message}
	if code == CodeValidationFailed {
		body.Fields = fieldErrors(err)
	}
	return c.Status(mapping.status).JSON(body)
}

func fiberCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return CodeValidationFailed
	default:
		return CodeInternal
	}
}

func validationFailed(err error) error {
	return oops.Code(CodeValidationFailed).Wrap(err)
}
