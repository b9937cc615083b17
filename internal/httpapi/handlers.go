// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
)

type handlers struct {
	svc Services
}

type validatable interface {
	Validate() error
}

// bind decodes the JSON body into dst and validates it.
func bind[T validatable](c *fiber.Ctx, dst *T) error {
	if err := c.BodyParser(dst); err != nil {
		return oops.Code(CodeValidationFailed).With("operation", "decode body").Wrap(err)
	}
	if err := (*dst).Validate(); err != nil {
		return validationFailed(err)
	}
	return nil
}

type idResponse struct {
	ID string `json:"_id"`
}

type loginResponse struct {
	User        account.Principal `json:"user"`
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.Auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse{User: res.Account, AccessToken: res.Token.Value, ExpiresAt: res.Token.ExpiresAt})
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.svc.Lifecycle.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id.String()})
}

func (h *handlers) checkCode(c *fiber.Ctx) error {
	var req checkCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Lifecycle.CheckCode(c.UserContext(), req.ID, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"isBeforeExpired": true})
}

func (h *handlers) retryActive(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.svc.Lifecycle.RetryActivate(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(idResponse{ID: id.String()})
}

func (h *handlers) retryPassword(c *fiber.Ctx) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.svc.Lifecycle.RetryPassword(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"_id": ticket.ID.String(), "email": ticket.Email})
}

func (h *handlers) changePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.svc.Lifecycle.ChangePassword(c.UserContext(), req.Email, req.Code, req.Password, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return c.JSON(idResponse{ID: id.String()})
}

func (h *handlers) profile(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return oops.Code(CodeUnauthorized).Errorf("no claims on request")
	}
	return c.JSON(fiber.Map{"sub": claims.SubjectID, "username": claims.Principal})
}

func (h *handlers) createUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id, err := h.svc.Admin.Create(c.UserContext(), account.CreateInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id.String()})
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	q, err := parseQuery(c)
	if err != nil {
		return err
	}
	page, err := h.svc.Admin.List(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *handlers) getUser(c *fiber.Ctx) error {
	view, err := h.svc.Admin.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *handlers) updateUser(c *fiber.Ctx) error {
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	id := c.Params("id")
	err := h.svc.Admin.Update(c.UserContext(), id, account.UpdateInput{
		Email:   req.Email,
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		return err
	}
	return c.JSON(idResponse{ID: id})
}

func (h *handlers) deleteUser(c *fiber.Ctx) error {
	if err := h.svc.Admin.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
