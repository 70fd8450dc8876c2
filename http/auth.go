package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/domain"
	"github.com/scribe-notes/server/store"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return statusFor(err)
	}

	user := domain.NewUser(req.Name, req.Email, hash)
	if err := s.users.Create(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return fiber.NewError(fiber.StatusConflict, "email already registered")
		}
		s.log.Error().Err(err).Msg("register failed")
		return statusFor(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("token issue failed")
		return statusFor(err)
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(c.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// One answer for unknown email and wrong password.
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("token issue failed")
		return statusFor(err)
	}
	return c.JSON(authResponse{Token: token, User: user})
}
