package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/pkg/util"
)

// AuthHandler exchanges the operator key for a short-lived token.
type AuthHandler struct {
	tokens *auth.TokenManager
	cfg    config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(tokens *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{tokens: tokens, cfg: cfg}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Key == "" {
		return util.NewValidationError("key required", nil)
	}
	if h.cfg.OperatorKeyHash == "" {
		return util.NewForbidden("operator access not configured")
	}

	if err := auth.CompareKey(h.cfg.OperatorKeyHash, req.Key); err != nil {
		return util.NewUnauthorized("invalid key")
	}

	token, exp, err := h.tokens.GenerateToken()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}
