// Package httpapi exposes the engine over HTTP with Fiber handlers.
package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	authcore "github.com/authcore-io/authcore"
)

const principalLocal = "authcore_principal"

type Handler struct {
	engine *authcore.Engine
}

func NewHandler(engine *authcore.Engine) *Handler {
	return &Handler{engine: engine}
}

type signupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequestInput struct {
	Email string `json:"email"`
}

type passwordResetConfirmInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type verificationRequestInput struct {
	Email string `json:"email"`
}

type verificationConfirmInput struct {
	Token string `json:"token"`
}

type oauthInput struct {
	Code string `json:"code"`
}

// statusFromError maps engine sentinels to HTTP statuses. Credential and
// token failures share one 401 body so responses cannot be used to probe
// which accounts exist or why a token failed.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials), errors.Is(err, authcore.ErrTokenInvalid):
		return fiber.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, authcore.ErrRateLimited):
		return fiber.StatusTooManyRequests, "too many requests"
	case errors.Is(err, authcore.ErrLockedOut):
		return fiber.StatusTooManyRequests, "temporarily locked out"
	case errors.Is(err, authcore.ErrAccountExists):
		return fiber.StatusConflict, "account already exists"
	case errors.Is(err, authcore.ErrWeakPassword):
		return fiber.StatusBadRequest, "password too weak"
	case errors.Is(err, authcore.ErrChallengeInvalid):
		return fiber.StatusBadRequest, "invalid or expired token"
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}

func fail(c *fiber.Ctx, err error) error {
	status, message := statusFromError(err)
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var input signupInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	pair, err := h.engine.Signup(c.Context(), input.Name, input.Email, input.Password, c.IP())
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var input loginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	pair, err := h.engine.Login(c.Context(), input.Email, input.Password, c.IP())
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *Handler) OAuthLogin(c *fiber.Ctx) error {
	var input oauthInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	pair, err := h.engine.OAuthLogin(c.Context(), input.Code, c.IP())
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	pair, err := h.engine.Refresh(c.Context(), input.RefreshToken, c.IP())
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.engine.Logout(c.Context(), input.RefreshToken); err != nil {
		return fail(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) LogoutAll(c *fiber.Ctx) error {
	var input refreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	count, err := h.engine.LogoutAll(c.Context(), input.RefreshToken)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"revoked": count})
}

func (h *Handler) RequestPasswordReset(c *fiber.Ctx) error {
	var input passwordResetRequestInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.engine.RequestPasswordReset(c.Context(), input.Email, c.IP()); err != nil {
		return fail(c, err)
	}

	// Same response whether or not the email exists.
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var input passwordResetConfirmInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.engine.ConfirmPasswordReset(c.Context(), input.Token, input.NewPassword); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) RequestVerification(c *fiber.Ctx) error {
	var input verificationRequestInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.engine.RequestAccountVerification(c.Context(), input.Email, c.IP()); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}

func (h *Handler) ConfirmVerification(c *fiber.Ctx) error {
	var input verificationConfirmInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	if err := h.engine.ConfirmAccountVerification(c.Context(), input.Token); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// Authenticate is a Fiber middleware that verifies the bearer access token
// and stores the principal in locals.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	const bearer = "Bearer "
	if len(header) <= len(bearer) || header[:len(bearer)] != bearer {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}

	principal, err := h.engine.VerifyAccess(c.Context(), header[len(bearer):])
	if err != nil {
		return fail(c, err)
	}

	c.Locals(principalLocal, principal)
	return c.Next()
}

// RequireRole gates a route group on an exact role match. Must run after
// [Handler.Authenticate].
func (h *Handler) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := c.Locals(principalLocal).(*authcore.Principal)
		if !ok || principal.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}

// Me returns the authenticated principal.
func (h *Handler) Me(c *fiber.Ctx) error {
	principal, ok := c.Locals(principalLocal).(*authcore.Principal)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	}
	return c.Status(fiber.StatusOK).JSON(principal)
}
