package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Post("/api/v1/signup", h.Signup)
	app.Post("/api/v1/login", h.Login)
	app.Post("/api/v1/oauth/login", h.OAuthLogin)
	app.Post("/api/v1/refresh", h.Refresh)
	app.Post("/api/v1/logout", h.Logout)
	app.Post("/api/v1/logout/all", h.LogoutAll)

	app.Post("/api/v1/password-reset/request", h.RequestPasswordReset)
	app.Post("/api/v1/password-reset/confirm", h.ConfirmPasswordReset)
	app.Post("/api/v1/verification/request", h.RequestVerification)
	app.Post("/api/v1/verification/confirm", h.ConfirmVerification)

	authed := app.Group("/api/v1", h.Authenticate)
	authed.Get("/me", h.Me)
}
