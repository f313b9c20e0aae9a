package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sol-pay/sol_backend/internal/admin"
)

// RegisterAdminRoutes wires the back-office endpoints.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler, guard fiber.Handler) {
	r.Post("/login", h.Login)
	r.Post("/refund", guard, h.Refund)
	r.Get("/stats", guard, h.Stats)
	r.Get("/reconcile/:userId", guard, h.Reconcile)
}
