package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sol-pay/sol_backend/internal/webhooks"
)

// RegisterWebhookRoutes wires provider callbacks. The unsigned simulate
// endpoint is only available in development.
func RegisterWebhookRoutes(r fiber.Router, h *webhooks.Handler, dev bool) {
	r.Post("/webhooks/payment", h.Payment)
	r.Post("/webhooks/kyc", h.KYC)
	if dev {
		r.Post("/simulate/payment", h.SimulatePayment)
	}
}
