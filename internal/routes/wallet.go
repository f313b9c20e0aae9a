package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sol-pay/sol_backend/internal/wallet"
)

// RegisterWalletRoutes wires the authenticated wallet endpoints. Mutating
// endpoints run behind the idempotency middleware.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, idem fiber.Handler) {
	r.Get("/balance", h.Balance)
	r.Get("/transactions", h.Transactions)
	r.Post("/topup", idem, h.TopUp)
	r.Post("/qris-pay", idem, h.QrisPay)
}
