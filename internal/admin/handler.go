package admin

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/sol-pay/sol_backend/internal/auth"
	"github.com/sol-pay/sol_backend/internal/ledger"
)

// Handler exposes the back-office endpoints.
type Handler struct {
	svc    *Service
	tokens *auth.TokenService
}

func NewHandler(svc *Service, tokens *auth.TokenService) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login issues an admin token for the configured credentials.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Authenticate(req.Email, req.Password); err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	token, err := h.tokens.Issue(req.Email, auth.RoleAdmin)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"access_token": token,
		"expires_in":   int64(h.tokens.TTL().Seconds()),
	})
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason"`
}

// Refund credits back a settled payment.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.TransactionID == "" {
		return fiber.NewError(http.StatusBadRequest, "transaction_id is required")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	refund, balance, err := h.svc.Refund(c.UserContext(), req.TransactionID, amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrRefundExceedsOriginal), errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"refund_id":      refund.ID,
		"user_id":        refund.UserID,
		"amount":         formatAmount(refund.Amount),
		"wallet_balance": formatAmount(balance),
	})
}

// Stats reports platform-wide ledger figures.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.svc.Stats(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	byKYC := make(map[string]int64, len(stats.ByKYC))
	for status, count := range stats.ByKYC {
		byKYC[string(status)] = count
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_count":         stats.UserCount,
		"users_by_kyc":       byKYC,
		"wallet_count":       stats.WalletCount,
		"total_balance":      formatAmount(stats.TotalBalance),
		"total_transactions": stats.TotalTransactions,
		"by_status":          byStatus,
		"topup_volume":       formatAmount(stats.TopUpVolume),
		"payment_volume":     formatAmount(stats.PaymentVolume),
		"refund_volume":      formatAmount(stats.RefundVolume),
	})
}

// Reconcile checks one user's wallet balance against the settled transaction
// set.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	userID := c.Params("userId")
	rec, err := h.svc.Reconcile(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":        rec.UserID,
		"wallet_balance": formatAmount(rec.WalletBalance),
		"settled_net":    formatAmount(rec.SettledNet),
		"consistent":     rec.Consistent(),
	})
}

func parseAmount(raw string) (int64, error) {
	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errors.New("invalid amount")
	}
	minor := dec.Shift(2)
	if !minor.IsInteger() {
		return 0, errors.New("amount precision exceeds two decimal places")
	}
	if !minor.IsPositive() {
		return 0, ledger.ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

func formatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
