package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/provider"
)

// Handler exposes the wallet endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// parseAmount converts a decimal IDR amount ("150000" or "150000.50") into
// minor units. Amounts with more than two decimal places are rejected.
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

type transactionResponse struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Status            string `json:"status"`
	Amount            string `json:"amount"`
	ProviderReference string `json:"provider_reference,omitempty"`
	Description       string `json:"description,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:                tx.ID,
		Type:              string(tx.Type),
		Status:            string(tx.Status),
		Amount:            formatAmount(tx.Amount),
		ProviderReference: tx.ProviderReference,
		Description:       tx.Description,
		CreatedAt:         tx.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         tx.UpdatedAt.Format(time.RFC3339),
	}
}

// Balance returns the wallet balance for the authenticated user.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	balance, err := h.svc.BalanceOf(c.UserContext(), userID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":  formatAmount(balance),
		"currency": "IDR",
	})
}

// Transactions lists the authenticated user's transactions, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	items, total, err := h.svc.History(c.UserContext(), userID, limit, offset)
	if err != nil {
		return mapError(err)
	}
	out := make([]transactionResponse, 0, len(items))
	for _, tx := range items {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": out,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

type topUpRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

// TopUp creates a pending top-up and returns the virtual account to pay into.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	details, err := h.svc.InitiateTopUp(c.UserContext(), userID, amount, req.Method)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction": toTransactionResponse(details.Transaction),
		"payment_instructions": fiber.Map{
			"va_number":  details.Instrument.VANumber,
			"bank_code":  details.Instrument.BankCode,
			"amount":     formatAmount(details.Transaction.Amount),
			"expires_at": details.Instrument.ExpiresAt.Format(time.RFC3339),
		},
	})
}

type qrisPayRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// QrisPay charges the wallet for a QRIS merchant payment.
func (h *Handler) QrisPay(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req qrisPayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	details, err := h.svc.QrisPay(c.UserContext(), userID, amount, req.Description)
	if err != nil {
		return mapError(err)
	}
	resp := fiber.Map{
		"transaction": toTransactionResponse(details.Transaction),
		"balance":     formatAmount(details.Balance),
	}
	if details.Instrument.QRContent != "" {
		resp["qr_content"] = details.Instrument.QRContent
	}
	if details.Instrument.RedirectURL != "" {
		resp["redirect_url"] = details.Instrument.RedirectURL
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound), errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrKYCRequired):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ErrTopUpLimitExceeded), errors.Is(err, ErrUnsupportedMethod),
		errors.Is(err, provider.ErrFractionalAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
