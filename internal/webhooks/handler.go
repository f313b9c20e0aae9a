package webhooks

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/sol-pay/sol_backend/internal/identity"
	"github.com/sol-pay/sol_backend/internal/ledger"
	"github.com/sol-pay/sol_backend/internal/notification"
	"github.com/sol-pay/sol_backend/internal/provider"
	"github.com/sol-pay/sol_backend/internal/wallet"
)

const signatureHeader = "X-Callback-Signature"

// Handler receives provider callbacks for payments and KYC results.
type Handler struct {
	wallets  *wallet.Service
	ids      *identity.Service
	notifier notification.Notifier

	paymentSecret string
	kycSecret     string
}

func NewHandler(wallets *wallet.Service, ids *identity.Service, notifier notification.Notifier, paymentSecret, kycSecret string) *Handler {
	return &Handler{
		wallets:       wallets,
		ids:           ids,
		notifier:      notifier,
		paymentSecret: paymentSecret,
		kycSecret:     kycSecret,
	}
}

type paymentCallback struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`

	// Midtrans notification fields.
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// Payment applies a provider settlement callback. Replays of already settled
// references return 200 with applied=false and change nothing.
func (h *Handler) Payment(c *fiber.Ctx) error {
	if h.paymentSecret != "" {
		sig := c.Get(signatureHeader)
		if !provider.VerifyWebhookSignature(c.Body(), sig, h.paymentSecret) {
			return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
		}
	}

	var cb paymentCallback
	if err := c.BodyParser(&cb); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	event, err := toEvent(cb)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if event.ProviderReference == "" {
		return fiber.NewError(http.StatusBadRequest, "reference is required")
	}
	if event.Outcome == "" {
		// Intermediate status such as a pending capture; acknowledge and wait
		// for the terminal callback.
		tx, err := h.wallets.TransactionByReference(c.UserContext(), event.ProviderReference)
		if err != nil {
			if errors.Is(err, ledger.ErrTransactionNotFound) {
				return fiber.NewError(http.StatusNotFound, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"applied":        false,
			"transaction_id": tx.ID,
			"status":         string(tx.Status),
		})
	}

	result, err := h.wallets.ApplySettlement(c.UserContext(), event)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrAmountMismatch), errors.Is(err, ledger.ErrInvalidOutcome):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"applied":        result.Applied,
		"transaction_id": result.Transaction.ID,
		"status":         string(result.Transaction.Status),
	})
}

func toEvent(cb paymentCallback) (provider.Event, error) {
	if cb.TransactionStatus != "" {
		outcome, terminal := provider.MapMidtransStatus(cb.TransactionStatus, cb.FraudStatus)
		if !terminal {
			return provider.Event{ProviderReference: cb.OrderID}, nil
		}
		amount, err := parseCallbackAmount(cb.GrossAmount)
		if err != nil {
			return provider.Event{}, err
		}
		return provider.Event{ProviderReference: cb.OrderID, Outcome: outcome, Amount: amount}, nil
	}

	var outcome ledger.Outcome
	switch strings.ToUpper(cb.Status) {
	case "SUCCESS", "SUCCEEDED", "PAID":
		outcome = ledger.OutcomeSucceeded
	case "FAILED", "EXPIRED", "CANCELLED":
		outcome = ledger.OutcomeFailed
	default:
		return provider.Event{}, errors.New("unknown payment status: " + cb.Status)
	}
	amount, err := parseCallbackAmount(cb.Amount)
	if err != nil {
		return provider.Event{}, err
	}
	return provider.Event{ProviderReference: cb.Reference, Outcome: outcome, Amount: amount}, nil
}

// parseCallbackAmount converts a decimal IDR amount to minor units. An empty
// amount yields zero, which skips the amount cross-check at settlement.
func parseCallbackAmount(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, errors.New("invalid amount")
	}
	minor := dec.Shift(2)
	if !minor.IsInteger() || minor.IsNegative() {
		return 0, errors.New("invalid amount")
	}
	return minor.IntPart(), nil
}

type kycCallback struct {
	Identifier string `json:"identifier"`
	KYCID      string `json:"kyc_id"`
	Status     string `json:"status"`
}

// KYC applies a verification provider result to the user.
func (h *Handler) KYC(c *fiber.Ctx) error {
	if h.kycSecret != "" {
		sig := c.Get(signatureHeader)
		if !provider.VerifyWebhookSignature(c.Body(), sig, h.kycSecret) {
			return fiber.NewError(http.StatusUnauthorized, "invalid webhook signature")
		}
	}

	var cb kycCallback
	if err := c.BodyParser(&cb); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if cb.Identifier == "" {
		return fiber.NewError(http.StatusBadRequest, "identifier is required")
	}

	user, err := h.ids.ApplyKYCResult(c.UserContext(), cb.Identifier, cb.KYCID, cb.Status)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	h.notifier.Notify(c.UserContext(), notification.Event{
		Kind:   notification.KindKYCUpdated,
		UserID: user.ID,
		Detail: string(user.KYCStatus),
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":    user.ID,
		"kyc_status": string(user.KYCStatus),
	})
}

type simulateRequest struct {
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
	Amount    string `json:"amount"`
}

// SimulatePayment settles a transaction without a signed callback. Registered
// only in development environments.
func (h *Handler) SimulatePayment(c *fiber.Ctx) error {
	var req simulateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome := ledger.OutcomeSucceeded
	if strings.EqualFold(req.Outcome, "failed") {
		outcome = ledger.OutcomeFailed
	}
	amount, err := parseCallbackAmount(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.wallets.ApplySettlement(c.UserContext(), provider.Event{
		ProviderReference: req.Reference,
		Outcome:           outcome,
		Amount:            amount,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"applied":        result.Applied,
		"transaction_id": result.Transaction.ID,
		"status":         string(result.Transaction.Status),
	})
}
