package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/sol-pay/sol_backend/internal/ledger"
)

// ErrFractionalAmount indicates an amount with sub-rupiah precision, which
// Midtrans cannot charge.
var ErrFractionalAmount = errors.New("midtrans amounts must be whole rupiah")

// MidtransGateway issues payment instruments through Midtrans Snap. Snap
// returns a hosted payment page covering virtual accounts, QRIS and e-wallet
// channels, so both instrument kinds map onto one Snap transaction.
type MidtransGateway struct {
	client snap.Client
}

// NewMidtransGateway configures a Snap client against the sandbox environment.
func NewMidtransGateway(serverKey string) *MidtransGateway {
	g := &MidtransGateway{}
	g.client.New(serverKey, midtrans.Sandbox)
	return g
}

// CreateVirtualAccount opens a Snap transaction for a bank-transfer top-up.
func (g *MidtransGateway) CreateVirtualAccount(_ context.Context, inv Invoice) (Instrument, error) {
	return g.createSnap(inv)
}

// GenerateQRIS opens a Snap transaction for a QRIS payment.
func (g *MidtransGateway) GenerateQRIS(_ context.Context, inv Invoice) (Instrument, error) {
	return g.createSnap(inv)
}

func (g *MidtransGateway) createSnap(inv Invoice) (Instrument, error) {
	if inv.ReferenceID == "" {
		return Instrument{}, fmt.Errorf("reference id is required")
	}
	// GrossAmt is whole rupiah; a truncated charge would never match the
	// recorded amount at settlement, stranding the transaction PENDING.
	if inv.Amount%100 != 0 {
		return Instrument{}, ErrFractionalAmount
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID: inv.ReferenceID,
			GrossAmt: inv.Amount / 100,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: inv.Customer,
		},
	}

	resp, errSnap := g.client.CreateTransaction(req)
	if errSnap != nil {
		return Instrument{}, fmt.Errorf("midtrans snap: %s", errSnap.GetMessage())
	}

	return Instrument{
		Kind:        KindMidtransSnap,
		Reference:   inv.ReferenceID,
		RedirectURL: resp.RedirectURL,
		ExpiresAt:   time.Now().UTC().Add(24 * time.Hour),
	}, nil
}

// MapMidtransStatus folds the Midtrans transaction/fraud status pair onto the
// normalized outcome vocabulary. The second return is false while the payment
// is still in flight and no settlement should be applied yet.
func MapMidtransStatus(transactionStatus, fraudStatus string) (ledger.Outcome, bool) {
	switch transactionStatus {
	case "settlement":
		return ledger.OutcomeSucceeded, true
	case "capture":
		if fraudStatus == "accept" {
			return ledger.OutcomeSucceeded, true
		}
		return "", false
	case "deny", "cancel", "expire":
		return ledger.OutcomeFailed, true
	default:
		return "", false
	}
}
