// Package provider adapts external payment gateways onto a provider-agnostic
// surface. Handlers and the ledger only ever see normalized events and typed
// instruments; provider-specific payloads, signatures and status vocabularies
// stay inside this package.
package provider

import (
	"context"
	"time"

	"github.com/sol-pay/sol_backend/internal/ledger"
)

// Provider kinds recorded next to the provider reference on a transaction.
const (
	KindSandboxVA    = "sandbox_va"
	KindSandboxQRIS  = "sandbox_qris"
	KindMidtransSnap = "midtrans_snap"
)

// Event is the normalized settlement event consumed by the ledger service.
type Event struct {
	ProviderReference string
	Outcome           ledger.Outcome
	Amount            int64
}

// Invoice describes the payment instrument being requested.
type Invoice struct {
	ReferenceID string
	Amount      int64
	Channel     string
	Customer    string
}

// Instrument is the provider-issued artifact the user pays against.
type Instrument struct {
	Kind        string
	Reference   string
	VANumber    string
	BankCode    string
	QRContent   string
	RedirectURL string
	ExpiresAt   time.Time
}

// Gateway creates payment instruments with an external provider. Calls are
// fire-and-forget from the ledger's point of view: confirmation arrives later
// as a normalized Event via webhook or the simulate endpoint.
type Gateway interface {
	CreateVirtualAccount(ctx context.Context, inv Invoice) (Instrument, error)
	GenerateQRIS(ctx context.Context, inv Invoice) (Instrument, error)
}
