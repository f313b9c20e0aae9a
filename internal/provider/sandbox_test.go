package provider

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sol-pay/sol_backend/internal/ledger"
)

func TestSandboxInstruments(t *testing.T) {
	g := NewSandboxGateway("MCH-0008", "secret")
	ctx := context.Background()

	va, err := g.CreateVirtualAccount(ctx, Invoice{ReferenceID: "tx-1", Amount: 50_000, Channel: "BNI_VA"})
	if err != nil {
		t.Fatalf("create va: %v", err)
	}
	if va.Kind != KindSandboxVA {
		t.Fatalf("unexpected kind %s", va.Kind)
	}
	if va.Reference != "sbx_tx-1" {
		t.Fatalf("unexpected reference %s", va.Reference)
	}
	if !strings.HasPrefix(va.VANumber, "8808") {
		t.Fatalf("unexpected va number %s", va.VANumber)
	}
	if va.BankCode != "BNI" {
		t.Fatalf("expected BNI, got %s", va.BankCode)
	}

	qr, err := g.GenerateQRIS(ctx, Invoice{ReferenceID: "tx-2", Amount: 10_000})
	if err != nil {
		t.Fatalf("generate qris: %v", err)
	}
	if qr.Kind != KindSandboxQRIS || qr.QRContent == "" {
		t.Fatalf("unexpected qris instrument: %+v", qr)
	}

	if _, err := g.CreateVirtualAccount(ctx, Invoice{Amount: 1}); err == nil {
		t.Fatal("expected error without reference id")
	}
}

func TestVirtualAccountNumberBoundToSignature(t *testing.T) {
	g := NewSandboxGateway("MCH-0008", "secret")
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := g.CreateVirtualAccount(ctx, Invoice{ReferenceID: "tx-1", Amount: 50_000})
	if err != nil {
		t.Fatalf("create va: %v", err)
	}
	if len(first.VANumber) != 14 {
		t.Fatalf("unexpected va number %s", first.VANumber)
	}

	repeat, err := g.CreateVirtualAccount(ctx, Invoice{ReferenceID: "tx-1", Amount: 50_000})
	if err != nil {
		t.Fatalf("create va: %v", err)
	}
	if repeat.VANumber != first.VANumber {
		t.Fatalf("same signed request must yield the same va number: %s vs %s", first.VANumber, repeat.VANumber)
	}

	other, err := g.CreateVirtualAccount(ctx, Invoice{ReferenceID: "tx-2", Amount: 50_000})
	if err != nil {
		t.Fatalf("create va: %v", err)
	}
	if other.VANumber == first.VANumber {
		t.Fatalf("different references must not share a va number: %s", other.VANumber)
	}
}

func TestAccessTokenCacheExpiry(t *testing.T) {
	g := NewSandboxGateway("MCH-0008", "secret")
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	first := g.accessToken()
	if first == "" {
		t.Fatal("expected token")
	}
	if again := g.accessToken(); again != first {
		t.Fatal("token must be reused while valid")
	}

	now = now.Add(tokenTTL + time.Second)
	if rotated := g.accessToken(); rotated == first {
		t.Fatal("expired token must be replaced")
	}
}

func TestWebhookSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"reference_no":"sbx_tx-1","status":"SUCCESS"}`)
	sig := SignWebhook(body, "webhook-secret")

	if !VerifyWebhookSignature(body, sig, "webhook-secret") {
		t.Fatal("valid signature rejected")
	}
	if VerifyWebhookSignature(body, sig, "other-secret") {
		t.Fatal("signature verified with wrong secret")
	}
	if VerifyWebhookSignature([]byte(`tampered`), sig, "webhook-secret") {
		t.Fatal("signature verified for tampered body")
	}
	if VerifyWebhookSignature(body, "", "webhook-secret") {
		t.Fatal("empty signature accepted")
	}
}

func TestMapMidtransStatus(t *testing.T) {
	cases := []struct {
		txStatus, fraud string
		outcome         ledger.Outcome
		settled         bool
	}{
		{"settlement", "", ledger.OutcomeSucceeded, true},
		{"capture", "accept", ledger.OutcomeSucceeded, true},
		{"capture", "challenge", "", false},
		{"deny", "", ledger.OutcomeFailed, true},
		{"expire", "", ledger.OutcomeFailed, true},
		{"pending", "", "", false},
	}
	for _, c := range cases {
		outcome, settled := MapMidtransStatus(c.txStatus, c.fraud)
		if outcome != c.outcome || settled != c.settled {
			t.Fatalf("%s/%s: got %s/%v", c.txStatus, c.fraud, outcome, settled)
		}
	}
}
