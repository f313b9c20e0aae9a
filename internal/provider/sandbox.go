package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const tokenTTL = 15 * time.Minute

// accessTokenCache holds a short-lived gateway access token. It is owned by
// the gateway instance and checked for expiry on every access; nothing outside
// the adapter can reach it.
type accessTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func (c *accessTokenCache) get(now time.Time, mint func() string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !now.Before(c.expiresAt) {
		c.token = mint()
		c.expiresAt = now.Add(tokenTTL)
	}
	return c.token
}

// SandboxGateway simulates a SNAP-style Indonesian payment gateway: virtual
// account numbers for bank-transfer top-ups and QR content for QRIS. No
// network calls are made; settlement is driven by the simulate endpoint or a
// signed webhook.
type SandboxGateway struct {
	clientID     string
	clientSecret string
	tokens       accessTokenCache
	now          func() time.Time
}

// NewSandboxGateway builds the sandbox gateway with merchant credentials.
func NewSandboxGateway(clientID, clientSecret string) *SandboxGateway {
	return &SandboxGateway{
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// CreateVirtualAccount issues a virtual account number for a top-up invoice.
func (g *SandboxGateway) CreateVirtualAccount(_ context.Context, inv Invoice) (Instrument, error) {
	if inv.ReferenceID == "" {
		return Instrument{}, fmt.Errorf("reference id is required")
	}
	token := g.accessToken()
	sig := g.symmetricSignature("POST", "/virtual-accounts", token, inv.ReferenceID)

	bank := bankForChannel(inv.Channel)
	return Instrument{
		Kind:      KindSandboxVA,
		Reference: "sbx_" + inv.ReferenceID,
		VANumber:  "8808" + signatureDigits(sig, 10),
		BankCode:  bank,
		ExpiresAt: g.now().UTC().Add(24 * time.Hour),
	}, nil
}

// GenerateQRIS issues merchant-presented QR content for a payment invoice.
func (g *SandboxGateway) GenerateQRIS(_ context.Context, inv Invoice) (Instrument, error) {
	if inv.ReferenceID == "" {
		return Instrument{}, fmt.Errorf("reference id is required")
	}
	token := g.accessToken()
	sig := g.symmetricSignature("POST", "/qr-mpm-generate", token, inv.ReferenceID)

	return Instrument{
		Kind:      KindSandboxQRIS,
		Reference: "sbx_" + inv.ReferenceID,
		QRContent: fmt.Sprintf("00020101021226%s5303360%s", sig[:16], inv.ReferenceID),
		ExpiresAt: g.now().UTC().Add(30 * time.Minute),
	}, nil
}

func (g *SandboxGateway) accessToken() string {
	return g.tokens.get(g.now(), func() string {
		return "sbx_token_" + uuid.NewString()
	})
}

// symmetricSignature reproduces the SNAP B2B signing scheme: HMAC-SHA512 over
// method, endpoint, token and request hash.
func (g *SandboxGateway) symmetricSignature(method, endpoint, token, body string) string {
	bodyHash := sha256.Sum256([]byte(body))
	stringToSign := fmt.Sprintf("%s:%s:%s:%s:%d",
		method, endpoint, token, hex.EncodeToString(bodyHash[:]), g.now().Unix())

	mac := hmac.New(sha512.New, []byte(g.clientSecret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureDigits maps the leading bytes of a request signature onto a numeric
// account suffix, so the VA number is bound to the signed request.
func signatureDigits(sig string, n int) string {
	digits := make([]byte, n)
	for i := 0; i < n; i++ {
		digits[i] = '0' + sig[i]%10
	}
	return string(digits)
}

func bankForChannel(channel string) string {
	switch channel {
	case "BNI_VA":
		return "BNI"
	case "BRI_VA":
		return "BRI"
	case "MANDIRI_VA":
		return "MANDIRI"
	default:
		return "BCA"
	}
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature carried in the
// X-Webhook-Signature header of inbound provider callbacks.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhook produces the signature a provider would attach to a callback
// body. Used by the simulate flow and tests.
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
