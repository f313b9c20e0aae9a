package notification

import (
	"context"
	"log/slog"
)

// Event kinds emitted by the wallet and identity flows.
const (
	KindTopUpSettled     = "topup_settled"
	KindPaymentCompleted = "payment_completed"
	KindPaymentFailed    = "payment_failed"
	KindRefundIssued     = "refund_issued"
	KindKYCUpdated       = "kyc_updated"
)

// Event is a user-facing notification payload.
type Event struct {
	Kind          string
	UserID        string
	TransactionID string
	Amount        int64
	Detail        string
}

// Notifier delivers events to users. Delivery is best effort and must not
// block the money movement that triggered it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LoggerNotifier writes notifications to the structured log. It stands in for
// a push/email channel in sandbox deployments.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a log-backed notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Notify(_ context.Context, event Event) {
	n.logger.Info("notification",
		slog.String("kind", event.Kind),
		slog.String("user_id", event.UserID),
		slog.String("transaction_id", event.TransactionID),
		slog.Int64("amount", event.Amount),
		slog.String("detail", event.Detail),
	)
}
