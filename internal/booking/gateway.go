package booking

import (
	"context"
	"time"

	"github.com/arkaesthetics/ark-payments/internal/square"
)

// Gateway is the capability surface the broker needs from the payment
// processor. *square.Client is the production implementation; tests plug in
// stubs. Every call is a direct pass-through — retry and fallback policy
// lives in the reconciliation cascade, not here.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, p square.CreateLinkParams) (*square.CreateLinkResult, error)
	// UpdatePaymentLinkRedirect is best-effort: the link already exists and
	// works with its original redirect, so callers log failures and move on.
	UpdatePaymentLinkRedirect(ctx context.Context, linkID, redirectURL string) error
	GetPaymentLink(ctx context.Context, linkID string) (*square.PaymentLink, error)
	RetrieveOrder(ctx context.Context, orderID string) (*square.Order, error)
	SearchOrders(ctx context.Context, locationIDs []string, since time.Time, states []string) ([]square.Order, error)
	RetrievePayment(ctx context.Context, paymentID string) (*square.Payment, error)
	ListLocations(ctx context.Context) ([]square.Location, error)
	ListPayments(ctx context.Context, locationID string, since time.Time) ([]square.Payment, error)
}
