package booking

import (
	"context"
	"time"

	"github.com/arkaesthetics/ark-payments/internal/square"
)

// stubGateway scripts processor behavior per test and records call traffic
// so tests can assert on ordering and short-circuiting.
type stubGateway struct {
	createResult *square.CreateLinkResult
	createErr    error
	createCalls  int
	createParams []square.CreateLinkParams

	updateErr   error
	updateCalls int

	links   map[string]*square.PaymentLink
	linkErr error

	orders       map[string]*square.Order
	retrieveErr  error
	retrieveCall int

	payments     map[string]*square.Payment
	paymentCalls int

	locations    []square.Location
	locationsErr error

	ordersByLocation  map[string][]square.Order
	searchErr         error
	searchedLocations []string
	searchedStates    [][]string

	paymentsByLocation map[string][]square.Payment
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		links:              map[string]*square.PaymentLink{},
		orders:             map[string]*square.Order{},
		payments:           map[string]*square.Payment{},
		ordersByLocation:   map[string][]square.Order{},
		paymentsByLocation: map[string][]square.Payment{},
	}
}

func (g *stubGateway) CreatePaymentLink(ctx context.Context, p square.CreateLinkParams) (*square.CreateLinkResult, error) {
	g.createCalls++
	g.createParams = append(g.createParams, p)
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.createResult != nil {
		return g.createResult, nil
	}
	return &square.CreateLinkResult{LinkID: "plink_1", URL: "https://square.link/u/stub", OrderID: "order_1"}, nil
}

func (g *stubGateway) UpdatePaymentLinkRedirect(ctx context.Context, linkID, redirectURL string) error {
	g.updateCalls++
	return g.updateErr
}

func (g *stubGateway) GetPaymentLink(ctx context.Context, linkID string) (*square.PaymentLink, error) {
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	if l, ok := g.links[linkID]; ok {
		return l, nil
	}
	return nil, square.ErrNotFound
}

func (g *stubGateway) RetrieveOrder(ctx context.Context, orderID string) (*square.Order, error) {
	g.retrieveCall++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	if o, ok := g.orders[orderID]; ok {
		return o, nil
	}
	return nil, square.ErrNotFound
}

func (g *stubGateway) SearchOrders(ctx context.Context, locationIDs []string, since time.Time, states []string) ([]square.Order, error) {
	g.searchedLocations = append(g.searchedLocations, locationIDs...)
	g.searchedStates = append(g.searchedStates, states)
	if g.searchErr != nil {
		return nil, g.searchErr
	}
	var out []square.Order
	for _, id := range locationIDs {
		out = append(out, g.ordersByLocation[id]...)
	}
	return out, nil
}

func (g *stubGateway) RetrievePayment(ctx context.Context, paymentID string) (*square.Payment, error) {
	g.paymentCalls++
	if p, ok := g.payments[paymentID]; ok {
		return p, nil
	}
	return nil, square.ErrNotFound
}

func (g *stubGateway) ListLocations(ctx context.Context) ([]square.Location, error) {
	if g.locationsErr != nil {
		return nil, g.locationsErr
	}
	return g.locations, nil
}

func (g *stubGateway) ListPayments(ctx context.Context, locationID string, since time.Time) ([]square.Payment, error) {
	return g.paymentsByLocation[locationID], nil
}
