package bdd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/arkaesthetics/ark-payments/internal/api"
	"github.com/arkaesthetics/ark-payments/internal/booking"
	"github.com/arkaesthetics/ark-payments/internal/config"
	"github.com/arkaesthetics/ark-payments/internal/square"
	"github.com/arkaesthetics/ark-payments/internal/store"
)

// BrokerWorld carries per-scenario state: a scripted fake processor, the
// broker wired on top of it, and the last captured HTTP exchange.
type BrokerWorld struct {
	t *testing.T

	cfg      config.Config
	gateway  *fakeSquare
	sessions *store.Memory
	server   *httptest.Server

	httpStatus int
	httpJSON   map[string]any
	httpBody   string
	lastRef    string
}

func NewBrokerWorld(t *testing.T) *BrokerWorld {
	return &BrokerWorld{t: t}
}

func (w *BrokerWorld) Register(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.resetScenarioState()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if w.server != nil {
			w.server.Close()
			w.server = nil
		}
		return ctx, nil
	})

	w.registerLinkSteps(sc)
	w.registerVerifySteps(sc)
}

func (w *BrokerWorld) resetScenarioState() {
	if w.server != nil {
		w.server.Close()
	}
	w.cfg = config.Config{
		ServiceName: "ark-payments-bdd",
		Square: config.SquareConfig{
			AccessToken: "sq0atp-bdd-token",
			Environment: "sandbox",
		},
		Booking: config.BookingConfig{
			SiteURL:      "https://arkaesthetics.example",
			Currency:     "USD",
			MinPrice:     120,
			MinMinutes:   60,
			SearchWindow: 24 * time.Hour,
		},
	}
	w.gateway = newFakeSquare()
	w.sessions = store.NewMemory()
	w.server = nil
	w.httpStatus = 0
	w.httpJSON = nil
	w.httpBody = ""
	w.lastRef = ""
}

// startBroker builds the real mux (routes + CORS + healthz) over the fake
// processor, the same shape cmd/server assembles in production.
func (w *BrokerWorld) startBroker() error {
	svc := booking.NewService(w.cfg, w.gateway, w.sessions, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		_, _ = rw.Write([]byte("ok"))
	})
	api.RegisterArkRoutes(mux, w.cfg, svc)
	w.server = httptest.NewServer(api.WithCORS(w.cfg.CORS.AllowedOrigins, mux))
	return nil
}

// fakeSquare is a scripted processor the steps populate.
type fakeSquare struct {
	locations         []square.Location
	orders            map[string]*square.Order
	ordersByLocation  map[string][]square.Order
	payments          map[string]*square.Payment
	links             map[string]*square.PaymentLink
	searchedLocations []string
	createCalls       int
	lastRedirect      string
}

func newFakeSquare() *fakeSquare {
	return &fakeSquare{
		orders:           map[string]*square.Order{},
		ordersByLocation: map[string][]square.Order{},
		payments:         map[string]*square.Payment{},
		links:            map[string]*square.PaymentLink{},
	}
}

func (f *fakeSquare) CreatePaymentLink(ctx context.Context, p square.CreateLinkParams) (*square.CreateLinkResult, error) {
	f.createCalls++
	f.lastRedirect = p.RedirectURL
	return &square.CreateLinkResult{LinkID: "plink_bdd", URL: "https://square.link/u/bdd", OrderID: "O_bdd"}, nil
}

func (f *fakeSquare) UpdatePaymentLinkRedirect(ctx context.Context, linkID, redirectURL string) error {
	return nil
}

func (f *fakeSquare) GetPaymentLink(ctx context.Context, linkID string) (*square.PaymentLink, error) {
	if l, ok := f.links[linkID]; ok {
		return l, nil
	}
	return nil, square.ErrNotFound
}

func (f *fakeSquare) RetrieveOrder(ctx context.Context, orderID string) (*square.Order, error) {
	if o, ok := f.orders[orderID]; ok {
		return o, nil
	}
	return nil, square.ErrNotFound
}

func (f *fakeSquare) SearchOrders(ctx context.Context, locationIDs []string, since time.Time, states []string) ([]square.Order, error) {
	f.searchedLocations = append(f.searchedLocations, locationIDs...)
	var out []square.Order
	for _, id := range locationIDs {
		out = append(out, f.ordersByLocation[id]...)
	}
	return out, nil
}

func (f *fakeSquare) RetrievePayment(ctx context.Context, paymentID string) (*square.Payment, error) {
	if p, ok := f.payments[paymentID]; ok {
		return p, nil
	}
	return nil, square.ErrNotFound
}

func (f *fakeSquare) ListLocations(ctx context.Context) ([]square.Location, error) {
	return f.locations, nil
}

func (f *fakeSquare) ListPayments(ctx context.Context, locationID string, since time.Time) ([]square.Payment, error) {
	return nil, nil
}
