package booking

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/arkaesthetics/ark-payments/internal/config"
	"github.com/arkaesthetics/ark-payments/internal/events"
	"github.com/arkaesthetics/ark-payments/internal/square"
	"github.com/arkaesthetics/ark-payments/internal/store"
)

// Service brokers payment-link creation and verification. Configuration is
// threaded in once at construction; nothing reads the environment at call
// time.
type Service struct {
	cfg      config.Config
	gw       Gateway
	sessions store.Store
	producer *events.Producer
}

func NewService(cfg config.Config, gw Gateway, sessions store.Store, producer *events.Producer) *Service {
	return &Service{cfg: cfg, gw: gw, sessions: sessions, producer: producer}
}

// IssueParams is the caller's proposal: a display duration and a price.
// PriceGiven is false when the request carried no usable numeric price.
type IssueParams struct {
	RequestedMinutes int
	RequestedPrice   float64
	PriceGiven       bool
}

// IssuedLink is the booking handed back to the storefront. OrderID may be
// empty; the processor does not always return it at link-creation time.
type IssuedLink struct {
	URL     string
	OrderID string
	Ref     string
	Charge  float64
	Minutes int
}

// IssueLink computes the effective charge and duration, mints a reference
// token, creates the hosted checkout link with the token planted on the
// order, and records the session. Only the link-creation call itself may
// abort the operation.
func (s *Service) IssueLink(ctx context.Context, p IssueParams) (*IssuedLink, error) {
	if !p.PriceGiven || math.IsNaN(p.RequestedPrice) || math.IsInf(p.RequestedPrice, 0) || p.RequestedPrice <= 0 {
		return nil, ErrInvalidAmount
	}

	minutes := p.RequestedMinutes
	if minutes < s.cfg.Booking.MinMinutes {
		minutes = s.cfg.Booking.MinMinutes
	}

	charge := math.Round(p.RequestedPrice*100) / 100
	if charge < s.cfg.Booking.MinPrice {
		charge = s.cfg.Booking.MinPrice
	}
	cents := int64(math.Round(charge * 100))
	if cents <= 0 {
		return nil, ErrInvalidAmount
	}

	ref := uuid.New().String()

	// The redirect target is fully built before the remote call so a failed
	// redirect update can never leave the link pointing at a URL missing the
	// token.
	redirect := s.redirectURL(ref, minutes, charge)

	created, err := s.gw.CreatePaymentLink(ctx, square.CreateLinkParams{
		AmountCents: cents,
		Currency:    s.cfg.Booking.Currency,
		LocationID:  s.cfg.Square.LocationID,
		ReferenceID: ref,
		RedirectURL: redirect,
		Description: fmt.Sprintf("Touch-Up Visit (%d min)", minutes),
	})
	if err != nil {
		return nil, &LinkCreationError{Err: err}
	}

	// Best-effort: re-point the redirect in case account settings rewrote it
	// during creation. The link is already functional, so failure only logs.
	if err := s.gw.UpdatePaymentLinkRedirect(ctx, created.LinkID, redirect); err != nil {
		log.Printf("[Issue %s] redirect update failed (non-fatal): %v", ref, err)
	}

	if err := s.sessions.Put(ref, store.Session{
		OrderID:       created.OrderID,
		PaymentLinkID: created.LinkID,
	}); err != nil {
		// Losing the session only costs a search fallback later.
		log.Printf("[Issue %s] session store write failed: %v", ref, err)
	}

	s.publish(ctx, "PaymentLinkCreated", ref, map[string]any{
		"ref":     ref,
		"orderId": created.OrderID,
		"linkId":  created.LinkID,
		"charge":  charge,
		"minutes": minutes,
	})

	log.Printf("[Issue %s] link created: order=%q charge=%.2f %s minutes=%d",
		ref, created.OrderID, charge, s.cfg.Booking.Currency, minutes)
	return &IssuedLink{
		URL:     created.URL,
		OrderID: created.OrderID,
		Ref:     ref,
		Charge:  charge,
		Minutes: minutes,
	}, nil
}

func (s *Service) redirectURL(ref string, minutes int, charge float64) string {
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("minutes", strconv.Itoa(minutes))
	q.Set("price", strconv.FormatFloat(charge, 'f', -1, 64))
	q.Set("currency", s.cfg.Booking.Currency)
	return s.cfg.Booking.SiteURL + "/booking/return?" + q.Encode()
}

func (s *Service) publish(ctx context.Context, eventType, ref string, data map[string]any) {
	if s.producer == nil {
		return
	}
	evt := events.Envelope{EventType: eventType, EventVersion: "v1", AggregateID: ref, Data: data}
	if err := s.producer.Publish(ctx, s.cfg.Kafka.PaymentsTopic, ref, evt); err != nil {
		log.Printf("[Events] publish %s for %s failed: %v", eventType, ref, err)
	}
}
