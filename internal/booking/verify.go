package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/arkaesthetics/ark-payments/internal/square"
	"github.com/arkaesthetics/ark-payments/internal/store"
)

// verifySearchStates are the order states worth scanning during
// verification: DRAFT cannot have settled and CANCELED is terminally unpaid.
var verifySearchStates = []string{"OPEN", "COMPLETED"}

// VerifyResult is the outcome of one reconciliation pass. Verified=false
// with a nil error means the order was resolved but has not settled yet.
type VerifyResult struct {
	Verified      bool
	OrderID       string
	State         string
	MatchesRef    bool
	PaymentID     string
	PaymentStatus string
}

// Verify resolves a reference token and/or caller-supplied order id to a
// payment outcome. Stages run cheapest first and each only when the previous
// produced no order id: direct id → session cache → payment-link inspection
// → bounded order search. The whole pass is idempotent; its only writes are
// merge-enrichments of the session store.
func (s *Service) Verify(ctx context.Context, ref, orderID string) (*VerifyResult, error) {
	if ref == "" && orderID == "" {
		return nil, ErrMissingIdentifier
	}

	id := orderID
	if id == "" {
		var err error
		id, err = s.resolveOrderID(ctx, ref)
		if err != nil {
			return nil, err
		}
	}

	order, err := s.gw.RetrieveOrder(ctx, id)
	if err != nil {
		if errors.Is(err, square.ErrNotFound) {
			return nil, &OrderNotFoundError{Ref: ref}
		}
		return nil, &VerifyError{Stage: "retrieve-order", Err: err}
	}

	matches := ref != "" && order.ReferenceID == ref

	if expected := s.cfg.Square.LocationID; expected != "" && order.LocationID != "" && order.LocationID != expected {
		return nil, &LocationMismatchError{
			OrderID:       order.ID,
			OrderLocation: order.LocationID,
			Expected:      expected,
		}
	}

	if ref != "" && matches {
		if err := s.sessions.Merge(ref, store.Session{OrderID: order.ID}); err != nil {
			log.Printf("[Verify %s] session merge failed: %v", ref, err)
		}
	}

	res := &VerifyResult{OrderID: order.ID, State: order.State, MatchesRef: matches}
	if len(order.Tenders) > 0 {
		res.PaymentID = order.Tenders[0].PaymentID
	}

	if order.State == "COMPLETED" {
		res.Verified = true
	} else if res.PaymentID != "" {
		// Settlement lag: a payment can complete before the order flips to
		// COMPLETED. Payment status COMPLETED is as authoritative as order
		// state COMPLETED, so either one verifies the booking.
		payment, err := s.gw.RetrievePayment(ctx, res.PaymentID)
		if err != nil {
			return nil, &VerifyError{Stage: "retrieve-payment", Err: err}
		}
		res.PaymentStatus = payment.Status
		if payment.Status == "COMPLETED" {
			res.Verified = true
		}
	}

	if res.Verified {
		s.publish(ctx, "PaymentVerified", ref, map[string]any{
			"ref":           ref,
			"orderId":       res.OrderID,
			"orderState":    res.State,
			"paymentId":     res.PaymentID,
			"paymentStatus": res.PaymentStatus,
		})
	}
	return res, nil
}

// resolveOrderID walks the cache, link-inspection and bounded-search stages.
func (s *Service) resolveOrderID(ctx context.Context, ref string) (string, error) {
	sess, found, err := s.sessions.Get(ref)
	if err != nil {
		// A broken store degrades to the search fallback.
		log.Printf("[Verify %s] session read failed: %v", ref, err)
		found = false
	}
	if found && sess.OrderID != "" {
		return sess.OrderID, nil
	}

	if found && sess.PaymentLinkID != "" {
		link, err := s.gw.GetPaymentLink(ctx, sess.PaymentLinkID)
		if err != nil {
			log.Printf("[Verify %s] link inspection failed, falling through to search: %v", ref, err)
		} else if link.OrderID != "" {
			if err := s.sessions.Merge(ref, store.Session{OrderID: link.OrderID}); err != nil {
				log.Printf("[Verify %s] session merge failed: %v", ref, err)
			}
			return link.OrderID, nil
		}
	}

	return s.searchForOrder(ctx, ref)
}

// searchForOrder scans recent orders location by location, newest first,
// matching on the order's reference slot. Tokens are unique, so the scan
// short-circuits at the first location that yields a match. Beyond the trust
// window the search is not trusted to find the token at all.
func (s *Service) searchForOrder(ctx context.Context, ref string) (string, error) {
	locations, err := s.gw.ListLocations(ctx)
	if err != nil {
		return "", &VerifyError{Stage: "list-locations", Err: err}
	}

	since := time.Now().Add(-s.cfg.Booking.SearchWindow)
	for _, loc := range locations {
		orders, err := s.gw.SearchOrders(ctx, []string{loc.ID}, since, verifySearchStates)
		if err != nil {
			return "", &VerifyError{Stage: "search-orders", Err: err}
		}
		for _, o := range orders {
			if o.ReferenceID == ref {
				if err := s.sessions.Merge(ref, store.Session{OrderID: o.ID}); err != nil {
					log.Printf("[Verify %s] session merge failed: %v", ref, err)
				}
				log.Printf("[Verify %s] search matched order %s at location %s", ref, o.ID, loc.ID)
				return o.ID, nil
			}
		}
	}
	return "", &OrderNotFoundError{Ref: ref}
}
