package booking

import (
	"context"
	"log"
	"time"
)

// snapshotStates includes every order lifecycle state; the snapshot is for
// operators, who want to see canceled and draft orders too.
var snapshotStates = []string{"DRAFT", "OPEN", "COMPLETED", "CANCELED"}

// SnapshotSession mirrors the store entry without exposing store internals.
type SnapshotSession struct {
	OrderID       string    `json:"orderId"`
	PaymentLinkID string    `json:"paymentLinkId"`
	CreatedAt     time.Time `json:"createdAt"`
}

type SnapshotOrder struct {
	ID          string `json:"id"`
	LocationID  string `json:"locationId"`
	State       string `json:"state"`
	ReferenceID string `json:"referenceId"`
	CreatedAt   string `json:"createdAt"`
	PaymentID   string `json:"paymentId,omitempty"`
}

type SnapshotPayment struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
}

// Snapshot aggregates everything discoverable about one reference token.
// Read-only and exhaustive: unlike Verify, the search scans every location.
type Snapshot struct {
	Ref       string            `json:"ref"`
	Session   *SnapshotSession  `json:"session"`
	Locations []string          `json:"locations"`
	Orders    []SnapshotOrder   `json:"orders"`
	Payments  []SnapshotPayment `json:"payments"`
}

// Debug builds a diagnostic snapshot for a reference token. Lookup failures
// on individual legs are logged and skipped; the snapshot shows whatever
// could be gathered. The processor credential never appears in the output.
func (s *Service) Debug(ctx context.Context, ref string) *Snapshot {
	snap := &Snapshot{Ref: ref, Locations: []string{}, Orders: []SnapshotOrder{}, Payments: []SnapshotPayment{}}

	if sess, found, err := s.sessions.Get(ref); err != nil {
		log.Printf("[Debug %s] session read failed: %v", ref, err)
	} else if found {
		snap.Session = &SnapshotSession{
			OrderID:       sess.OrderID,
			PaymentLinkID: sess.PaymentLinkID,
			CreatedAt:     sess.CreatedAt,
		}
	}

	locations, err := s.gw.ListLocations(ctx)
	if err != nil {
		log.Printf("[Debug %s] list locations failed: %v", ref, err)
		return snap
	}

	since := time.Now().Add(-s.cfg.Booking.SearchWindow)
	seenPayments := map[string]bool{}
	for _, loc := range locations {
		snap.Locations = append(snap.Locations, loc.ID)

		orders, err := s.gw.SearchOrders(ctx, []string{loc.ID}, since, snapshotStates)
		if err != nil {
			log.Printf("[Debug %s] search at %s failed: %v", ref, loc.ID, err)
			continue
		}
		for _, o := range orders {
			if o.ReferenceID != ref {
				continue
			}
			entry := SnapshotOrder{
				ID:          o.ID,
				LocationID:  o.LocationID,
				State:       o.State,
				ReferenceID: o.ReferenceID,
				CreatedAt:   o.CreatedAt,
			}
			if len(o.Tenders) > 0 {
				entry.PaymentID = o.Tenders[0].PaymentID
			}
			snap.Orders = append(snap.Orders, entry)

			if entry.PaymentID != "" && !seenPayments[entry.PaymentID] {
				seenPayments[entry.PaymentID] = true
				payment, err := s.gw.RetrievePayment(ctx, entry.PaymentID)
				if err != nil {
					log.Printf("[Debug %s] payment %s lookup failed: %v", ref, entry.PaymentID, err)
					continue
				}
				snap.Payments = append(snap.Payments, SnapshotPayment{
					ID:      payment.ID,
					Status:  payment.Status,
					OrderID: payment.OrderID,
				})
			}
		}
	}

	// Second angle on the same window: recent payments at the preferred
	// location whose order is one of the matched orders.
	if loc := s.cfg.Square.LocationID; loc != "" && len(snap.Orders) > 0 {
		matched := map[string]bool{}
		for _, o := range snap.Orders {
			matched[o.ID] = true
		}
		payments, err := s.gw.ListPayments(ctx, loc, since)
		if err != nil {
			log.Printf("[Debug %s] list payments failed: %v", ref, err)
		} else {
			for _, p := range payments {
				if matched[p.OrderID] && !seenPayments[p.ID] {
					seenPayments[p.ID] = true
					snap.Payments = append(snap.Payments, SnapshotPayment{
						ID:      p.ID,
						Status:  p.Status,
						OrderID: p.OrderID,
					})
				}
			}
		}
	}

	return snap
}
