package square

// Money is an amount in minor currency units (cents) with a 3-letter code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Tender is a payment instrument attached to an order. PaymentID is empty
// for tenders that have no backing payment object.
type Tender struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Type      string `json:"type"`
}

// Order is Square's order object, reduced to the fields the broker reads.
// State is one of DRAFT, OPEN, COMPLETED, CANCELED. ReferenceID is the
// free-form reference slot where the broker plants its token.
type Order struct {
	ID          string   `json:"id"`
	LocationID  string   `json:"location_id"`
	ReferenceID string   `json:"reference_id"`
	State       string   `json:"state"`
	CreatedAt   string   `json:"created_at"`
	Tenders     []Tender `json:"tenders"`
	TotalMoney  *Money   `json:"total_money"`
}

// Payment is Square's payment object. Status COMPLETED means settled money,
// regardless of whether the owning order has caught up yet.
type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	OrderID     string `json:"order_id"`
	LocationID  string `json:"location_id"`
	CreatedAt   string `json:"created_at"`
	AmountMoney *Money `json:"amount_money"`
}

type Location struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// PaymentLink is a hosted checkout link. OrderID may be empty right after
// creation depending on account configuration; Version is needed for updates.
type PaymentLink struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	OrderID string `json:"order_id"`
	Version int64  `json:"version"`
}

// CreateLinkParams describes the single-line-item checkout link the broker
// creates: a fixed charge at a location, carrying the reference token on the
// underlying order and redirecting back to the storefront when paid.
type CreateLinkParams struct {
	AmountCents int64
	Currency    string
	LocationID  string
	ReferenceID string
	RedirectURL string
	Description string
}

// CreateLinkResult is what callers get back from CreatePaymentLink. OrderID
// is optional; see PaymentLink.
type CreateLinkResult struct {
	LinkID  string
	URL     string
	OrderID string
}
