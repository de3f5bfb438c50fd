package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/arkaesthetics/ark-payments/internal/config"
)

const (
	productionBaseURL = "https://connect.squareup.com"
	sandboxBaseURL    = "https://connect.squareupsandbox.com"
	apiVersion        = "2024-06-04"
)

// ErrNotFound is returned when Square does not know the requested object.
var ErrNotFound = errors.New("square: not found")

// Client talks to the Square connect API over HTTP. It is a thin
// pass-through: no retries, no caching; the reconciliation layer decides
// what to call and when.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(cfg config.SquareConfig) *Client {
	base := sandboxBaseURL
	if cfg.Environment == "production" {
		base = productionBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    base,
		token:      cfg.AccessToken,
	}
}

// CreatePaymentLink creates a hosted checkout link for a single line item,
// planting the reference token on the order's reference_id slot.
func (c *Client) CreatePaymentLink(ctx context.Context, p CreateLinkParams) (*CreateLinkResult, error) {
	description := p.Description
	if description == "" {
		description = "Touch-Up Visit"
	}
	body := map[string]any{
		"idempotency_key": uuid.New().String(),
		"order": map[string]any{
			"location_id":  p.LocationID,
			"reference_id": p.ReferenceID,
			"line_items": []map[string]any{
				{
					"name":     description,
					"quantity": "1",
					"base_price_money": map[string]any{
						"amount":   p.AmountCents,
						"currency": p.Currency,
					},
				},
			},
		},
		"checkout_options": map[string]any{
			"redirect_url": p.RedirectURL,
		},
	}

	var out struct {
		PaymentLink      PaymentLink `json:"payment_link"`
		RelatedResources struct {
			Orders []Order `json:"orders"`
		} `json:"related_resources"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/online-checkout/payment-links", body, &out); err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}

	orderID := out.PaymentLink.OrderID
	if orderID == "" && len(out.RelatedResources.Orders) > 0 {
		orderID = out.RelatedResources.Orders[0].ID
	}
	log.Printf("[Square] created payment link %s (order=%q)", out.PaymentLink.ID, orderID)
	return &CreateLinkResult{
		LinkID:  out.PaymentLink.ID,
		URL:     out.PaymentLink.URL,
		OrderID: orderID,
	}, nil
}

// UpdatePaymentLinkRedirect repoints an existing link's redirect URL. The
// link update API requires the current version, so this reads the link
// first. Callers treat failures as non-fatal; the link works either way.
func (c *Client) UpdatePaymentLinkRedirect(ctx context.Context, linkID, redirectURL string) error {
	var current struct {
		PaymentLink PaymentLink `json:"payment_link"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/online-checkout/payment-links/"+linkID, nil, &current); err != nil {
		return fmt.Errorf("read payment link %s: %w", linkID, err)
	}

	body := map[string]any{
		"payment_link": map[string]any{
			"version": current.PaymentLink.Version,
			"checkout_options": map[string]any{
				"redirect_url": redirectURL,
			},
		},
	}
	if err := c.do(ctx, http.MethodPut, "/v2/online-checkout/payment-links/"+linkID, body, nil); err != nil {
		return fmt.Errorf("update payment link %s: %w", linkID, err)
	}
	return nil
}

func (c *Client) GetPaymentLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	var out struct {
		PaymentLink PaymentLink `json:"payment_link"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/online-checkout/payment-links/"+linkID, nil, &out); err != nil {
		return nil, fmt.Errorf("get payment link %s: %w", linkID, err)
	}
	return &out.PaymentLink, nil
}

func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (*Order, error) {
	var out struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+orderID, nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("retrieve order %s: %w", orderID, err)
	}
	return &out.Order, nil
}

// SearchOrders returns orders at the given locations created since the given
// time, newest first, filtered to the given states.
func (c *Client) SearchOrders(ctx context.Context, locationIDs []string, since time.Time, states []string) ([]Order, error) {
	body := map[string]any{
		"location_ids": locationIDs,
		"limit":        50,
		"query": map[string]any{
			"filter": map[string]any{
				"date_time_filter": map[string]any{
					"created_at": map[string]any{
						"start_at": since.UTC().Format(time.RFC3339),
					},
				},
				"state_filter": map[string]any{
					"states": states,
				},
			},
			"sort": map[string]any{
				"sort_field": "CREATED_AT",
				"sort_order": "DESC",
			},
		},
	}

	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/orders/search", body, &out); err != nil {
		return nil, fmt.Errorf("search orders: %w", err)
	}
	return out.Orders, nil
}

func (c *Client) RetrievePayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out struct {
		Payment Payment `json:"payment"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/payments/"+paymentID, nil, &out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("retrieve payment %s: %w", paymentID, err)
	}
	return &out.Payment, nil
}

func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/locations", nil, &out); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return out.Locations, nil
}

// ListPayments returns recent payments at a location, newest first. Used by
// the diagnostic snapshot only.
func (c *Client) ListPayments(ctx context.Context, locationID string, since time.Time) ([]Payment, error) {
	q := url.Values{}
	q.Set("location_id", locationID)
	q.Set("begin_time", since.UTC().Format(time.RFC3339))
	q.Set("sort_order", "DESC")

	var out struct {
		Payments []Payment `json:"payments"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/payments?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out.Payments, nil
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Errors []apiError `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if len(errBody.Errors) > 0 {
			first := errBody.Errors[0]
			return fmt.Errorf("status %d: %s %s: %s", resp.StatusCode, first.Category, first.Code, first.Detail)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
