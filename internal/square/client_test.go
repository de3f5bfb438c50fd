package square

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaesthetics/ark-payments/internal/config"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		token:      "sq0atp-test-token",
	}
}

func TestClientSendsAuthAndVersionHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Square-Version")
		_ = json.NewEncoder(w).Encode(map[string]any{"locations": []any{}})
	}))
	defer srv.Close()

	_, err := testClient(srv).ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sq0atp-test-token", gotAuth)
	assert.Equal(t, apiVersion, gotVersion)
}

func TestCreatePaymentLinkRequestShape(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/online-checkout/payment-links", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_link": map[string]any{"id": "plink_1", "url": "https://square.link/u/x", "order_id": "O1"},
		})
	}))
	defer srv.Close()

	res, err := testClient(srv).CreatePaymentLink(context.Background(), CreateLinkParams{
		AmountCents: 30000,
		Currency:    "USD",
		LocationID:  "L1",
		ReferenceID: "ref-a",
		RedirectURL: "https://arkaesthetics.example/booking/return?ref=ref-a",
	})
	require.NoError(t, err)
	assert.Equal(t, "plink_1", res.LinkID)
	assert.Equal(t, "O1", res.OrderID)

	assert.NotEmpty(t, captured["idempotency_key"])
	order := captured["order"].(map[string]any)
	assert.Equal(t, "L1", order["location_id"])
	assert.Equal(t, "ref-a", order["reference_id"])
	items := order["line_items"].([]any)
	require.Len(t, items, 1)
	money := items[0].(map[string]any)["base_price_money"].(map[string]any)
	assert.Equal(t, 30000.0, money["amount"])
	assert.Equal(t, "USD", money["currency"])
	checkout := captured["checkout_options"].(map[string]any)
	assert.Equal(t, "https://arkaesthetics.example/booking/return?ref=ref-a", checkout["redirect_url"])
}

func TestCreatePaymentLinkOrderIDFromRelatedResources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_link":      map[string]any{"id": "plink_1", "url": "https://square.link/u/x"},
			"related_resources": map[string]any{"orders": []map[string]any{{"id": "O_rel"}}},
		})
	}))
	defer srv.Close()

	res, err := testClient(srv).CreatePaymentLink(context.Background(), CreateLinkParams{AmountCents: 100, Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "O_rel", res.OrderID)
}

func TestRetrieveOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv).RetrieveOrder(context.Background(), "O_missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDoSurfacesSquareErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"category": "AUTHENTICATION_ERROR", "code": "UNAUTHORIZED", "detail": "bad token"}},
		})
	}))
	defer srv.Close()

	_, err := testClient(srv).ListLocations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "UNAUTHORIZED")
	assert.Contains(t, err.Error(), "bad token")
}

func TestSearchOrdersRequestShape(t *testing.T) {
	since := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/orders/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orders": []map[string]any{{"id": "O1", "reference_id": "ref-a", "state": "COMPLETED"}},
		})
	}))
	defer srv.Close()

	orders, err := testClient(srv).SearchOrders(context.Background(), []string{"L1"}, since, []string{"OPEN", "COMPLETED"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "O1", orders[0].ID)

	assert.Equal(t, []any{"L1"}, captured["location_ids"])
	query := captured["query"].(map[string]any)
	filter := query["filter"].(map[string]any)
	created := filter["date_time_filter"].(map[string]any)["created_at"].(map[string]any)
	assert.Equal(t, "2026-08-31T12:00:00Z", created["start_at"])
	assert.Equal(t, []any{"OPEN", "COMPLETED"}, filter["state_filter"].(map[string]any)["states"])
	sort := query["sort"].(map[string]any)
	assert.Equal(t, "CREATED_AT", sort["sort_field"])
	assert.Equal(t, "DESC", sort["sort_order"])
}

func TestUpdatePaymentLinkRedirectReadsVersionFirst(t *testing.T) {
	var methods []string
	var putBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"payment_link": map[string]any{"id": "plink_1", "version": 3},
			})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			_ = json.NewEncoder(w).Encode(map[string]any{})
		}
	}))
	defer srv.Close()

	err := testClient(srv).UpdatePaymentLinkRedirect(context.Background(), "plink_1", "https://arkaesthetics.example/return")
	require.NoError(t, err)
	assert.Equal(t, []string{http.MethodGet, http.MethodPut}, methods)

	link := putBody["payment_link"].(map[string]any)
	assert.Equal(t, 3.0, link["version"])
	assert.Equal(t, "https://arkaesthetics.example/return",
		link["checkout_options"].(map[string]any)["redirect_url"])
}

func TestNewClientPicksBaseURLByEnvironment(t *testing.T) {
	sandbox := NewClient(config.SquareConfig{Environment: "sandbox"})
	assert.Equal(t, sandboxBaseURL, sandbox.baseURL)
	prod := NewClient(config.SquareConfig{Environment: "production"})
	assert.Equal(t, productionBaseURL, prod.baseURL)
}
