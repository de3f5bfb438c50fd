package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arkaesthetics/ark-payments/internal/booking"
	"github.com/arkaesthetics/ark-payments/internal/config"
)

// RegisterArkRoutes mounts the payment-link broker endpoints.
//
// Contract note: application-level outcomes ride HTTP 200 with an ok/error
// field so the storefront's polling loop treats "not paid yet" and transient
// failures uniformly; only requests missing required identifiers get a 400.
func RegisterArkRoutes(mux *http.ServeMux, cfg config.Config, svc *booking.Service) {
	mux.Handle("/api/ark/create-payment-link", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCreatePaymentLink(cfg, svc, w, r)
	}), "create-payment-link"))

	mux.Handle("/api/ark/verify", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleVerify(cfg, svc, w, r)
	}), "verify"))

	mux.Handle("/api/ark/debug", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleDebug(svc, w, r)
	}), "debug"))

	mux.Handle("/api/ark/info", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleInfo(cfg, w, r)
	}), "info"))
}

func handleCreatePaymentLink(cfg config.Config, svc *booking.Service, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = map[string]any{}
	}

	minutes, _ := toFloat(body["displayMinutes"])
	price, priceGiven := toFloat(body["totalPrice"])
	if !priceGiven {
		price, priceGiven = toFloat(body["subtotal"])
	}

	issued, err := svc.IssueLink(r.Context(), booking.IssueParams{
		RequestedMinutes: int(minutes),
		RequestedPrice:   price,
		PriceGiven:       priceGiven,
	})
	if err != nil {
		if errors.Is(err, booking.ErrInvalidAmount) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "INVALID_AMOUNT"})
			return
		}
		log.Printf("[API] create-payment-link failed: %v", err)
		resp := map[string]any{"error": "CREATE_LINK_FAILED"}
		if cfg.Booking.VerboseErrors {
			resp["detail"] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var orderID any
	if issued.OrderID != "" {
		orderID = issued.OrderID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":     issued.URL,
		"orderId": orderID,
		"ref":     issued.Ref,
		"charge":  issued.Charge,
		"minutes": issued.Minutes,
	})
}

func handleVerify(cfg config.Config, svc *booking.Service, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := r.URL.Query().Get("ref")
	orderID := r.URL.Query().Get("orderId")

	res, err := svc.Verify(r.Context(), ref, orderID)
	if err != nil {
		var notFound *booking.OrderNotFoundError
		var mismatch *booking.LocationMismatchError
		switch {
		case errors.Is(err, booking.ErrMissingIdentifier):
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "MISSING_REF_OR_ORDER_ID"})
		case errors.As(err, &notFound):
			writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "ORDER_NOT_FOUND", "ref": notFound.Ref})
		case errors.As(err, &mismatch):
			writeJSON(w, http.StatusOK, map[string]any{
				"ok":            false,
				"error":         "LOCATION_MISMATCH",
				"orderLocation": mismatch.OrderLocation,
				"expected":      mismatch.Expected,
				"orderId":       mismatch.OrderID,
			})
		default:
			log.Printf("[API] verify failed: %v", err)
			resp := map[string]any{"ok": false, "error": "VERIFY_EXCEPTION"}
			if cfg.Booking.VerboseErrors {
				resp["detail"] = err.Error()
			}
			writeJSON(w, http.StatusOK, resp)
		}
		return
	}

	if !res.Verified {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         false,
			"error":      "NOT_COMPLETED_YET",
			"state":      res.State,
			"orderId":    res.OrderID,
			"matchesRef": res.MatchesRef,
		})
		return
	}

	resp := map[string]any{
		"ok":         true,
		"state":      res.State,
		"orderId":    res.OrderID,
		"matchesRef": res.MatchesRef,
	}
	if res.PaymentID != "" {
		resp["paymentId"] = res.PaymentID
	}
	if res.PaymentStatus != "" {
		resp["paymentStatus"] = res.PaymentStatus
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleDebug(svc *booking.Service, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "MISSING_REF"})
		return
	}
	writeJSON(w, http.StatusOK, svc.Debug(r.Context(), ref))
}

func handleInfo(cfg config.Config, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"env":        cfg.Square.Environment,
		"hasToken":   cfg.Square.AccessToken != "",
		"tokenLen":   len(cfg.Square.AccessToken),
		"locationId": cfg.Square.LocationID,
		"site":       cfg.Booking.SiteURL,
		"currency":   cfg.Booking.Currency,
		"minPrice":   cfg.Booking.MinPrice,
		"minMinutes": cfg.Booking.MinMinutes,
	})
}

// WithCORS reflects the Origin header back for allow-listed origins.
// Preflight requests get an empty 204 regardless of origin.
func WithCORS(allowed []string, next http.Handler) http.Handler {
	allowedSet := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedSet[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowedSet[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// toFloat coerces a decoded JSON value to a number. Numeric strings are
// accepted; anything else reports not-given.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
