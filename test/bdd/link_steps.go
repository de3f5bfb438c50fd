package bdd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

func (w *BrokerWorld) registerLinkSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the broker is running$`, w.startBroker)
	sc.Step(`^I request a payment link with subtotal (\d+(?:\.\d+)?) and display minutes (\d+)$`, w.requestPaymentLink)
	sc.Step(`^I request a payment link with no price$`, w.requestPaymentLinkNoPrice)
	sc.Step(`^the response status is (\d+)$`, w.assertStatus)
	sc.Step(`^the issued charge is (\d+(?:\.\d+)?) and minutes (\d+)$`, w.assertChargeAndMinutes)
	sc.Step(`^the redirect target carries the reference, minutes (\d+), price (\d+) and currency "([^"]+)"$`, w.assertRedirectTarget)
	sc.Step(`^the response says error "([^"]+)"$`, w.assertErrorCode)
	sc.Step(`^the processor was never asked to create a link$`, w.assertNoCreateCall)
}

func (w *BrokerWorld) requestPaymentLink(subtotal string, minutes int) error {
	payload := fmt.Sprintf(`{"subtotal":%s,"displayMinutes":%d}`, subtotal, minutes)
	return w.postJSON("/api/ark/create-payment-link", payload)
}

func (w *BrokerWorld) requestPaymentLinkNoPrice() error {
	return w.postJSON("/api/ark/create-payment-link", `{"displayMinutes":90}`)
}

func (w *BrokerWorld) postJSON(path, payload string) error {
	resp, err := http.Post(w.server.URL+path, "application/json", strings.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	w.httpStatus = resp.StatusCode
	w.httpJSON = nil
	if err := json.NewDecoder(resp.Body).Decode(&w.httpJSON); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if ref, ok := w.httpJSON["ref"].(string); ok {
		w.lastRef = ref
	}
	return nil
}

func (w *BrokerWorld) assertStatus(want int) error {
	if w.httpStatus != want {
		return fmt.Errorf("expected status %d, got %d (body %v)", want, w.httpStatus, w.httpJSON)
	}
	return nil
}

func (w *BrokerWorld) assertChargeAndMinutes(charge string, minutes int) error {
	wantCharge, err := strconv.ParseFloat(charge, 64)
	if err != nil {
		return err
	}
	gotCharge, ok := w.httpJSON["charge"].(float64)
	if !ok || gotCharge != wantCharge {
		return fmt.Errorf("expected charge %.2f, got %v", wantCharge, w.httpJSON["charge"])
	}
	gotMinutes, ok := w.httpJSON["minutes"].(float64)
	if !ok || int(gotMinutes) != minutes {
		return fmt.Errorf("expected minutes %d, got %v", minutes, w.httpJSON["minutes"])
	}
	return nil
}

func (w *BrokerWorld) assertRedirectTarget(minutes, price int, currency string) error {
	if w.gateway.createCalls == 0 {
		return fmt.Errorf("no create-link call captured")
	}
	redirect := w.gateway.lastRedirect
	u, err := url.Parse(redirect)
	if err != nil {
		return fmt.Errorf("parse redirect %q: %w", redirect, err)
	}
	q := u.Query()
	if q.Get("ref") == "" || q.Get("ref") != w.lastRef {
		return fmt.Errorf("redirect ref %q does not match issued ref %q", q.Get("ref"), w.lastRef)
	}
	if q.Get("minutes") != strconv.Itoa(minutes) {
		return fmt.Errorf("redirect minutes %q, want %d", q.Get("minutes"), minutes)
	}
	if q.Get("price") != strconv.Itoa(price) {
		return fmt.Errorf("redirect price %q, want %d", q.Get("price"), price)
	}
	if q.Get("currency") != currency {
		return fmt.Errorf("redirect currency %q, want %s", q.Get("currency"), currency)
	}
	return nil
}

func (w *BrokerWorld) assertErrorCode(code string) error {
	if got, _ := w.httpJSON["error"].(string); got != code {
		return fmt.Errorf("expected error %q, got %v", code, w.httpJSON["error"])
	}
	return nil
}

func (w *BrokerWorld) assertNoCreateCall() error {
	if w.gateway.createCalls != 0 {
		return fmt.Errorf("processor received %d create-link calls, want 0", w.gateway.createCalls)
	}
	return nil
}
