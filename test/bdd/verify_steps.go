package bdd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"github.com/arkaesthetics/ark-payments/internal/square"
	"github.com/arkaesthetics/ark-payments/internal/store"
)

func (w *BrokerWorld) registerVerifySteps(sc *godog.ScenarioContext) {
	sc.Step(`^locations "([^"]+)" are known to the processor$`, w.locationsKnown)
	sc.Step(`^a completed order "([^"]+)" with reference "([^"]+)" at location "([^"]+)"$`, w.completedOrderAt)
	sc.Step(`^an open order "([^"]+)" with reference "([^"]+)" at location "([^"]+)" whose payment "([^"]+)" is "([^"]+)"$`, w.openOrderWithPayment)
	sc.Step(`^the session cache maps "([^"]+)" to order "([^"]+)"$`, w.sessionCacheMaps)
	sc.Step(`^I verify with only the reference "([^"]+)"$`, w.verifyByRef)
	sc.Step(`^the verification succeeds with state "([^"]+)" and matching reference$`, w.assertVerifiedWithState)
	sc.Step(`^the verification succeeds with state "([^"]+)" and payment status "([^"]+)"$`, w.assertVerifiedWithPayment)
	sc.Step(`^location "([^"]+)" was searched and the scan stopped at location "([^"]+)"$`, w.assertSearchStoppedAt)
	sc.Step(`^the response says error "([^"]+)" for reference "([^"]+)"$`, w.assertErrorWithRef)
	sc.Step(`^I GET "([^"]+)"$`, w.getPath)
	sc.Step(`^the body is exactly "([^"]+)"$`, w.assertRawBody)
}

func (w *BrokerWorld) locationsKnown(csv string) error {
	for _, id := range strings.Split(csv, ",") {
		id = strings.TrimSpace(id)
		w.gateway.locations = append(w.gateway.locations, square.Location{ID: id})
	}
	return nil
}

func (w *BrokerWorld) completedOrderAt(orderID, ref, locationID string) error {
	o := square.Order{ID: orderID, LocationID: locationID, ReferenceID: ref, State: "COMPLETED"}
	w.gateway.orders[orderID] = &o
	w.gateway.ordersByLocation[locationID] = append(w.gateway.ordersByLocation[locationID], o)
	return nil
}

func (w *BrokerWorld) openOrderWithPayment(orderID, ref, locationID, paymentID, status string) error {
	o := square.Order{
		ID: orderID, LocationID: locationID, ReferenceID: ref, State: "OPEN",
		Tenders: []square.Tender{{ID: "T_" + paymentID, PaymentID: paymentID}},
	}
	w.gateway.orders[orderID] = &o
	w.gateway.ordersByLocation[locationID] = append(w.gateway.ordersByLocation[locationID], o)
	w.gateway.payments[paymentID] = &square.Payment{ID: paymentID, Status: status, OrderID: orderID}
	return nil
}

func (w *BrokerWorld) sessionCacheMaps(ref, orderID string) error {
	return w.sessions.Put(ref, store.Session{OrderID: orderID})
}

func (w *BrokerWorld) verifyByRef(ref string) error {
	return w.getJSON("/api/ark/verify?ref=" + ref)
}

func (w *BrokerWorld) getJSON(path string) error {
	resp, err := http.Get(w.server.URL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	w.httpStatus = resp.StatusCode
	w.httpJSON = nil
	return json.NewDecoder(resp.Body).Decode(&w.httpJSON)
}

func (w *BrokerWorld) assertVerifiedWithState(state string) error {
	if ok, _ := w.httpJSON["ok"].(bool); !ok {
		return fmt.Errorf("expected ok:true, got %v", w.httpJSON)
	}
	if got, _ := w.httpJSON["state"].(string); got != state {
		return fmt.Errorf("expected state %q, got %v", state, w.httpJSON["state"])
	}
	if matches, _ := w.httpJSON["matchesRef"].(bool); !matches {
		return fmt.Errorf("expected matchesRef:true, got %v", w.httpJSON)
	}
	return nil
}

func (w *BrokerWorld) assertVerifiedWithPayment(state, paymentStatus string) error {
	if err := w.assertVerifiedWithState(state); err != nil {
		return err
	}
	if got, _ := w.httpJSON["paymentStatus"].(string); got != paymentStatus {
		return fmt.Errorf("expected paymentStatus %q, got %v", paymentStatus, w.httpJSON["paymentStatus"])
	}
	return nil
}

func (w *BrokerWorld) assertSearchStoppedAt(searched, last string) error {
	locs := w.gateway.searchedLocations
	if len(locs) == 0 {
		return fmt.Errorf("no locations were searched")
	}
	if locs[0] != searched {
		return fmt.Errorf("expected %s searched first, got %v", searched, locs)
	}
	if locs[len(locs)-1] != last {
		return fmt.Errorf("expected scan to stop at %s, got %v", last, locs)
	}
	for _, l := range locs[:len(locs)-1] {
		if l == last {
			return fmt.Errorf("location %s searched more than expected: %v", last, locs)
		}
	}
	return nil
}

func (w *BrokerWorld) assertErrorWithRef(code, ref string) error {
	if err := w.assertErrorCode(code); err != nil {
		return err
	}
	if got, _ := w.httpJSON["ref"].(string); got != ref {
		return fmt.Errorf("expected ref %q in error payload, got %v", ref, w.httpJSON["ref"])
	}
	return nil
}

func (w *BrokerWorld) getPath(path string) error {
	resp, err := http.Get(w.server.URL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	w.httpStatus = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	w.httpBody = string(body)
	return nil
}

func (w *BrokerWorld) assertRawBody(want string) error {
	if w.httpBody != want {
		return fmt.Errorf("expected body %q, got %q", want, w.httpBody)
	}
	return nil
}
