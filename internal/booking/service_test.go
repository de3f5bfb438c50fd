package booking

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaesthetics/ark-payments/internal/config"
	"github.com/arkaesthetics/ark-payments/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		ServiceName: "ark-payments-test",
		Square: config.SquareConfig{
			Environment: "sandbox",
			LocationID:  "L1",
		},
		Booking: config.BookingConfig{
			SiteURL:      "https://arkaesthetics.example",
			Currency:     "USD",
			MinPrice:     120,
			MinMinutes:   60,
			SearchWindow: 24 * time.Hour,
		},
	}
}

func newTestService(gw *stubGateway) (*Service, *store.Memory) {
	sessions := store.NewMemory()
	return NewService(testConfig(), gw, sessions, nil), sessions
}

func TestIssueLinkKeepsPriceAboveFloor(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedMinutes: 90,
		RequestedPrice:   300,
		PriceGiven:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, 300.0, issued.Charge)
	assert.Equal(t, 90, issued.Minutes)
	require.Len(t, gw.createParams, 1)
	assert.Equal(t, int64(30000), gw.createParams[0].AmountCents)
}

func TestIssueLinkAppliesPriceFloor(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedPrice: 50,
		PriceGiven:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 120.0, issued.Charge)
	require.Len(t, gw.createParams, 1)
	assert.Equal(t, int64(12000), gw.createParams[0].AmountCents)
}

func TestIssueLinkRoundsToCents(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedPrice: 123.456,
		PriceGiven:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 123.46, issued.Charge)
	assert.Equal(t, int64(12346), gw.createParams[0].AmountCents)
}

func TestIssueLinkAppliesDurationFloor(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedMinutes: 30,
		RequestedPrice:   200,
		PriceGiven:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, 60, issued.Minutes)
}

func TestIssueLinkInvalidAmountBeforeRemoteCall(t *testing.T) {
	cases := []IssueParams{
		{PriceGiven: false},
		{RequestedPrice: 0, PriceGiven: true},
		{RequestedPrice: -10, PriceGiven: true},
	}
	for _, p := range cases {
		gw := newStubGateway()
		svc, _ := newTestService(gw)

		_, err := svc.IssueLink(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Zero(t, gw.createCalls, "processor must not be called for invalid input")
	}
}

func TestIssueLinkRedirectCarriesBookingParams(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedMinutes: 90,
		RequestedPrice:   300,
		PriceGiven:       true,
	})
	require.NoError(t, err)

	redirect := gw.createParams[0].RedirectURL
	require.True(t, strings.HasPrefix(redirect, "https://arkaesthetics.example/booking/return?"))
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, issued.Ref, q.Get("ref"))
	assert.Equal(t, "90", q.Get("minutes"))
	assert.Equal(t, "300", q.Get("price"))
	assert.Equal(t, "USD", q.Get("currency"))
}

func TestIssueLinkTokensNeverRepeat(t *testing.T) {
	gw := newStubGateway()
	svc, _ := newTestService(gw)

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		issued, err := svc.IssueLink(context.Background(), IssueParams{
			RequestedPrice: 150,
			PriceGiven:     true,
		})
		require.NoError(t, err)
		require.False(t, seen[issued.Ref], "token minted twice: %s", issued.Ref)
		seen[issued.Ref] = true
	}
}

func TestIssueLinkRecordsSession(t *testing.T) {
	gw := newStubGateway()
	svc, sessions := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedPrice: 200,
		PriceGiven:     true,
	})
	require.NoError(t, err)

	sess, found, err := sessions.Get(issued.Ref)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "order_1", sess.OrderID)
	assert.Equal(t, "plink_1", sess.PaymentLinkID)
}

func TestIssueLinkRedirectUpdateFailureIsNonFatal(t *testing.T) {
	gw := newStubGateway()
	gw.updateErr = assert.AnError
	svc, _ := newTestService(gw)

	issued, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedPrice: 200,
		PriceGiven:     true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.URL)
	assert.Equal(t, 1, gw.updateCalls)
}

func TestIssueLinkCreateFailurePropagates(t *testing.T) {
	gw := newStubGateway()
	gw.createErr = assert.AnError
	svc, sessions := newTestService(gw)

	_, err := svc.IssueLink(context.Background(), IssueParams{
		RequestedPrice: 200,
		PriceGiven:     true,
	})
	var linkErr *LinkCreationError
	require.ErrorAs(t, err, &linkErr)
	// No session should be written for a link that never existed.
	_, found, _ := sessions.Get("")
	assert.False(t, found)
}
