package wayforpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper-bot/internal/tariff"
)

func newTestClient(payURL, regularURL string) *Client {
	c := NewClient("test_merch_n1", testSecret, "merchant-password", "t.me/BotName", "https://example.com/wayforpay/callback")
	if payURL != "" {
		c.PayURL = payURL
	}
	if regularURL != "" {
		c.RegularURL = regularURL
	}
	return c
}

func TestCreatePaymentReturnsRedirectURL(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://secure.example/invoice/abc"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	plan, ok := tariff.DefaultCatalog().ByID("3_months")
	require.True(t, ok)

	redirect, orderRef, err := c.CreatePayment(context.Background(), 42, plan)
	require.NoError(t, err)
	assert.Equal(t, "https://secure.example/invoice/abc", redirect)

	uid, err := UserIDFromOrderReference(orderRef)
	require.NoError(t, err)
	assert.EqualValues(t, 42, uid)

	assert.Equal(t, "test_merch_n1", gotForm.Get("merchantAccount"))
	assert.Equal(t, "270", gotForm.Get("amount"))
	assert.Equal(t, "UAH", gotForm.Get("currency"))
	assert.Equal(t, "quarterly", gotForm.Get("regularMode"))
	assert.Equal(t, "https://example.com/wayforpay/callback", gotForm.Get("serviceUrl"))
	assert.Equal(t, orderRef, gotForm.Get("orderReference"))

	// The submitted signature must verify over the contractual field order.
	assert.True(t, Verify(testSecret, gotForm.Get("merchantSignature"),
		gotForm.Get("merchantAccount"),
		gotForm.Get("merchantDomainName"),
		gotForm.Get("orderReference"),
		gotForm.Get("orderDate"),
		gotForm.Get("amount"),
		gotForm.Get("currency"),
		gotForm.Get("productName[]"),
		gotForm.Get("productCount[]"),
		gotForm.Get("productPrice[]"),
	))
}

func TestCreatePaymentOmitsRegularModeForOneTimePlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.False(t, r.PostForm.Has("regularMode"))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://secure.example/invoice/abc"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, _, err := c.CreatePayment(context.Background(), 42, tariff.Tariff{ID: "single", Name: "Single", Price: 100, Days: 30})
	require.NoError(t, err)
}

func TestCreatePaymentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"reason": "Merchant account is blocked"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	plan := tariff.Tariff{ID: "1_month", Name: "1 Месяц", Price: 100, Days: 30}

	_, _, err := c.CreatePayment(context.Background(), 42, plan)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "Merchant account is blocked", rejection.Reason)
	assert.False(t, errors.Is(err, ErrProviderUnavailable))
}

func TestCreatePaymentTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(srv.URL, "")
	plan := tariff.Tariff{ID: "1_month", Name: "1 Месяц", Price: 100, Days: 30}

	_, _, err := c.CreatePayment(context.Background(), 42, plan)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCreatePaymentGarbageResponseIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	plan := tariff.Tariff{ID: "1_month", Name: "1 Месяц", Price: 100, Days: 30}

	_, _, err := c.CreatePayment(context.Background(), 42, plan)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRemoveRegularPaymentSuccessCodes(t *testing.T) {
	var gotReq removeRegularRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{"reasonCode": 1100, "reason": "Ok"})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	err := c.RemoveRegularPayment(context.Background(), "SUB_42_1000")
	require.NoError(t, err)
	assert.Equal(t, "REMOVE", gotReq.RequestType)
	assert.Equal(t, "merchant-password", gotReq.MerchantPassword)
	assert.Equal(t, "SUB_42_1000", gotReq.OrderReference)
}

func TestRemoveRegularPaymentRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"reasonCode": 4100, "reason": "Order not found"})
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL)
	assert.Error(t, c.RemoveRegularPayment(context.Background(), "SUB_42_1000"))
}

func TestRemoveRegularPaymentTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient("", srv.URL)
	assert.ErrorIs(t, c.RemoveRegularPayment(context.Background(), "SUB_42_1000"), ErrProviderUnavailable)
}
