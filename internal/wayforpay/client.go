package wayforpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gatekeeper-bot/internal/tariff"
)

// ErrProviderUnavailable marks transport-level failures (network errors,
// timeouts, unparsable bodies) on outbound provider calls. These are
// retryable, unlike an explicit rejection.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// RejectionError is an explicit provider-side refusal to open a payment
// session. Not retryable.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("payment rejected: %s", e.Reason)
}

// cancelOKCode is the provider's success reason code for recurring-billing
// removal. Everything else, including malformed responses, is failure.
const cancelOKCode = 1100

const (
	defaultPayURL     = "https://secure.wayforpay.com/pay"
	defaultRegularURL = "https://api.wayforpay.com/regularApi"
)

// Client talks to the payment provider. It never touches the subscription
// ledger: purchase initiation is a pure request/response exchange, and
// state only moves when the webhook comes back.
type Client struct {
	MerchantAccount  string
	MerchantSecret   string
	MerchantPassword string
	DomainName       string
	ServiceURL       string

	PayURL     string
	RegularURL string
	HTTPClient *http.Client
}

func NewClient(account, secret, password, domain, serviceURL string) *Client {
	return &Client{
		MerchantAccount:  account,
		MerchantSecret:   secret,
		MerchantPassword: password,
		DomainName:       domain,
		ServiceURL:       serviceURL,
		PayURL:           defaultPayURL,
		RegularURL:       defaultRegularURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreatePayment opens a payment session for the given user and plan and
// returns the redirect URL together with the issued order reference. The
// signature covers merchantAccount;merchantDomainName;orderReference;
// orderDate;amount;currency;productName;productCount;productPrice — the
// order is fixed by the provider protocol.
func (c *Client) CreatePayment(ctx context.Context, userID int64, plan tariff.Tariff) (string, string, error) {
	orderRef := NewOrderReference(userID)
	orderDate := strconv.FormatInt(time.Now().Unix(), 10)
	amount := formatAmount(plan.Price)
	productName := fmt.Sprintf("Subscription %s", plan.Name)

	signature := Sign(c.MerchantSecret,
		c.MerchantAccount,
		c.DomainName,
		orderRef,
		orderDate,
		amount,
		"UAH",
		productName,
		"1",
		amount,
	)

	form := url.Values{}
	form.Set("merchantAccount", c.MerchantAccount)
	form.Set("merchantAuthType", "SimpleSignature")
	form.Set("merchantDomainName", c.DomainName)
	form.Set("orderReference", orderRef)
	form.Set("orderDate", orderDate)
	form.Set("amount", amount)
	form.Set("currency", "UAH")
	form.Set("orderTimeout", "3600")
	form.Set("productName[]", productName)
	form.Set("productPrice[]", amount)
	form.Set("productCount[]", "1")
	form.Set("clientFirstname", fmt.Sprintf("ID %d", userID))
	form.Set("clientLastname", "User")
	form.Set("clientPhone", "380000000000")
	form.Set("serviceUrl", c.ServiceURL)
	form.Set("merchantSignature", signature)
	if plan.Recurring() {
		form.Set("regularMode", plan.RegularMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", orderRef, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", orderRef, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", orderRef, fmt.Errorf("%w: reading response: %v", ErrProviderUnavailable, err)
	}

	var parsed purchaseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", orderRef, fmt.Errorf("%w: unexpected response: %v", ErrProviderUnavailable, err)
	}

	if parsed.URL != "" {
		return parsed.URL, orderRef, nil
	}
	if parsed.Reason != "" {
		return "", orderRef, &RejectionError{Reason: parsed.Reason}
	}
	return "", orderRef, fmt.Errorf("%w: response carries neither url nor reason", ErrProviderUnavailable)
}

// RemoveRegularPayment cancels provider-managed recurring billing for an
// order. Authenticated by the merchant password, not the signing secret.
// A nil return means the provider confirmed removal; any error is uniform
// failure — the caller decides whether to log or retry, the client does
// neither.
func (c *Client) RemoveRegularPayment(ctx context.Context, orderReference string) error {
	reqBody := removeRegularRequest{
		RequestType:      "REMOVE",
		MerchantAccount:  c.MerchantAccount,
		MerchantPassword: c.MerchantPassword,
		OrderReference:   orderReference,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RegularURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrProviderUnavailable, err)
	}

	var parsed removeRegularResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("%w: unexpected response: %v", ErrProviderUnavailable, err)
	}

	if parsed.ReasonCode == cancelOKCode || parsed.Reason == "Ok" {
		return nil
	}
	return fmt.Errorf("cancellation refused: %s (code %d)", parsed.Reason, parsed.ReasonCode)
}

// formatAmount renders a price the way it is both signed and sent: no
// trailing zeros, so an integral price stays "100", not "100.00".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
