package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Session is what the gateway returns when a checkout session is opened;
// the client is redirected to URL and the gateway calls the webhook later.
type Session struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// WebhookEvent is the payload the gateway POSTs back after the shopper
// pays. OrderNumber round-trips through the gateway's reference field.
type WebhookEvent struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	OrderNumber string `json:"reference"`
	Amount      string `json:"amount"`
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

// CreateSession opens a checkout session at the gateway for amount (major
// units as a decimal string) tied to orderNumber.
func (c *Client) CreateSession(ctx context.Context, orderNumber, amount, currency string) (*Session, error) {
	body, _ := json.Marshal(map[string]string{
		"reference": orderNumber,
		"amount":    amount,
		"currency":  currency,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment gateway error: %s", res.Status)
	}
	var s Session
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// VerifySignature checks the HMAC-SHA256 hex signature the gateway sends
// in its webhook header against the raw request body.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(signature))
}
