package tripay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
)

// Remote transaction statuses as reported by the gateway.
const (
	RemotePaid    = "PAID"
	RemoteExpired = "EXPIRED"
	RemoteFailed  = "FAILED"
	RemoteUnpaid  = "UNPAID"
)

type OrderItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type CreateRequest struct {
	MerchantCode  string      `json:"merchant_code"`
	MerchantRef   string      `json:"merchant_ref"`
	Amount        int64       `json:"amount"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	OrderItems    []OrderItem `json:"order_items"`
	Signature     string      `json:"signature"`
	ExpiredTime   int64       `json:"expired_time"`
	CallbackURL   string      `json:"callback_url,omitempty"`
}

// Transaction is the remote transaction descriptor returned on create.
type Transaction struct {
	Reference   string `json:"reference"`
	TrxID       string `json:"trx_id"`
	QRString    string `json:"qr_string"`
	QRURL       string `json:"qr_url"`
	PaymentURL  string `json:"payment_url"`
	CheckoutURL string `json:"checkout_url"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	ExpiredTime int64  `json:"expired_time"`
}

// createResponse and statusResponse are the gateway's success/error
// discriminated envelopes. Success=false always carries a message.
type createResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    Transaction `json:"data"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    int64  `json:"paid_at"`
	} `json:"data"`
}

type Client struct {
	BaseURL      string
	APIKey       string
	PrivateKey   []byte
	MerchantCode string
	HTTP         *http.Client
}

func NewClient(baseURL, apiKey, privateKey, merchantCode string) *Client {
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		PrivateKey:   []byte(privateKey),
		MerchantCode: merchantCode,
		HTTP:         &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateTransaction registers a new transaction with the gateway and
// returns its payment artifacts. A non-success response or transport
// failure surfaces as a gateway error; nothing is retried.
func (c *Client) CreateTransaction(ctx context.Context, req CreateRequest) (*Transaction, error) {
	req.MerchantCode = c.MerchantCode

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal("failed to encode gateway request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/transaction/create", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("failed to build gateway request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, apperr.Gateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Gateway("malformed gateway response", err)
	}
	if !out.Success {
		return nil, apperr.Gateway(gatewayMessage(out.Message, "failed to create gateway transaction"), nil)
	}

	return &out.Data, nil
}

// GetTransactionStatus fetches the current remote status for a gateway
// reference. A failure here means "status unknown", never a terminal
// state.
func (c *Client) GetTransactionStatus(ctx context.Context, reference string) (string, error) {
	url := fmt.Sprintf("%s/api/transaction/detail?reference=%s", c.BaseURL, reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Internal("failed to build gateway request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", apperr.Gateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Gateway("malformed gateway response", err)
	}
	if !out.Success {
		return "", apperr.Gateway(gatewayMessage(out.Message, "failed to fetch transaction status"), nil)
	}

	return out.Data.Status, nil
}

// CalculateExpiry returns now + minutes as epoch seconds. The gateway's
// expired_time parameter and the local countdown both use this formula so
// the two views of expiry stay consistent.
func (c *Client) CalculateExpiry(minutes int) int64 {
	return time.Now().Unix() + int64(minutes)*60
}

func gatewayMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
