package tripay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	c := NewClient(url, "api-key", "private-key", "M123")
	return c
}

func TestCreateTransaction(t *testing.T) {
	var gotAuth string
	var gotReq CreateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/transaction/create", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "",
			"data": map[string]any{
				"reference":   "T-REF-1",
				"trx_id":      "TRX-1",
				"qr_string":   "00020101021226",
				"qr_url":      "https://gw.example/qr/T-REF-1.png",
				"payment_url": "https://gw.example/pay/T-REF-1",
				"status":      "UNPAID",
			},
		})
	}))
	defer srv.Close()

	trx, err := testClient(srv.URL).CreateTransaction(context.Background(), CreateRequest{
		MerchantRef:   "INV-1",
		Amount:        165000,
		CustomerName:  "Buyer",
		CustomerEmail: "buyer@example.com",
		OrderItems:    []OrderItem{{SKU: "p1", Name: "Item", Price: 165000, Quantity: 1}},
		Signature:     "sig",
		ExpiredTime:   time.Now().Unix() + 600,
	})
	require.NoError(t, err)
	require.Equal(t, "T-REF-1", trx.Reference)
	require.Equal(t, "TRX-1", trx.TrxID)
	require.Equal(t, "00020101021226", trx.QRString)

	require.Equal(t, "Bearer api-key", gotAuth)
	// The merchant code is stamped by the client, not the caller.
	require.Equal(t, "M123", gotReq.MerchantCode)
}

func TestCreateTransactionGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "invalid signature",
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateTransaction(context.Background(), CreateRequest{MerchantRef: "INV-1"})
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindGateway))
	require.Equal(t, "invalid signature", apperr.Message(err))
}

func TestCreateTransactionUnreachable(t *testing.T) {
	_, err := testClient("http://127.0.0.1:1").CreateTransaction(context.Background(), CreateRequest{})
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindGateway))
}

func TestGetTransactionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/transaction/detail", r.URL.Path)
		require.Equal(t, "T-REF-1", r.URL.Query().Get("reference"))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"reference": "T-REF-1", "status": "PAID"},
		})
	}))
	defer srv.Close()

	status, err := testClient(srv.URL).GetTransactionStatus(context.Background(), "T-REF-1")
	require.NoError(t, err)
	require.Equal(t, RemotePaid, status)
}

func TestGetTransactionStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "not found"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetTransactionStatus(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindGateway))
}

func TestCalculateExpiry(t *testing.T) {
	c := testClient("http://unused")

	before := time.Now().Unix()
	got := c.CalculateExpiry(10)
	after := time.Now().Unix()

	require.GreaterOrEqual(t, got, before+600)
	require.LessOrEqual(t, got, after+600)
}
