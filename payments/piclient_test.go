package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/pi-pioneer-hub/apperr"
)

func TestPiClientApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/payments/pay_1/approve", r.URL.Path)
			assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(PiPayment{
				Identifier: "pay_1",
				UserUID:    "u1",
				Amount:     3.14,
				Status:     PiPaymentStatus{DeveloperApproved: true},
			})
		}))
		defer srv.Close()

		client := NewPiClient(srv.URL, "test-key")
		payment, err := client.ApprovePayment(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, "pay_1", payment.Identifier)
		assert.Equal(t, "u1", payment.UserUID)
		assert.True(t, payment.Status.DeveloperApproved)
	})

	t.Run("Provider rejection carries error_message verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":"payment_error","error_message":"insufficient_funds"}`))
		}))
		defer srv.Close()

		client := NewPiClient(srv.URL, "test-key")
		_, err := client.ApprovePayment(ctx, "pay_1")
		require.Error(t, err)

		var rej *apperr.UpstreamRejection
		require.True(t, errors.As(err, &rej))
		assert.Equal(t, http.StatusPaymentRequired, rej.StatusCode)
		assert.Equal(t, "insufficient_funds", rej.ErrorMessage)
		assert.False(t, apperr.IsRetryable(err))
	})

	t.Run("Provider 5xx is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewPiClient(srv.URL, "test-key")
		_, err := client.ApprovePayment(ctx, "pay_1")
		require.Error(t, err)
		assert.True(t, apperr.IsRetryable(err))
	})

	t.Run("Network failure is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := NewPiClient(srv.URL, "test-key")
		_, err := client.ApprovePayment(ctx, "pay_1")
		require.Error(t, err)
		assert.True(t, apperr.IsRetryable(err))
	})

	t.Run("Missing API key", func(t *testing.T) {
		client := NewPiClient("http://unused", "")
		_, err := client.ApprovePayment(ctx, "pay_1")
		var cfg *apperr.ConfigurationError
		assert.True(t, errors.As(err, &cfg))
	})
}

func TestPiClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_2/complete", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx_99", body["txid"])
		json.NewEncoder(w).Encode(PiPayment{
			Identifier:  "pay_2",
			UserUID:     "u1",
			Transaction: &PiTransaction{Txid: "tx_99", Verified: true},
		})
	}))
	defer srv.Close()

	client := NewPiClient(srv.URL, "test-key")
	payment, err := client.CompletePayment(context.Background(), "pay_2", "tx_99")
	require.NoError(t, err)
	require.NotNil(t, payment.Transaction)
	assert.Equal(t, "tx_99", payment.Transaction.Txid)
}

func TestPiClientCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		var body map[string]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u9", body["payment"]["uid"])
		assert.Equal(t, 1.5, body["payment"]["amount"])
		json.NewEncoder(w).Encode(PiPayment{Identifier: "pay_a2u", ToAddress: "GDEST"})
	}))
	defer srv.Close()

	client := NewPiClient(srv.URL, "test-key")
	payment, err := client.CreatePayment(context.Background(), "u9", 1.5, "payout", nil)
	require.NoError(t, err)
	assert.Equal(t, "pay_a2u", payment.Identifier)
	assert.Equal(t, "GDEST", payment.ToAddress)
}
