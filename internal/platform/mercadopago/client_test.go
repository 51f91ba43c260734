package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/pkg/logctx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOptions{AccessToken: "TEST-token", BaseURL: srv.URL + "/", Timeout: 2 * time.Second}, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestClient_CreatePreapproval(t *testing.T) {
	end := time.Date(2028, 3, 10, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/preapproval", r.URL.Path)
		assert.Equal(t, "Bearer TEST-token", r.Header.Get("Authorization"))
		assert.Equal(t, "trace-1", r.Header.Get("X-Idempotency-Key"))

		var req struct {
			ExternalReference string `json:"external_reference"`
			Status            string `json:"status"`
			AutoRecurring     struct {
				FrequencyType string `json:"frequency_type"`
				EndDate       string `json:"end_date"`
			} `json:"auto_recurring"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "clinic-abc-monthly-1", req.ExternalReference)
		assert.Equal(t, "months", req.AutoRecurring.FrequencyType)
		assert.Equal(t, "2028-03-10T12:00:00Z", req.AutoRecurring.EndDate)
		assert.Equal(t, "pending", req.Status)

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"2c93808a","status":"pending","init_point":"https://mp/init","sandbox_init_point":"https://mp/sandbox"}`)
	})

	ctx := logctx.WithTraceID(context.Background(), "trace-1")
	got, err := c.CreatePreapproval(ctx, &PreapprovalRequest{
		ExternalReference: "clinic-abc-monthly-1",
		AutoRecurring:     AutoRecurring{Frequency: 1, FrequencyType: "months", TransactionAmount: 49.9, CurrencyID: "BRL", EndDate: &end},
		Status:            "pending",
	})
	require.NoError(t, err)
	assert.Equal(t, "2c93808a", got.ID)
	assert.Equal(t, "https://mp/init", got.InitPoint)
	assert.Equal(t, "https://mp/sandbox", got.SandboxInitPoint)
	assert.Nil(t, got.AutoRecurring.EndDate)
}

func TestClient_GetPreapproval(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/preapproval/pre_1", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"pre_1","status":"authorized","external_reference":"clinic-abc-yearly-1","auto_recurring":{"frequency":1,"frequency_type":"years","end_date":"2027-06-01T10:00:00.000-03:00","transaction_amount":499,"currency_id":"BRL"}}`)
	})

	got, err := c.GetPreapproval(context.Background(), "pre_1")
	require.NoError(t, err)
	assert.Equal(t, PreapprovalStatusAuthorized, got.Status)
	assert.Equal(t, "years", got.AutoRecurring.FrequencyType)
	end, ok := got.PeriodEnd()
	require.True(t, ok)
	assert.True(t, end.Equal(time.Date(2027, 6, 1, 13, 0, 0, 0, time.UTC)))
}

func TestClient_UpdatePreapprovalStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/preapproval/pre_1", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"cancelled"}`, string(body))
		_, _ = io.WriteString(w, `{"id":"pre_1","status":"cancelled"}`)
	})

	got, err := c.UpdatePreapprovalStatus(context.Background(), "pre_1", PreapprovalStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, PreapprovalStatusCancelled, got.Status)
}

func TestClient_RejectsPathIDs(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	for _, id := range []string{"", "../v1/payments", "pre?x=1"} {
		_, err := c.GetPreapproval(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, id)
		_, err = c.UpdatePreapprovalStatus(context.Background(), id, PreapprovalStatusPaused)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
	_, err := c.GetPayment(context.Background(), "pay-abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, calls.Load())
}

func TestClient_GetPayment(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		wantPreapproval string
	}{
		{
			name:            "metadata preapproval id",
			body:            `{"id":1234567890,"status":"approved","transaction_amount":49.9,"currency_id":"BRL","payment_method_id":"visa","payer":{"email":"a@b.c"},"external_reference":"clinic-abc-monthly-1","metadata":{"preapproval_id":"pre_2"}}`,
			wantPreapproval: "pre_2",
		},
		{
			name:            "point of interaction subscription id",
			body:            `{"id":1234567890,"status":"rejected","status_detail":"cc_rejected_insufficient_amount","point_of_interaction":{"transaction_data":{"subscription_id":"pre_3"}},"metadata":{"preapproval_id":"pre_other"}}`,
			wantPreapproval: "pre_3",
		},
		{
			name: "no preapproval",
			body: `{"id":1234567890,"status":"approved"}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/payments/1234567890", r.URL.Path)
				_, _ = io.WriteString(w, tc.body)
			})
			got, err := c.GetPayment(context.Background(), "1234567890")
			require.NoError(t, err)
			assert.Equal(t, "1234567890", got.ID)
			assert.Equal(t, tc.wantPreapproval, got.PreapprovalID())

			var raw map[string]any
			require.NoError(t, json.Unmarshal(got.Raw, &raw))
			assert.EqualValues(t, 1234567890, raw["id"])
		})
	}
}

func TestClient_ListPaymentMethods(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_methods", r.URL.Path)
		_, _ = io.WriteString(w, `[{"id":"visa","name":"Visa","payment_type_id":"credit_card","secure_thumbnail":"https://img/visa.gif"},{"id":"pix","name":"PIX","payment_type_id":"bank_transfer"}]`)
	})
	got, err := c.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://img/visa.gif", got[0].SecureThumbnail)
	assert.Equal(t, "pix", got[1].ID)
}

func TestClient_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Preapproval not found","error":"not_found","status":404}`)
		})
		_, err := c.GetPreapproval(context.Background(), "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Preapproval not found", apiErr.Message)
		assert.JSONEq(t, `{"message":"Preapproval not found","error":"not_found","status":404}`, string(apiErr.Body))
	})

	t.Run("bad request with plain body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `oops`)
		})
		_, err := c.UpdatePreapprovalStatus(context.Background(), "pre_1", "paused")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Equal(t, `"oops"`, string(apiErr.Body))
	})

	t.Run("timeout is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()
		c, err := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop().Sugar())
		require.NoError(t, err)

		_, err = c.GetPayment(context.Background(), "1")
		require.Error(t, err)
		var apiErr *APIError
		assert.False(t, errors.As(err, &apiErr))
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestClient_BaseURLPathPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sandbox/v1/payment_methods", r.URL.Path)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()
	c, err := NewClient(ClientOptions{BaseURL: srv.URL + "/sandbox"}, zap.NewNop().Sugar())
	require.NoError(t, err)

	got, err := c.ListPaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
