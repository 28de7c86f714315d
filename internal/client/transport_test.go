package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTransport_DecodesData(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success":true,"data":{"name":"gauze"}}`)
	var out struct{ Name string }
	err := NewTransport(srv.URL).Do(context.Background(), http.MethodGet, "/x", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "gauze", out.Name)
}

func TestTransport_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "validation keeps field",
			status:  http.StatusUnprocessableEntity,
			body:    `{"success":false,"error":"amount must be greater than 0","code":"validation","field":"amount"}`,
			message: "amount must be greater than 0",
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, "amount", ve.Field)
			},
		},
		{
			name:    "insufficient stock",
			status:  http.StatusConflict,
			body:    `{"success":false,"error":"insufficient stock: requested 5, available 2","code":"insufficient_stock"}`,
			message: "insufficient stock: requested 5, available 2",
			check: func(t *testing.T, err error) {
				assert.True(t, apperr.IsInsufficientStock(err))
			},
		},
		{
			name:    "message used when error is empty",
			status:  http.StatusBadRequest,
			body:    `{"success":false,"message":"legacy message"}`,
			message: "legacy message",
		},
		{
			name:    "status text when body is not an envelope",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			message: "Bad Gateway",
		},
		{
			name:    "success false on 200",
			status:  http.StatusOK,
			body:    `{"success":false,"error":"not yet","code":"invalid_transition"}`,
			message: "not yet",
			check: func(t *testing.T, err error) {
				assert.True(t, apperr.IsInvalidTransition(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			err := NewTransport(srv.URL).Do(context.Background(), http.MethodPost, "/x", map[string]int{"a": 1}, nil)

			var remote *apperr.RemoteError
			require.True(t, errors.As(err, &remote), "expected RemoteError, got %v", err)
			assert.Equal(t, tt.status, remote.Status)
			assert.Equal(t, tt.message, remote.Message)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	err := NewTransport(srv.URL, WithTimeout(50*time.Millisecond)).Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	var remote *apperr.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 0, remote.Status)
	assert.Equal(t, "request timed out", remote.Message)
}

func TestTransport_HeaderFuncAndNoContent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-CSRF-Token")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewTransport(srv.URL+"/", WithHeader(func(h http.Header) { h.Set("X-CSRF-Token", "tok") }))
	require.NoError(t, tr.Do(context.Background(), http.MethodDelete, "/items/1", nil, nil))
	assert.Equal(t, "tok", got)
}

func TestTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewTransport(url).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.True(t, apperr.IsRemote(err))
}
