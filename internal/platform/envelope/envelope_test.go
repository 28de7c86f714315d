package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic/internal/platform/apperr"
)

func TestOK(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := OK(c, map[string]string{"id": "a1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body["success"])
	}
	if _, ok := body["error"]; ok {
		t.Error("expected no error field on success")
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{
			name:       "validation",
			err:        apperr.Validation("amount", "amount must be greater than 0"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation",
			wantError:  "amount must be greater than 0",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("delete bill: %w", apperr.NotFound("bill", "b1")),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
			wantError:  "delete bill: bill b1 not found",
		},
		{
			name:       "echo http error",
			err:        echo.NewHTTPError(http.StatusBadRequest, "invalid id"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
			wantError:  "invalid id",
		},
		{
			name:       "internal hides cause",
			err:        errors.New("connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
			wantError:  "internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
			if resp.Message != resp.Error {
				t.Errorf("message %q should mirror error %q", resp.Message, resp.Error)
			}
			if resp.Success {
				t.Error("expected success=false")
			}
		})
	}
}

func TestErrorHandler_WritesEnvelope(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.GET("/items/:id", func(c echo.Context) error {
		return &apperr.InsufficientStockError{ItemID: c.Param("id"), Requested: 100, Available: 10}
	})

	req := httptest.NewRequest(http.MethodGet, "/items/x1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "insufficient_stock" {
		t.Errorf("expected insufficient_stock, got %q", body.Code)
	}
	if body.Error != "insufficient stock: requested 100, available 10" {
		t.Errorf("unexpected error text %q", body.Error)
	}
}

func TestErrorHandler_ValidationField(t *testing.T) {
	_, resp := FromError(apperr.Validation("sku", "sku is required"))
	if resp.Field != "sku" {
		t.Errorf("expected field sku, got %q", resp.Field)
	}
}
