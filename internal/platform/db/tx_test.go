package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "inventory_item_sku_key"}

	if !IsUniqueViolation(dup, "") {
		t.Error("expected unique violation for any constraint")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", dup), "inventory_item_sku_key") {
		t.Error("expected wrapped unique violation to match constraint")
	}
	if IsUniqueViolation(dup, "other_key") {
		t.Error("expected mismatch for a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
}
