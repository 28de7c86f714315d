package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic/pkg/money"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want money.Amount
	}{
		{"100", 10000},
		{"12.5", 1250},
		{"12.50", 1250},
		{"0.01", 1},
		{"-3.07", -307},
		{" 7 ", 700},
	}
	for _, tt := range tests {
		got, err := money.Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "1.005", "12,50"} {
		_, err := money.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "0.00", money.Zero.String())
	assert.Equal(t, "60.00", money.FromMinor(6000).String())
	assert.Equal(t, "-0.05", money.FromMinor(-5).String())
}

func TestSum_NoFloatDrift(t *testing.T) {
	a := money.MustParse("0.1")
	b := money.MustParse("0.2")
	assert.Equal(t, money.MustParse("0.3"), money.Sum(a, b))
}

func TestAmount_JSON(t *testing.T) {
	type wrapper struct {
		Amount money.Amount `json:"amount"`
	}

	out, err := json.Marshal(wrapper{Amount: 1999})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"19.99"}`, string(out))

	var fromString wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"40"}`), &fromString))
	assert.Equal(t, money.Amount(4000), fromString.Amount)

	var fromNumber wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.75}`), &fromNumber))
	assert.Equal(t, money.Amount(1275), fromNumber.Amount)

	var bad wrapper
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1.234"}`), &bad))
}

func TestAmount_Mul(t *testing.T) {
	price := money.MustParse("2.50")
	assert.Equal(t, money.MustParse("25.00"), price.Mul(10))
}
