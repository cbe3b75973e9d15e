package values

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  bool
	}{
		{name: "valid USD", amount: "150.25", currency: USD},
		{name: "valid CAD", amount: "99.99", currency: CAD},
		{name: "negative amount allowed", amount: "-10.00", currency: USD},
		{name: "unsupported currency", amount: "10.00", currency: "EUR", wantErr: true},
		{name: "garbage amount", amount: "not-a-number", currency: USD, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.amount, tt.currency)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.currency, m.Currency())
			assert.Equal(t, tt.amount, m.Amount().StringFixed(2))
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNewMoneyFromFloat(100.50, USD)
	b := MustNewMoneyFromFloat(24.25, USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "124.75", sum.Amount().StringFixed(2))

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "76.25", diff.Amount().StringFixed(2))

	assert.True(t, a.GreaterThan(b))
	assert.False(t, b.GreaterThan(a))
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	usd := MustNewMoneyFromFloat(10, USD)
	cad := MustNewMoneyFromFloat(10, CAD)

	_, err := usd.Add(cad)
	require.Error(t, err)

	_, err = usd.Sub(cad)
	require.Error(t, err)

	assert.False(t, usd.GreaterThan(cad))
}

func TestMoney_DecimalPrecision(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, which is the point of the decimal backing.
	a := MustNewMoneyFromFloat(0.1, USD)
	b := MustNewMoneyFromFloat(0.2, USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.RequireFromString("0.3")))
}

func TestMoney_Predicates(t *testing.T) {
	assert.True(t, Zero(USD).IsZero())
	assert.False(t, Zero(USD).IsNegative())
	assert.True(t, MustNewMoneyFromFloat(-1, USD).IsNegative())
}

func TestMoney_JSON(t *testing.T) {
	m := MustNewMoneyFromFloat(1234.56, USD)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1234.56","currency":"USD"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Amount().Equal(m.Amount()))
	assert.Equal(t, USD, back.Currency())
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("42.50"))
	assert.Equal(t, "42.50", m.Amount().StringFixed(2))

	require.NoError(t, m.Scan([]byte("7.25")))
	assert.Equal(t, "7.25", m.Amount().StringFixed(2))

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	require.Error(t, m.Scan(42))
}
