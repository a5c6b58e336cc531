package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseJSONObject(t *testing.T) {
	tests := map[string]string{
		"plain":   `{"a": 1}`,
		"wrapped": "prefix blah\n{\"a\": 1, \"b\": {\"c\": 2}}\ntrailing",
		"fenced":  "```json\n{\"a\": 1}\n```",
		"inline":  "Here you go: ```{\"a\": 1}```",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			obj, err := parseJSONObject(text)
			require.NoError(t, err)
			assert.Equal(t, int64(1), obj.Get("a").Int())
		})
	}
}

func TestParseJSONObjectFailures(t *testing.T) {
	_, err := parseJSONObject("no braces here")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = parseJSONObject("{not json}")
	assert.ErrorIs(t, err, ErrNoJSONObject)

	_, err = parseJSONObject(`[1, 2]`)
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("TOTAL 12.00", "")
	assert.Contains(t, p, "Default currency is CAD if not present.")
	assert.Contains(t, p, "vendor_name, location, purchased_at")
	assert.Contains(t, p, "card_type must be one of: visa, mastercard, amex, discover, other, unknown.")
	assert.Contains(t, p, "OCR text:\nTOTAL 12.00")

	assert.Contains(t, buildPrompt("x", "USD"), "Default currency is USD if not present.")
}

func TestReconcileFields(t *testing.T) {
	obj := gjson.Parse(`{
		"vendor_name": "  Shell  ",
		"location": "",
		"purchased_at": "2026-02-03 14:05",
		"category": "Gas",
		"subtotal": "$1,234.567",
		"tax": 1.5,
		"total": "n/a",
		"currency": "usd",
		"payment_type": "credit card",
		"card_type": "diners",
		"card_last4": "**** **** 9876",
		"invoice_number": 12345,
		"notes": null
	}`)

	f := reconcileFields(obj, "")

	require.NotNil(t, f.VendorName)
	assert.Equal(t, "Shell", *f.VendorName)
	assert.Nil(t, f.Location)
	require.NotNil(t, f.PurchasedAt)
	assert.Equal(t, 14, f.PurchasedAt.Hour())
	require.NotNil(t, f.Category)
	assert.Equal(t, "gas", *f.Category)
	require.NotNil(t, f.Subtotal)
	assert.Equal(t, 1234.57, *f.Subtotal)
	require.NotNil(t, f.Tax)
	assert.Equal(t, 1.5, *f.Tax)
	assert.Nil(t, f.Total)
	require.NotNil(t, f.Currency)
	assert.Equal(t, "USD", *f.Currency)
	require.NotNil(t, f.PaymentType)
	assert.Equal(t, "credit_card", *f.PaymentType)
	assert.Nil(t, f.CardType)
	require.NotNil(t, f.CardLast4)
	assert.Equal(t, "9876", *f.CardLast4)
	require.NotNil(t, f.InvoiceNumber)
	assert.Equal(t, "12345", *f.InvoiceNumber)
	assert.Nil(t, f.Notes)
}

func TestReconcileCurrencyFallback(t *testing.T) {
	f := reconcileFields(gjson.Parse(`{"total": 1.0}`), "cad")
	require.NotNil(t, f.Currency)
	assert.Equal(t, "CAD", *f.Currency)

	f = reconcileFields(gjson.Parse(`{"currency": "EUR"}`), "CAD")
	assert.Equal(t, "EUR", *f.Currency)

	f = reconcileFields(gjson.Parse(`{"currency": ""}`), "")
	assert.Nil(t, f.Currency)

	f = reconcileFields(gjson.Parse(`{"purchased_at": "last tuesday", "card_last4": "12"}`), "")
	assert.Nil(t, f.PurchasedAt)
	assert.Nil(t, f.CardLast4)
}

func TestCoerceAmountSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{`"12,50"`, floatPtr(12.5)},
		{`"1.234,56"`, floatPtr(1234.56)},
		{`"1,234.56"`, floatPtr(1234.56)},
		{`"$1,234"`, floatPtr(1234)},
		{`"1,234,567"`, floatPtr(1234567)},
		{`"1.234.567"`, floatPtr(1234567)},
		{`"12.5"`, floatPtr(12.5)},
		{`"-3,75 $"`, floatPtr(-3.75)},
		{`"12,5"`, nil},
		{`"1.2.3"`, nil},
		{`"1,2,3"`, nil},
		{`"1.234,5,6"`, nil},
		{`7.125`, floatPtr(7.13)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := coerceAmount(gjson.Parse(`{"v":` + tt.in + `}`).Get("v"))
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
