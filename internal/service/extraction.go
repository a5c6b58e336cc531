package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrNoJSONObject = errors.New("no JSON object in model output")

var (
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	codeFencePattern  = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	amountJunkPattern = regexp.MustCompile(`[^0-9.,\-]`)
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
	nonDigitPattern   = regexp.MustCompile(`\D`)
)

func buildPrompt(ocrText, currency string) string {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return "You are extracting structured receipt data from OCR text. " +
		"Return ONLY valid JSON with these fields: " +
		strings.Join(dto.ReceiptFieldNames, ", ") + ". " +
		"If a field is unknown, use null. " +
		"Use ISO 8601 for purchased_at when possible. " +
		"Category must be one of: " + joinValues(models.ReceiptCategories) + ". " +
		"payment_type must be one of: " + joinValues(models.PaymentTypes) + ". " +
		"card_type must be one of: " + joinValues(models.CardTypes) + ". " +
		fmt.Sprintf("Default currency is %s if not present. ", currency) +
		"OCR text:\n" +
		ocrText
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// parseJSONObject accepts model output that is a JSON object, possibly wrapped in
// code fences or surrounding prose.
func parseJSONObject(text string) (gjson.Result, error) {
	text = strings.TrimSpace(text)
	if obj, ok := asObject(text); ok {
		return obj, nil
	}

	stripped := codeFencePattern.ReplaceAllString(text, "")
	if obj, ok := asObject(strings.TrimSpace(stripped)); ok {
		return obj, nil
	}

	match := jsonObjectPattern.FindString(stripped)
	if match == "" {
		return gjson.Result{}, ErrNoJSONObject
	}
	obj, ok := asObject(match)
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: candidate is not valid JSON", ErrNoJSONObject)
	}
	return obj, nil
}

func asObject(text string) (gjson.Result, bool) {
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	result := gjson.Parse(text)
	return result, result.IsObject()
}

// reconcileFields coerces the model's object into typed receipt fields. Values that
// cannot be coerced are dropped. fallbackCurrency fills a missing currency.
func reconcileFields(obj gjson.Result, fallbackCurrency string) dto.ReceiptFields {
	if !truthy(obj.Get("currency")) && fallbackCurrency != "" {
		fallbackCurrency = strings.ToUpper(strings.TrimSpace(fallbackCurrency))
	} else {
		fallbackCurrency = ""
	}

	fields := dto.ReceiptFields{
		VendorName:    coerceString(obj.Get("vendor_name")),
		Location:      coerceString(obj.Get("location")),
		PurchasedAt:   coerceTimestamp(obj.Get("purchased_at")),
		Category:      coerceEnum(obj.Get("category"), models.ReceiptCategory.Valid),
		Subtotal:      coerceAmount(obj.Get("subtotal")),
		Tax:           coerceAmount(obj.Get("tax")),
		Total:         coerceAmount(obj.Get("total")),
		Currency:      coerceCurrency(obj.Get("currency")),
		PaymentType:   coerceEnum(obj.Get("payment_type"), models.PaymentType.Valid),
		CardType:      coerceEnum(obj.Get("card_type"), models.CardType.Valid),
		CardLast4:     coerceLast4(obj.Get("card_last4")),
		RefNumber:     coerceString(obj.Get("ref_number")),
		InvoiceNumber: coerceString(obj.Get("invoice_number")),
		AuthNumber:    coerceString(obj.Get("auth_number")),
		Notes:         coerceString(obj.Get("notes")),
	}

	if fields.Currency == nil && currencyPattern.MatchString(fallbackCurrency) {
		fields.Currency = stringPtr(fallbackCurrency)
	}
	return fields
}

// truthy mirrors loose JSON truthiness: absent, null, false, "" and 0 are false.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	case gjson.True:
		return true
	case gjson.JSON:
		return r.Raw != "{}" && r.Raw != "[]"
	default:
		return false
	}
}

func coerceString(r gjson.Result) *string {
	var s string
	switch r.Type {
	case gjson.String:
		s = strings.TrimSpace(r.Str)
	case gjson.Number:
		s = r.Raw
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func coerceAmount(r gjson.Result) *float64 {
	var raw string
	switch r.Type {
	case gjson.Number:
		raw = r.Raw
	case gjson.String:
		var ok bool
		raw, ok = normalizeAmount(amountJunkPattern.ReplaceAllString(r.Str, ""))
		if !ok {
			return nil
		}
	default:
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	f, _ := d.Round(2).Float64()
	return &f
}

// normalizeAmount resolves grouping and decimal separators. With both '.' and ','
// the last one is the decimal point. A lone separator followed by exactly two digits
// is decimal, groups of three are thousands, anything else is ambiguous.
func normalizeAmount(s string) (string, bool) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalSep, groupSep := ".", ","
		if lastComma > lastDot {
			decimalSep, groupSep = ",", "."
		}
		s = strings.ReplaceAll(s, groupSep, "")
		if strings.Count(s, decimalSep) != 1 {
			return "", false
		}
		return strings.Replace(s, decimalSep, ".", 1), true
	case lastComma >= 0:
		return resolveSeparator(s, ",")
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return resolveSeparator(s, ".")
	}
	return s, true
}

func resolveSeparator(s, sep string) (string, bool) {
	parts := strings.Split(s, sep)
	if len(parts) == 2 && len(parts[1]) == 2 {
		return parts[0] + "." + parts[1], true
	}
	for _, group := range parts[1:] {
		if len(group) != 3 {
			return "", false
		}
	}
	return strings.Join(parts, ""), true
}

func coerceTimestamp(r gjson.Result) *dto.Timestamp {
	if r.Type != gjson.String {
		return nil
	}
	t, err := dto.ParseTimestamp(strings.TrimSpace(r.Str))
	if err != nil {
		return nil
	}
	return &dto.Timestamp{Time: t}
}

func coerceEnum[T ~string](r gjson.Result, valid func(T) bool) *string {
	if r.Type != gjson.String {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(r.Str))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	if !valid(T(v)) {
		return nil
	}
	return &v
}

func coerceCurrency(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(r.Str))
	if !currencyPattern.MatchString(v) {
		return nil
	}
	return &v
}

func coerceLast4(r gjson.Result) *string {
	var raw string
	switch r.Type {
	case gjson.String:
		raw = r.Str
	case gjson.Number:
		raw = r.Raw
	default:
		return nil
	}
	digits := nonDigitPattern.ReplaceAllString(raw, "")
	if len(digits) < 4 {
		return nil
	}
	last4 := digits[len(digits)-4:]
	return &last4
}
