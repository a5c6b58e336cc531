package service

import (
	"strings"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"

	"github.com/shopspring/decimal"
)

func toNullDecimal(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f).Round(2))
}

func fromNullDecimal(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f, _ := d.Decimal.Float64()
	return &f
}

func toEnum[T ~string](s *string) *T {
	if s == nil {
		return nil
	}
	v := T(*s)
	return &v
}

func fromEnum[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// normalizeCurrency upper-cases a currency code, defaulting to CAD when unset.
func normalizeCurrency(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return models.DefaultCurrency
	}
	return strings.ToUpper(strings.TrimSpace(*s))
}

func applyReceiptFields(r *models.Receipt, f dto.ReceiptFields) {
	r.VendorName = f.VendorName
	r.Location = f.Location
	r.PurchasedAt = f.PurchasedAt.Ptr()
	r.Category = toEnum[models.ReceiptCategory](f.Category)
	r.Subtotal = toNullDecimal(f.Subtotal)
	r.Tax = toNullDecimal(f.Tax)
	r.Total = toNullDecimal(f.Total)
	r.Currency = normalizeCurrency(f.Currency)
	r.PaymentType = toEnum[models.PaymentType](f.PaymentType)
	r.CardType = toEnum[models.CardType](f.CardType)
	r.CardLast4 = f.CardLast4
	r.RefNumber = f.RefNumber
	r.InvoiceNumber = f.InvoiceNumber
	r.AuthNumber = f.AuthNumber
	r.Notes = f.Notes
}

// receiptChanges maps the fields present in a partial update to column values.
func receiptChanges(req *dto.ReceiptUpdateRequest) map[string]interface{} {
	f := req.ReceiptFields
	all := map[string]interface{}{
		"vendor_name":    f.VendorName,
		"location":       f.Location,
		"purchased_at":   f.PurchasedAt.Ptr(),
		"category":       toEnum[models.ReceiptCategory](f.Category),
		"subtotal":       toNullDecimal(f.Subtotal),
		"tax":            toNullDecimal(f.Tax),
		"total":          toNullDecimal(f.Total),
		"currency":       normalizeCurrency(f.Currency),
		"payment_type":   toEnum[models.PaymentType](f.PaymentType),
		"card_type":      toEnum[models.CardType](f.CardType),
		"card_last4":     f.CardLast4,
		"ref_number":     f.RefNumber,
		"invoice_number": f.InvoiceNumber,
		"auth_number":    f.AuthNumber,
		"notes":          f.Notes,
	}

	changes := make(map[string]interface{})
	for _, name := range dto.ReceiptFieldNames {
		if req.Has(name) {
			changes[name] = all[name]
		}
	}
	return changes
}

func receiptFields(r *models.Receipt) dto.ReceiptFields {
	currency := r.Currency
	return dto.ReceiptFields{
		VendorName:    r.VendorName,
		Location:      r.Location,
		PurchasedAt:   dto.NewTimestamp(r.PurchasedAt),
		Category:      fromEnum(r.Category),
		Subtotal:      fromNullDecimal(r.Subtotal),
		Tax:           fromNullDecimal(r.Tax),
		Total:         fromNullDecimal(r.Total),
		Currency:      &currency,
		PaymentType:   fromEnum(r.PaymentType),
		CardType:      fromEnum(r.CardType),
		CardLast4:     r.CardLast4,
		RefNumber:     r.RefNumber,
		InvoiceNumber: r.InvoiceNumber,
		AuthNumber:    r.AuthNumber,
		Notes:         r.Notes,
	}
}

func toReceiptResponse(r *models.Receipt) dto.ReceiptResponse {
	resp := dto.ReceiptResponse{
		ReceiptFields: receiptFields(r),
		ID:            r.ID.String(),
		UserID:        r.UserID.String(),
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.SourceExtractionID != nil {
		resp.SourceExtractionID = stringPtr(r.SourceExtractionID.String())
	}
	return resp
}

// csvRecord renders a receipt in ReceiptFieldNames order. Nulls are empty cells.
func csvRecord(r *models.Receipt) []string {
	purchasedAt := ""
	if r.PurchasedAt != nil {
		purchasedAt = r.PurchasedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		deref(r.VendorName),
		deref(r.Location),
		purchasedAt,
		deref(fromEnum(r.Category)),
		fixed2(r.Subtotal),
		fixed2(r.Tax),
		fixed2(r.Total),
		r.Currency,
		deref(fromEnum(r.PaymentType)),
		deref(fromEnum(r.CardType)),
		deref(r.CardLast4),
		deref(r.RefNumber),
		deref(r.InvoiceNumber),
		deref(r.AuthNumber),
		deref(r.Notes),
	}
}

func fixed2(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
