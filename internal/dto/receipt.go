package dto

import (
	"encoding/json"
	"time"
)

// ReceiptFields are the user-editable receipt attributes shared by extraction results,
// create, update and read payloads.
type ReceiptFields struct {
	VendorName    *string    `json:"vendor_name"`
	Location      *string    `json:"location"`
	PurchasedAt   *Timestamp `json:"purchased_at"`
	Category      *string    `json:"category" validate:"omitempty,oneof=gas food office travel lodging entertainment medical personal other"`
	Subtotal      *float64   `json:"subtotal" validate:"omitempty,gte=0"`
	Tax           *float64   `json:"tax" validate:"omitempty,gte=0"`
	Total         *float64   `json:"total" validate:"omitempty,gte=0"`
	Currency      *string    `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentType   *string    `json:"payment_type" validate:"omitempty,oneof=credit_card debit_card cash transfer mobile_pay other"`
	CardType      *string    `json:"card_type" validate:"omitempty,oneof=visa mastercard amex discover other unknown"`
	CardLast4     *string    `json:"card_last4" validate:"omitempty,len=4,numeric"`
	RefNumber     *string    `json:"ref_number"`
	InvoiceNumber *string    `json:"invoice_number"`
	AuthNumber    *string    `json:"auth_number"`
	Notes         *string    `json:"notes"`
}

// ReceiptFieldNames lists the JSON keys of ReceiptFields in export column order.
var ReceiptFieldNames = []string{
	"vendor_name", "location", "purchased_at", "category", "subtotal", "tax", "total", "currency",
	"payment_type", "card_type", "card_last4", "ref_number", "invoice_number", "auth_number", "notes",
}

type ReceiptCreateRequest struct {
	ReceiptFields
	ReceiptFileID      string  `json:"receipt_file_id" validate:"required,uuid"`
	SourceExtractionID *string `json:"source_extraction_id" validate:"omitempty,uuid"`
}

// ReceiptUpdateRequest is a partial update: only keys present in the body are applied,
// and an explicit null clears the field.
type ReceiptUpdateRequest struct {
	ReceiptFields
	present map[string]bool
}

func (r *ReceiptUpdateRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &r.ReceiptFields); err != nil {
		return err
	}

	r.present = make(map[string]bool, len(raw))
	for _, name := range ReceiptFieldNames {
		if _, ok := raw[name]; ok {
			r.present[name] = true
		}
	}
	return nil
}

// Has reports whether the field was present in the request body.
func (r *ReceiptUpdateRequest) Has(field string) bool {
	return r.present[field]
}

// Empty reports whether the update touches no fields.
func (r *ReceiptUpdateRequest) Empty() bool {
	return len(r.present) == 0
}

type ReceiptResponse struct {
	ReceiptFields
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Status             string    `json:"status"`
	SourceExtractionID *string   `json:"source_extraction_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ReceiptListResponse struct {
	Items    []ReceiptResponse `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int64             `json:"total"`
}

type ExtractionResponse struct {
	ExtractionID  string        `json:"extraction_id"`
	ReceiptFileID string        `json:"receipt_file_id"`
	Status        string        `json:"status"`
	Extracted     ReceiptFields `json:"extracted"`
	Confidence    *float64      `json:"confidence"`
	ModelName     string        `json:"model_name"`
	OCRText       *string       `json:"ocr_text"`
}
