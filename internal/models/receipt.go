package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the column default for receipts.currency.
const DefaultCurrency = "CAD"

type Receipt struct {
	ID                 uuid.UUID           `db:"id"`
	UserID             uuid.UUID           `db:"user_id"`
	VendorName         *string             `db:"vendor_name"`
	Location           *string             `db:"location"`
	PurchasedAt        *time.Time          `db:"purchased_at"`
	Category           *ReceiptCategory    `db:"category"`
	Subtotal           decimal.NullDecimal `db:"subtotal"`
	Tax                decimal.NullDecimal `db:"tax"`
	Total              decimal.NullDecimal `db:"total"`
	Currency           string              `db:"currency"`
	PaymentType        *PaymentType        `db:"payment_type"`
	CardType           *CardType           `db:"card_type"`
	CardLast4          *string             `db:"card_last4"`
	RefNumber          *string             `db:"ref_number"`
	InvoiceNumber      *string             `db:"invoice_number"`
	AuthNumber         *string             `db:"auth_number"`
	Notes              *string             `db:"notes"`
	Status             ReceiptStatus       `db:"status"`
	SourceExtractionID *uuid.UUID          `db:"source_extraction_id"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}
