package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReceiptExtraction struct {
	ID            uuid.UUID           `db:"id"`
	UserID        uuid.UUID           `db:"user_id"`
	ReceiptFileID uuid.UUID           `db:"receipt_file_id"`
	Status        ExtractionStatus    `db:"status"`
	RawOCRText    *string             `db:"raw_ocr_text"`
	ExtractedJSON json.RawMessage     `db:"extracted_json"`
	Confidence    decimal.NullDecimal `db:"confidence"`
	ModelName     string              `db:"model_name"`
	CreatedAt     time.Time           `db:"created_at"`
}
