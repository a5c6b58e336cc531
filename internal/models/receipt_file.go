package models

import (
	"time"

	"github.com/google/uuid"
)

type ReceiptFile struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	ReceiptID *uuid.UUID `db:"receipt_id"`
	FilePath  string     `db:"file_path"`
	FileName  string     `db:"file_name"`
	MimeType  string     `db:"mime_type"`
	SizeBytes int64      `db:"size_bytes"`
	SHA256    string     `db:"sha256"`
	CreatedAt time.Time  `db:"created_at"`
}
