package repository

import (
	"strings"
	"time"

	"receipt-keeper/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptFilter narrows a user's receipts. Zero-valued optional fields are ignored.
type ReceiptFilter struct {
	UserID      uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
	Category    *models.ReceiptCategory
	MinTotal    *decimal.Decimal
	MaxTotal    *decimal.Decimal
	PaymentType *models.PaymentType
	Vendor      string
}

var receiptOrder = []string{"purchased_at DESC NULLS LAST", "created_at DESC"}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so the vendor term matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func applyReceiptFilter(q squirrel.SelectBuilder, f ReceiptFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"user_id": f.UserID})
	if f.StartDate != nil {
		q = q.Where(squirrel.GtOrEq{"purchased_at": *f.StartDate})
	}
	if f.EndDate != nil {
		q = q.Where(squirrel.LtOrEq{"purchased_at": *f.EndDate})
	}
	if f.Category != nil {
		q = q.Where(squirrel.Eq{"category": *f.Category})
	}
	if f.MinTotal != nil {
		q = q.Where(squirrel.GtOrEq{"total": *f.MinTotal})
	}
	if f.MaxTotal != nil {
		q = q.Where(squirrel.LtOrEq{"total": *f.MaxTotal})
	}
	if f.PaymentType != nil {
		q = q.Where(squirrel.Eq{"payment_type": *f.PaymentType})
	}
	if f.Vendor != "" {
		q = q.Where(squirrel.ILike{"vendor_name": "%" + escapeLike(f.Vendor) + "%"})
	}
	return q
}

func receiptSelectQuery(f ReceiptFilter) squirrel.SelectBuilder {
	q := squirrel.Select(receiptColumns...).From("receipts")
	return applyReceiptFilter(q, f).
		OrderBy(receiptOrder...).
		PlaceholderFormat(squirrel.Dollar)
}

func receiptPageQuery(f ReceiptFilter, page, pageSize int) squirrel.SelectBuilder {
	return receiptSelectQuery(f).
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))
}

func receiptCountQuery(f ReceiptFilter) squirrel.SelectBuilder {
	q := squirrel.Select("COUNT(*)").From("receipts")
	return applyReceiptFilter(q, f).PlaceholderFormat(squirrel.Dollar)
}
