package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"receipt-keeper/internal/models"
	"receipt-keeper/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var receiptColumns = []string{
	"id", "user_id", "vendor_name", "location", "purchased_at", "category", "subtotal", "tax", "total",
	"currency", "payment_type", "card_type", "card_last4", "ref_number", "invoice_number", "auth_number",
	"notes", "status", "source_extraction_id", "created_at", "updated_at",
}

// UpdatableReceiptColumns are the columns a partial update may touch.
var UpdatableReceiptColumns = []string{
	"vendor_name", "location", "purchased_at", "category", "subtotal", "tax", "total", "currency",
	"payment_type", "card_type", "card_last4", "ref_number", "invoice_number", "auth_number", "notes",
}

type ReceiptRepository struct {
	db     postgres.DBTX
	logger *zap.Logger
}

// NewReceiptRepository creates a repository over db.
func NewReceiptRepository(db postgres.DBTX, logger *zap.Logger) *ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithFile inserts the receipt and links fileID to it in one transaction.
func (r *ReceiptRepository) CreateWithFile(ctx context.Context, receipt *models.Receipt, fileID uuid.UUID) error {
	query := squirrel.Insert("receipts").
		Columns(receiptColumns...).
		Values(
			receipt.ID, receipt.UserID, receipt.VendorName, receipt.Location, receipt.PurchasedAt, receipt.Category,
			receipt.Subtotal, receipt.Tax, receipt.Total, receipt.Currency, receipt.PaymentType, receipt.CardType,
			receipt.CardLast4, receipt.RefNumber, receipt.InvoiceNumber, receipt.AuthNumber, receipt.Notes,
			receipt.Status, receipt.SourceExtractionID, receipt.CreatedAt, receipt.UpdatedAt,
		).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return mapError(err)
		}
		if err := attachFile(ctx, tx, fileID, receipt.UserID, receipt.ID); err != nil {
			return fmt.Errorf("attach receipt file: %w", err)
		}
		return nil
	})
}

// inTx commits when fn succeeds and rolls back otherwise.
func (r *ReceiptRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			r.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}

// GetForUser returns the receipt only when it belongs to userID.
func (r *ReceiptRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Receipt, error) {
	query := squirrel.Select(receiptColumns...).
		From("receipts").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	receipt, err := scanReceipt(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

// Update applies changes (column -> value) and bumps updated_at, returning the stored row.
func (r *ReceiptRepository) Update(ctx context.Context, id, userID uuid.UUID, changes map[string]interface{}) (*models.Receipt, error) {
	query, err := receiptUpdateQuery(id, userID, changes)
	if err != nil {
		return nil, err
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	receipt, err := scanReceipt(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

func receiptUpdateQuery(id, userID uuid.UUID, changes map[string]interface{}) (squirrel.UpdateBuilder, error) {
	query := squirrel.Update("receipts")

	columns := make([]string, 0, len(changes))
	for column := range changes {
		if !isUpdatableReceiptColumn(column) {
			return query, fmt.Errorf("column %q is not updatable", column)
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		query = query.Set(column, changes[column])
	}

	return query.
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING "+strings.Join(receiptColumns, ", ")).
		PlaceholderFormat(squirrel.Dollar), nil
}

// List returns one page of matching receipts and the unpaginated count.
func (r *ReceiptRepository) List(ctx context.Context, filter ReceiptFilter, page, pageSize int) ([]*models.Receipt, int64, error) {
	sql, args, err := receiptCountQuery(filter).ToSql()
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	receipts := make([]*models.Receipt, 0, pageSize)
	err = r.each(ctx, receiptPageQuery(filter, page, pageSize), func(receipt *models.Receipt) error {
		receipts = append(receipts, receipt)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return receipts, total, nil
}

// Each streams every matching receipt in list order to fn, stopping at the first error.
func (r *ReceiptRepository) Each(ctx context.Context, filter ReceiptFilter, fn func(*models.Receipt) error) error {
	return r.each(ctx, receiptSelectQuery(filter), fn)
}

func (r *ReceiptRepository) each(ctx context.Context, query squirrel.SelectBuilder, fn func(*models.Receipt) error) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return err
		}
		if err := fn(receipt); err != nil {
			return err
		}
	}

	return rows.Err()
}

func scanReceipt(row pgx.Row) (*models.Receipt, error) {
	var rc models.Receipt
	if err := row.Scan(
		&rc.ID, &rc.UserID, &rc.VendorName, &rc.Location, &rc.PurchasedAt, &rc.Category, &rc.Subtotal, &rc.Tax, &rc.Total,
		&rc.Currency, &rc.PaymentType, &rc.CardType, &rc.CardLast4, &rc.RefNumber, &rc.InvoiceNumber, &rc.AuthNumber,
		&rc.Notes, &rc.Status, &rc.SourceExtractionID, &rc.CreatedAt, &rc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rc, nil
}

func isUpdatableReceiptColumn(column string) bool {
	for _, c := range UpdatableReceiptColumns {
		if c == column {
			return true
		}
	}
	return false
}
