package repository

import (
	"context"

	"receipt-keeper/internal/models"
	"receipt-keeper/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var receiptFileColumns = []string{
	"id", "user_id", "receipt_id", "file_path", "file_name", "mime_type", "size_bytes", "sha256", "created_at",
}

// ReceiptFileRepository persists uploaded files in receipt_files.
type ReceiptFileRepository struct {
	db     postgres.DBTX
	logger *zap.Logger
}

// NewReceiptFileRepository creates a repository over db.
func NewReceiptFileRepository(db postgres.DBTX, logger *zap.Logger) *ReceiptFileRepository {
	return &ReceiptFileRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ReceiptFileRepository) Create(ctx context.Context, file *models.ReceiptFile) error {
	query := squirrel.Insert("receipt_files").
		Columns("id", "user_id", "receipt_id", "file_path", "file_name", "mime_type", "size_bytes", "sha256", "created_at").
		Values(file.ID, file.UserID, file.ReceiptID, file.FilePath, file.FileName, file.MimeType, file.SizeBytes, file.SHA256, file.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

// GetForUser returns the file only when it belongs to userID.
func (r *ReceiptFileRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptFile, error) {
	query := squirrel.Select(receiptFileColumns...).
		From("receipt_files").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	return r.getOne(ctx, query)
}

// GetLatestForReceipt returns the most recently uploaded file linked to the receipt.
func (r *ReceiptFileRepository) GetLatestForReceipt(ctx context.Context, receiptID, userID uuid.UUID) (*models.ReceiptFile, error) {
	query := squirrel.Select(receiptFileColumns...).
		From("receipt_files").
		Where(squirrel.Eq{"receipt_id": receiptID, "user_id": userID}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)

	return r.getOne(ctx, query)
}

func (r *ReceiptFileRepository) getOne(ctx context.Context, query squirrel.SelectBuilder) (*models.ReceiptFile, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	file, err := scanReceiptFile(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return file, nil
}

// attachFile links an uploaded file to a receipt. It runs inside the receipt insert transaction.
func attachFile(ctx context.Context, db postgres.DBTX, fileID, userID, receiptID uuid.UUID) error {
	query := squirrel.Update("receipt_files").
		Set("receipt_id", receiptID).
		Where(squirrel.Eq{"id": fileID, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReceiptFile(row pgx.Row) (*models.ReceiptFile, error) {
	var file models.ReceiptFile
	if err := row.Scan(
		&file.ID, &file.UserID, &file.ReceiptID, &file.FilePath, &file.FileName, &file.MimeType, &file.SizeBytes, &file.SHA256, &file.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &file, nil
}
