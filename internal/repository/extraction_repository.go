package repository

import (
	"context"

	"receipt-keeper/internal/models"
	"receipt-keeper/pkg/postgres"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ExtractionRepository struct {
	db     postgres.DBTX
	logger *zap.Logger
}

// NewExtractionRepository creates a repository over db.
func NewExtractionRepository(db postgres.DBTX, logger *zap.Logger) *ExtractionRepository {
	return &ExtractionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ExtractionRepository) Create(ctx context.Context, e *models.ReceiptExtraction) error {
	query := squirrel.Insert("receipt_extractions").
		Columns("id", "user_id", "receipt_file_id", "status", "model_name", "created_at").
		Values(e.ID, e.UserID, e.ReceiptFileID, e.Status, e.ModelName, e.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

func (r *ExtractionRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Update("receipt_extractions").
		Set("status", models.ExtractionFailed).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	return r.exec(ctx, query)
}

// Complete stores the pipeline output and flips the row to completed.
func (r *ExtractionRepository) Complete(ctx context.Context, e *models.ReceiptExtraction) error {
	query := squirrel.Update("receipt_extractions").
		Set("status", models.ExtractionCompleted).
		Set("raw_ocr_text", e.RawOCRText).
		Set("extracted_json", []byte(e.ExtractedJSON)).
		Set("confidence", e.Confidence).
		Set("model_name", e.ModelName).
		Where(squirrel.Eq{"id": e.ID}).
		PlaceholderFormat(squirrel.Dollar)

	if err := r.exec(ctx, query); err != nil {
		return err
	}
	e.Status = models.ExtractionCompleted
	return nil
}

// GetForUser returns the extraction only when it belongs to userID.
func (r *ExtractionRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptExtraction, error) {
	query := squirrel.Select("id", "user_id", "receipt_file_id", "status", "raw_ocr_text", "extracted_json", "confidence", "model_name", "created_at").
		From("receipt_extractions").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var (
		e   models.ReceiptExtraction
		raw []byte
	)
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&e.ID, &e.UserID, &e.ReceiptFileID, &e.Status, &e.RawOCRText, &raw, &e.Confidence, &e.ModelName, &e.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	e.ExtractedJSON = raw

	return &e, nil
}

func (r *ExtractionRepository) exec(ctx context.Context, query squirrel.UpdateBuilder) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
