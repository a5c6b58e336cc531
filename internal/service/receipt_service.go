package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"
	"receipt-keeper/internal/repository"
	"receipt-keeper/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMimeType = "application/octet-stream"

var (
	ErrFileNameMissing     = errors.New("file name missing")
	ErrReceiptNotFound     = errors.New("receipt not found")
	ErrReceiptFileNotFound = errors.New("receipt file not found")
	ErrReceiptPhotoMissing = errors.New("receipt photo missing")
	ErrExtractionNotFound  = errors.New("extraction not found")
	ErrExtractionFailed    = errors.New("extraction failed")
)

// ReceiptFileRepository stores uploaded receipt files.
type ReceiptFileRepository interface {
	Create(ctx context.Context, file *models.ReceiptFile) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptFile, error)
	GetLatestForReceipt(ctx context.Context, receiptID, userID uuid.UUID) (*models.ReceiptFile, error)
}

type ExtractionRepository interface {
	Create(ctx context.Context, e *models.ReceiptExtraction) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, e *models.ReceiptExtraction) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptExtraction, error)
}

type ReceiptRepository interface {
	CreateWithFile(ctx context.Context, receipt *models.Receipt, fileID uuid.UUID) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Receipt, error)
	Update(ctx context.Context, id, userID uuid.UUID, changes map[string]interface{}) (*models.Receipt, error)
	List(ctx context.Context, filter repository.ReceiptFilter, page, pageSize int) ([]*models.Receipt, int64, error)
	Each(ctx context.Context, filter repository.ReceiptFilter, fn func(*models.Receipt) error) error
}

// Extractor runs the extraction pipeline over a stored file.
type Extractor interface {
	Run(ctx context.Context, filePath, currency string) (*ExtractionResult, error)
	ModelName() string
}

// Upload is an incoming receipt file.
type Upload struct {
	FileName string
	MimeType string
	Content  io.Reader
}

// ReceiptService manages uploads, extractions and confirmed receipts.
type ReceiptService struct {
	files       ReceiptFileRepository
	extractions ExtractionRepository
	receipts    ReceiptRepository
	store       *FileStore
	extractor   Extractor
	logger      *zap.Logger
}

// NewReceiptService creates a new receipt service
func NewReceiptService(
	files ReceiptFileRepository,
	extractions ExtractionRepository,
	receipts ReceiptRepository,
	store *FileStore,
	extractor Extractor,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		files:       files,
		extractions: extractions,
		receipts:    receipts,
		store:       store,
		extractor:   extractor,
		logger:      logger,
	}
}

// SaveFile stores an upload and records it as an unlinked receipt file.
func (s *ReceiptService) SaveFile(ctx context.Context, userID uuid.UUID, upload Upload) (*models.ReceiptFile, error) {
	if strings.TrimSpace(upload.FileName) == "" {
		return nil, ErrFileNameMissing
	}

	fileID := uuid.New()
	stored, err := s.store.Save(userID, fileID, upload.FileName, upload.Content)
	if err != nil {
		return nil, err
	}

	mimeType := upload.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	file := &models.ReceiptFile{
		ID:        fileID,
		UserID:    userID,
		FilePath:  stored.Path,
		FileName:  upload.FileName,
		MimeType:  mimeType,
		SizeBytes: stored.Size,
		SHA256:    stored.SHA256,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.files.Create(ctx, file); err != nil {
		s.store.Remove(stored.Path)
		return nil, fmt.Errorf("failed to create receipt file record: %w", err)
	}

	return file, nil
}

// CreateExtraction stores the upload, runs the pipeline and records the outcome.
// A pipeline error marks the extraction failed and returns ErrExtractionFailed.
func (s *ReceiptService) CreateExtraction(ctx context.Context, userID uuid.UUID, upload Upload, currency string) (*dto.ExtractionResponse, error) {
	file, err := s.SaveFile(ctx, userID, upload)
	if err != nil {
		return nil, err
	}

	extraction := &models.ReceiptExtraction{
		ID:            uuid.New(),
		UserID:        userID,
		ReceiptFileID: file.ID,
		Status:        models.ExtractionPending,
		ModelName:     s.extractor.ModelName(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.extractions.Create(ctx, extraction); err != nil {
		return nil, fmt.Errorf("failed to create extraction record: %w", err)
	}

	result, err := s.extractor.Run(ctx, file.FilePath, strings.TrimSpace(currency))
	if err != nil {
		s.logger.Error("Extraction failed",
			zap.String("extraction_id", extraction.ID.String()),
			zap.Error(err),
		)
		metrics.RecordExtraction(metrics.OutcomeFailed)
		if markErr := s.extractions.MarkFailed(ctx, extraction.ID); markErr != nil {
			s.logger.Error("Failed to mark extraction failed", zap.Error(markErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	extracted, err := json.Marshal(result.Extracted)
	if err != nil {
		return nil, err
	}

	ocrText := result.OCRText
	extraction.RawOCRText = &ocrText
	extraction.ExtractedJSON = extracted
	extraction.Confidence = toNullDecimal(result.Confidence)
	extraction.ModelName = result.ModelName
	if err := s.extractions.Complete(ctx, extraction); err != nil {
		return nil, fmt.Errorf("failed to complete extraction: %w", err)
	}
	metrics.RecordExtraction(metrics.OutcomeCompleted)

	s.logger.Info("Extraction completed",
		zap.String("extraction_id", extraction.ID.String()),
		zap.String("model", result.ModelName),
	)

	return &dto.ExtractionResponse{
		ExtractionID:  extraction.ID.String(),
		ReceiptFileID: file.ID.String(),
		Status:        string(models.ExtractionCompleted),
		Extracted:     result.Extracted,
		Confidence:    result.Confidence,
		ModelName:     result.ModelName,
		OCRText:       &ocrText,
	}, nil
}

// CreateReceipt confirms a receipt and links its file in one transaction.
func (s *ReceiptService) CreateReceipt(ctx context.Context, userID uuid.UUID, req *dto.ReceiptCreateRequest) (*dto.ReceiptResponse, error) {
	fileID, err := uuid.Parse(req.ReceiptFileID)
	if err != nil {
		return nil, ErrReceiptFileNotFound
	}
	if _, err := s.files.GetForUser(ctx, fileID, userID); err != nil {
		return nil, notFound(err, ErrReceiptFileNotFound)
	}

	var sourceID *uuid.UUID
	if req.SourceExtractionID != nil {
		id, err := uuid.Parse(*req.SourceExtractionID)
		if err != nil {
			return nil, ErrExtractionNotFound
		}
		if _, err := s.extractions.GetForUser(ctx, id, userID); err != nil {
			return nil, notFound(err, ErrExtractionNotFound)
		}
		sourceID = &id
	}

	now := time.Now().UTC()
	receipt := &models.Receipt{
		ID:                 uuid.New(),
		UserID:             userID,
		Status:             models.ReceiptStatusConfirmed,
		SourceExtractionID: sourceID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	applyReceiptFields(receipt, req.ReceiptFields)

	if err := s.receipts.CreateWithFile(ctx, receipt, fileID); err != nil {
		return nil, notFound(err, ErrReceiptFileNotFound)
	}

	resp := toReceiptResponse(receipt)
	return &resp, nil
}

// UpdateReceipt applies only the fields present in req. An empty body leaves the
// row and its updated_at untouched.
func (s *ReceiptService) UpdateReceipt(ctx context.Context, userID, id uuid.UUID, req *dto.ReceiptUpdateRequest) (*dto.ReceiptResponse, error) {
	if req.Empty() {
		return s.GetReceipt(ctx, userID, id)
	}

	receipt, err := s.receipts.Update(ctx, id, userID, receiptChanges(req))
	if err != nil {
		return nil, notFound(err, ErrReceiptNotFound)
	}

	resp := toReceiptResponse(receipt)
	return &resp, nil
}

// GetReceipt returns the receipt when it belongs to userID.
func (s *ReceiptService) GetReceipt(ctx context.Context, userID, id uuid.UUID) (*dto.ReceiptResponse, error) {
	receipt, err := s.receipts.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, ErrReceiptNotFound)
	}

	resp := toReceiptResponse(receipt)
	return &resp, nil
}

func (s *ReceiptService) ListReceipts(ctx context.Context, filter repository.ReceiptFilter, page, pageSize int) (*dto.ReceiptListResponse, error) {
	receipts, total, err := s.receipts.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	items := make([]dto.ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		items = append(items, toReceiptResponse(r))
	}

	return &dto.ReceiptListResponse{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// ExportCSV writes every matching receipt to w as CSV with a header row.
func (s *ReceiptService) ExportCSV(ctx context.Context, filter repository.ReceiptFilter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(dto.ReceiptFieldNames); err != nil {
		return err
	}

	err := s.receipts.Each(ctx, filter, func(r *models.Receipt) error {
		return cw.Write(csvRecord(r))
	})
	if err != nil {
		return fmt.Errorf("failed to export receipts: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// GetPhoto returns the latest file linked to the receipt, provided it is still on disk.
func (s *ReceiptService) GetPhoto(ctx context.Context, userID, id uuid.UUID) (*models.ReceiptFile, error) {
	if _, err := s.receipts.GetForUser(ctx, id, userID); err != nil {
		return nil, notFound(err, ErrReceiptNotFound)
	}

	file, err := s.files.GetLatestForReceipt(ctx, id, userID)
	if err != nil {
		return nil, notFound(err, ErrReceiptFileNotFound)
	}

	if !s.store.Exists(file.FilePath) {
		return nil, ErrReceiptPhotoMissing
	}
	return file, nil
}

// notFound swaps repository.ErrNotFound for the caller-facing sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}
