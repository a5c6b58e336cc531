package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"
	"receipt-keeper/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memFiles struct{ rows map[uuid.UUID]*models.ReceiptFile }

func (m *memFiles) Create(ctx context.Context, f *models.ReceiptFile) error {
	m.rows[f.ID] = f
	return nil
}

func (m *memFiles) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptFile, error) {
	if f, ok := m.rows[id]; ok && f.UserID == userID {
		return f, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memFiles) GetLatestForReceipt(ctx context.Context, receiptID, userID uuid.UUID) (*models.ReceiptFile, error) {
	var latest *models.ReceiptFile
	for _, f := range m.rows {
		if f.UserID == userID && f.ReceiptID != nil && *f.ReceiptID == receiptID {
			if latest == nil || f.CreatedAt.After(latest.CreatedAt) {
				latest = f
			}
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

type memExtractions struct{ rows map[uuid.UUID]*models.ReceiptExtraction }

func (m *memExtractions) Create(ctx context.Context, e *models.ReceiptExtraction) error {
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memExtractions) MarkFailed(ctx context.Context, id uuid.UUID) error {
	m.rows[id].Status = models.ExtractionFailed
	return nil
}

func (m *memExtractions) Complete(ctx context.Context, e *models.ReceiptExtraction) error {
	cp := *e
	cp.Status = models.ExtractionCompleted
	m.rows[e.ID] = &cp
	return nil
}

func (m *memExtractions) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.ReceiptExtraction, error) {
	if e, ok := m.rows[id]; ok && e.UserID == userID {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

type memReceipts struct {
	files   *memFiles
	rows    []*models.Receipt
	changes map[string]interface{}
	updates int
}

func (m *memReceipts) CreateWithFile(ctx context.Context, r *models.Receipt, fileID uuid.UUID) error {
	f, err := m.files.GetForUser(ctx, fileID, r.UserID)
	if err != nil {
		return err
	}
	m.rows = append(m.rows, r)
	f.ReceiptID = &r.ID
	return nil
}

func (m *memReceipts) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Receipt, error) {
	for _, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memReceipts) Update(ctx context.Context, id, userID uuid.UUID, changes map[string]interface{}) (*models.Receipt, error) {
	r, err := m.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	m.updates++
	m.changes = changes
	if v, ok := changes["notes"]; ok {
		r.Notes = v.(*string)
	}
	if v, ok := changes["currency"]; ok {
		r.Currency = v.(string)
	}
	return r, nil
}

func (m *memReceipts) List(ctx context.Context, f repository.ReceiptFilter, page, pageSize int) ([]*models.Receipt, int64, error) {
	var out []*models.Receipt
	for _, r := range m.rows {
		if r.UserID == f.UserID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memReceipts) Each(ctx context.Context, f repository.ReceiptFilter, fn func(*models.Receipt) error) error {
	items, _, _ := m.List(ctx, f, 1, 0)
	for _, r := range items {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

type fakeExtractor struct {
	result *ExtractionResult
	err    error
}

func (f fakeExtractor) Run(ctx context.Context, filePath, currency string) (*ExtractionResult, error) {
	return f.result, f.err
}

func (f fakeExtractor) ModelName() string { return "fake-model" }

type receiptFixture struct {
	svc         *ReceiptService
	files       *memFiles
	extractions *memExtractions
	receipts    *memReceipts
	userID      uuid.UUID
}

func newReceiptFixture(t *testing.T, extractor Extractor) *receiptFixture {
	files := &memFiles{rows: make(map[uuid.UUID]*models.ReceiptFile)}
	extractions := &memExtractions{rows: make(map[uuid.UUID]*models.ReceiptExtraction)}
	receipts := &memReceipts{files: files}
	store := NewFileStore(t.TempDir(), zap.NewNop())
	return &receiptFixture{
		svc:         NewReceiptService(files, extractions, receipts, store, extractor, zap.NewNop()),
		files:       files,
		extractions: extractions,
		receipts:    receipts,
		userID:      uuid.New(),
	}
}

func (f *receiptFixture) upload(t *testing.T) *models.ReceiptFile {
	file, err := f.svc.SaveFile(context.Background(), f.userID, Upload{FileName: "r.png", Content: strings.NewReader("img")})
	require.NoError(t, err)
	return file
}

func TestSaveFile(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})

	file := fx.upload(t)
	assert.Equal(t, "application/octet-stream", file.MimeType)
	assert.Equal(t, int64(3), file.SizeBytes)
	assert.Nil(t, file.ReceiptID)
	assert.Len(t, file.SHA256, 64)

	_, err := fx.svc.SaveFile(context.Background(), fx.userID, Upload{FileName: "", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrFileNameMissing)
}

func TestCreateExtractionSuccess(t *testing.T) {
	vendor := "Shell"
	fx := newReceiptFixture(t, fakeExtractor{result: &ExtractionResult{
		OCRText:   "SHELL",
		Extracted: dto.ReceiptFields{VendorName: &vendor},
		ModelName: "llama3",
	}})

	resp, err := fx.svc.CreateExtraction(context.Background(), fx.userID,
		Upload{FileName: "r.jpg", MimeType: "image/jpeg", Content: strings.NewReader("img")}, "CAD")
	require.NoError(t, err)

	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "llama3", resp.ModelName)
	assert.Equal(t, "SHELL", *resp.OCRText)
	assert.Nil(t, resp.Confidence)

	row := fx.extractions.rows[uuid.MustParse(resp.ExtractionID)]
	require.NotNil(t, row)
	assert.Equal(t, models.ExtractionCompleted, row.Status)
	assert.JSONEq(t, `"Shell"`, mustField(t, row.ExtractedJSON, "vendor_name"))
}

func TestCreateExtractionFailure(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{err: errors.New("llm down")})

	_, err := fx.svc.CreateExtraction(context.Background(), fx.userID,
		Upload{FileName: "r.jpg", Content: strings.NewReader("img")}, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)

	require.Len(t, fx.extractions.rows, 1)
	for _, row := range fx.extractions.rows {
		assert.Equal(t, models.ExtractionFailed, row.Status)
		assert.Equal(t, "fake-model", row.ModelName)
	}
}

func TestCreateReceipt(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})
	ctx := context.Background()
	file := fx.upload(t)
	total := 12.345

	resp, err := fx.svc.CreateReceipt(ctx, fx.userID, &dto.ReceiptCreateRequest{
		ReceiptFileID: file.ID.String(),
		ReceiptFields: dto.ReceiptFields{Total: &total},
	})
	require.NoError(t, err)

	assert.Equal(t, "confirmed", resp.Status)
	assert.Equal(t, "CAD", *resp.Currency)
	assert.Equal(t, 12.35, *resp.Total)
	require.NotNil(t, file.ReceiptID)
	assert.Equal(t, resp.ID, file.ReceiptID.String())

	_, err = fx.svc.CreateReceipt(ctx, uuid.New(), &dto.ReceiptCreateRequest{ReceiptFileID: file.ID.String()})
	assert.ErrorIs(t, err, ErrReceiptFileNotFound)

	missing := uuid.NewString()
	_, err = fx.svc.CreateReceipt(ctx, fx.userID, &dto.ReceiptCreateRequest{
		ReceiptFileID:      file.ID.String(),
		SourceExtractionID: &missing,
	})
	assert.ErrorIs(t, err, ErrExtractionNotFound)
}

func TestUpdateReceiptOnlyPresentFields(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})
	ctx := context.Background()
	file := fx.upload(t)

	created, err := fx.svc.CreateReceipt(ctx, fx.userID, &dto.ReceiptCreateRequest{ReceiptFileID: file.ID.String()})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	var req dto.ReceiptUpdateRequest
	require.NoError(t, req.UnmarshalJSON([]byte(`{"notes":"Updated","currency":null}`)))

	updated, err := fx.svc.UpdateReceipt(ctx, fx.userID, id, &req)
	require.NoError(t, err)
	assert.Equal(t, "Updated", *updated.Notes)
	assert.Equal(t, "CAD", *updated.Currency)
	assert.Len(t, fx.receipts.changes, 2)

	_, err = fx.svc.UpdateReceipt(ctx, uuid.New(), id, &req)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestUpdateReceiptEmptyBodySkipsWrite(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})
	ctx := context.Background()
	file := fx.upload(t)

	created, err := fx.svc.CreateReceipt(ctx, fx.userID, &dto.ReceiptCreateRequest{ReceiptFileID: file.ID.String()})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	var req dto.ReceiptUpdateRequest
	require.NoError(t, req.UnmarshalJSON([]byte(`{}`)))

	got, err := fx.svc.UpdateReceipt(ctx, fx.userID, id, &req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Zero(t, fx.receipts.updates)

	_, err = fx.svc.UpdateReceipt(ctx, uuid.New(), id, &req)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestExportCSV(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})
	vendor := "Costco, Inc"
	purchased := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	category := models.CategoryGas
	fx.receipts.rows = []*models.Receipt{{
		ID:          uuid.New(),
		UserID:      fx.userID,
		VendorName:  &vendor,
		PurchasedAt: &purchased,
		Category:    &category,
		Total:       decimal.NewNullDecimal(decimal.NewFromInt(10)),
		Currency:    "CAD",
	}}

	var buf bytes.Buffer
	require.NoError(t, fx.svc.ExportCSV(context.Background(), repository.ReceiptFilter{UserID: fx.userID}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, dto.ReceiptFieldNames, records[0])
	assert.Equal(t, []string{
		"Costco, Inc", "", "2026-01-02T03:04:05Z", "gas", "", "", "10.00", "CAD", "", "", "", "", "", "", "",
	}, records[1])
}

func TestGetPhoto(t *testing.T) {
	fx := newReceiptFixture(t, fakeExtractor{})
	ctx := context.Background()
	file := fx.upload(t)

	created, err := fx.svc.CreateReceipt(ctx, fx.userID, &dto.ReceiptCreateRequest{ReceiptFileID: file.ID.String()})
	require.NoError(t, err)
	id := uuid.MustParse(created.ID)

	photo, err := fx.svc.GetPhoto(ctx, fx.userID, id)
	require.NoError(t, err)
	assert.Equal(t, file.ID, photo.ID)

	require.NoError(t, os.Remove(file.FilePath))
	_, err = fx.svc.GetPhoto(ctx, fx.userID, id)
	assert.ErrorIs(t, err, ErrReceiptPhotoMissing)

	_, err = fx.svc.GetPhoto(ctx, fx.userID, uuid.New())
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func mustField(t *testing.T, raw []byte, field string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return string(m[field])
}
