package handlers

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"receipt-keeper/internal/dto"
	"receipt-keeper/internal/models"
	"receipt-keeper/internal/repository"
	"receipt-keeper/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	// keeps (page-1)*page_size well inside the OFFSET range
	maxPage         = 1_000_000
)

type ReceiptService interface {
	CreateExtraction(ctx context.Context, userID uuid.UUID, upload service.Upload, currency string) (*dto.ExtractionResponse, error)
	CreateReceipt(ctx context.Context, userID uuid.UUID, req *dto.ReceiptCreateRequest) (*dto.ReceiptResponse, error)
	UpdateReceipt(ctx context.Context, userID, id uuid.UUID, req *dto.ReceiptUpdateRequest) (*dto.ReceiptResponse, error)
	GetReceipt(ctx context.Context, userID, id uuid.UUID) (*dto.ReceiptResponse, error)
	ListReceipts(ctx context.Context, filter repository.ReceiptFilter, page, pageSize int) (*dto.ReceiptListResponse, error)
	ExportCSV(ctx context.Context, filter repository.ReceiptFilter, w io.Writer) error
	GetPhoto(ctx context.Context, userID, id uuid.UUID) (*models.ReceiptFile, error)
}

type ReceiptHandler struct {
	receiptService ReceiptService
	logger         *zap.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(receiptService ReceiptService, logger *zap.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
		logger:         logger,
	}
}

// CreateExtraction godoc
// @Summary Extract receipt fields from a photo
// @Description Store the upload, run OCR and the LLM, and return pre-filled fields for review
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Receipt image or PDF"
// @Param currency formData string false "Default currency (ISO 4217)"
// @Security Bearer
// @Success 201 {object} dto.ExtractionResponse
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/receipts/extractions [post]
func (h *ReceiptHandler) CreateExtraction(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return errorResponse(c, fiber.StatusUnprocessableEntity, "File is required")
	}

	src, err := file.Open()
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Failed to open file")
	}
	defer src.Close()

	upload := service.Upload{
		FileName: file.Filename,
		MimeType: file.Header.Get(fiber.HeaderContentType),
		Content:  src,
	}

	resp, err := h.receiptService.CreateExtraction(c.Context(), userID, upload, c.FormValue("currency"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFileNameMissing):
			return errorResponse(c, fiber.StatusBadRequest, "File name missing")
		case errors.Is(err, service.ErrExtractionFailed):
			return errorResponse(c, fiber.StatusInternalServerError, "Extraction failed")
		}
		h.logger.Error("Failed to create extraction", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to store receipt file")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// CreateReceipt godoc
// @Summary Confirm a receipt
// @Tags receipts
// @Accept json
// @Produce json
// @Param request body dto.ReceiptCreateRequest true "Receipt"
// @Security Bearer
// @Success 201 {object} dto.ReceiptResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/receipts [post]
func (h *ReceiptHandler) CreateReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	var req dto.ReceiptCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.receiptService.CreateReceipt(c.Context(), userID, &req)
	if err != nil {
		return h.receiptError(c, err, "Failed to create receipt")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// UpdateReceipt godoc
// @Summary Update a receipt
// @Description Only the fields present in the body are changed; null clears a field
// @Tags receipts
// @Accept json
// @Produce json
// @Param id path string true "Receipt ID"
// @Param request body dto.ReceiptFields true "Fields to change"
// @Security Bearer
// @Success 200 {object} dto.ReceiptResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/receipts/{id} [patch]
func (h *ReceiptHandler) UpdateReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	var req dto.ReceiptUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	resp, err := h.receiptService.UpdateReceipt(c.Context(), userID, id, &req)
	if err != nil {
		return h.receiptError(c, err, "Failed to update receipt")
	}

	return c.JSON(resp)
}

// GetReceipt godoc
// @Summary Get a receipt
// @Tags receipts
// @Produce json
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 200 {object} dto.ReceiptResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/receipts/{id} [get]
func (h *ReceiptHandler) GetReceipt(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	resp, err := h.receiptService.GetReceipt(c.Context(), userID, id)
	if err != nil {
		return h.receiptError(c, err, "Failed to load receipt")
	}

	return c.JSON(resp)
}

// ListReceipts godoc
// @Summary List receipts
// @Description Filtered, paginated, newest purchase first
// @Tags receipts
// @Produce json
// @Param start_date query string false "Purchased at or after (ISO 8601)"
// @Param end_date query string false "Purchased at or before (ISO 8601)"
// @Param category query string false "Category"
// @Param min_total query number false "Minimum total"
// @Param max_total query number false "Maximum total"
// @Param payment_type query string false "Payment type"
// @Param vendor query string false "Vendor name substring"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Security Bearer
// @Success 200 {object} dto.ReceiptListResponse
// @Failure 422 {object} map[string]string
// @Router /api/v1/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	filter, err := parseReceiptFilter(c, userID)
	if err != nil {
		return err
	}

	page, err := queryInt(c, "page", 1, 1, maxPage)
	if err != nil {
		return err
	}
	pageSize, err := queryInt(c, "page_size", defaultPageSize, 1, maxPageSize)
	if err != nil {
		return err
	}

	resp, err := h.receiptService.ListReceipts(c.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list receipts", zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list receipts")
	}

	return c.JSON(resp)
}

// ExportReceipts godoc
// @Summary Export receipts as CSV
// @Description Same filters as the list endpoint, without pagination
// @Tags receipts
// @Produce text/csv
// @Param start_date query string false "Purchased at or after (ISO 8601)"
// @Param end_date query string false "Purchased at or before (ISO 8601)"
// @Param category query string false "Category"
// @Param min_total query number false "Minimum total"
// @Param max_total query number false "Maximum total"
// @Param payment_type query string false "Payment type"
// @Param vendor query string false "Vendor name substring"
// @Security Bearer
// @Success 200 {string} string "CSV file"
// @Failure 422 {object} map[string]string
// @Router /api/v1/receipts/export [get]
func (h *ReceiptHandler) ExportReceipts(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	filter, err := parseReceiptFilter(c, userID)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=receipts.csv")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := h.receiptService.ExportCSV(ctx, filter, w); err != nil {
			h.logger.Error("Receipt export aborted", zap.Error(err))
		}
		if err := w.Flush(); err != nil {
			h.logger.Warn("Failed to flush export", zap.Error(err))
		}
	})
	return nil
}

// GetPhoto godoc
// @Summary Download the receipt photo
// @Tags receipts
// @Produce octet-stream
// @Param id path string true "Receipt ID"
// @Security Bearer
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /api/v1/receipts/{id}/photo [get]
func (h *ReceiptHandler) GetPhoto(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}

	id, err := pathUUID(c, "id")
	if err != nil {
		return err
	}

	file, err := h.receiptService.GetPhoto(c.Context(), userID, id)
	if err != nil {
		return h.receiptError(c, err, "Failed to load receipt photo")
	}

	f, err := os.Open(file.FilePath)
	if err != nil {
		return errorResponse(c, fiber.StatusNotFound, "Receipt photo missing")
	}

	c.Attachment(file.FileName)
	c.Set(fiber.HeaderContentType, file.MimeType)
	return c.SendStream(f, int(file.SizeBytes))
}

func (h *ReceiptHandler) receiptError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrReceiptNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Receipt not found")
	case errors.Is(err, service.ErrReceiptFileNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Receipt file not found")
	case errors.Is(err, service.ErrExtractionNotFound):
		return errorResponse(c, fiber.StatusNotFound, "Extraction not found")
	case errors.Is(err, service.ErrReceiptPhotoMissing):
		return errorResponse(c, fiber.StatusNotFound, "Receipt photo missing")
	}
	h.logger.Error(fallback, zap.Error(err))
	return errorResponse(c, fiber.StatusInternalServerError, fallback)
}

func parseReceiptFilter(c *fiber.Ctx, userID uuid.UUID) (repository.ReceiptFilter, error) {
	filter := repository.ReceiptFilter{
		UserID: userID,
		Vendor: strings.TrimSpace(c.Query("vendor")),
	}

	if v := c.Query("start_date"); v != "" {
		t, err := dto.ParseTimestamp(v)
		if err != nil {
			return filter, invalidQuery("start_date")
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := dto.ParseTimestamp(v)
		if err != nil {
			return filter, invalidQuery("end_date")
		}
		filter.EndDate = &t
	}
	if v := c.Query("category"); v != "" {
		category := models.ReceiptCategory(v)
		if !category.Valid() {
			return filter, invalidQuery("category")
		}
		filter.Category = &category
	}
	if v := c.Query("payment_type"); v != "" {
		payment := models.PaymentType(v)
		if !payment.Valid() {
			return filter, invalidQuery("payment_type")
		}
		filter.PaymentType = &payment
	}
	amounts := []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_total", &filter.MinTotal},
		{"max_total", &filter.MaxTotal},
	}
	for _, a := range amounts {
		if v := c.Query(a.name); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return filter, invalidQuery(a.name)
			}
			*a.dst = &d
		}
	}

	return filter, nil
}

// queryInt reads an integer query parameter in [lo, hi].
func queryInt(c *fiber.Ctx, name string, def, lo, hi int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, invalidQuery(name)
	}
	return v, nil
}

func invalidQuery(name string) error {
	return fiber.NewError(fiber.StatusUnprocessableEntity, "Invalid query parameter: "+name)
}
