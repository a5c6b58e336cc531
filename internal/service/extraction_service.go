package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"receipt-keeper/internal/dto"
	"receipt-keeper/pkg/metrics"

	"go.uber.org/zap"
)

// TextExtractor reads the text of a stored receipt file.
type TextExtractor interface {
	ExtractText(ctx context.Context, filePath string) (string, error)
}

// ExtractionResult is the pipeline output for one receipt file.
type ExtractionResult struct {
	OCRText    string
	Extracted  dto.ReceiptFields
	ModelName  string
	Confidence *float64
}

// ExtractionService runs OCR, the LLM prompt, tolerant JSON parsing and field
// reconciliation for one file.
type ExtractionService struct {
	ocr             TextExtractor
	llm             LLM
	defaultCurrency string
	logger          *zap.Logger
}

// NewExtractionService creates an OCR then LLM pipeline.
func NewExtractionService(ocr TextExtractor, llm LLM, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		ocr:    ocr,
		llm:    llm,
		logger: logger,
	}
}

// WithDefaultCurrency sets the currency the prompt names when a caller passes none.
// It never fills the extracted currency; only a caller-supplied currency does.
func (s *ExtractionService) WithDefaultCurrency(currency string) *ExtractionService {
	s.defaultCurrency = strings.ToUpper(strings.TrimSpace(currency))
	return s
}

func (s *ExtractionService) ModelName() string {
	return s.llm.ModelName()
}

// Run extracts receipt fields from filePath. currency, when set, is the caller's
// default and fills a currency the model left out.
func (s *ExtractionService) Run(ctx context.Context, filePath, currency string) (*ExtractionResult, error) {
	promptCurrency := currency
	if promptCurrency == "" {
		promptCurrency = s.defaultCurrency
	}

	start := time.Now()
	ocrText, err := s.ocr.ExtractText(ctx, filePath)
	metrics.ObserveStage("ocr", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	start = time.Now()
	completion, err := s.llm.Generate(ctx, buildPrompt(ocrText, promptCurrency))
	metrics.ObserveStage("llm", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	obj, err := parseJSONObject(completion)
	if err != nil {
		s.logger.Warn("Model output is not a JSON object",
			zap.String("model", s.llm.ModelName()),
			zap.Int("output_length", len(completion)),
		)
		return nil, fmt.Errorf("parse: %w", err)
	}

	return &ExtractionResult{
		OCRText:   ocrText,
		Extracted: reconcileFields(obj, currency),
		ModelName: s.llm.ModelName(),
	}, nil
}
