package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true, ".bmp": true, ".gif": true, ".webp": true,
}

// ocrEngine is the part of a Tesseract client the service drives.
type ocrEngine interface {
	SetImage(path string) error
	Text() (string, error)
	Close() error
}

// OCRService turns receipt images and PDFs into plain text.
type OCRService struct {
	lang      string
	logger    *zap.Logger
	newEngine func(lang string) (ocrEngine, error)

	mu     sync.Mutex
	engine ocrEngine
}

// NewOCRService creates an OCR service using Tesseract for images and MuPDF for PDFs.
// The Tesseract client is created on first use.
func NewOCRService(lang string, logger *zap.Logger) *OCRService {
	return &OCRService{
		lang:      lang,
		logger:    logger,
		newEngine: newTesseractEngine,
	}
}

func newTesseractEngine(lang string) (ocrEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language %q: %w", lang, err)
	}
	return client, nil
}

// ExtractText returns the non-empty trimmed lines of the document joined with newlines.
func (s *OCRService) ExtractText(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filePath))

	var (
		text string
		err  error
	)
	switch {
	case ext == ".pdf":
		text, err = s.extractTextFromPDF(filePath)
	case imageExtensions[ext]:
		text, err = s.extractTextFromImage(filePath)
	default:
		return "", fmt.Errorf("unsupported file format: %q", ext)
	}
	if err != nil {
		return "", err
	}

	text = normalizeLines(sanitizeUTF8(text))

	s.logger.Info("OCR extraction completed",
		zap.String("file", filepath.Base(filePath)),
		zap.String("ext", ext),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}

func (s *OCRService) extractTextFromImage(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		engine, err := s.newEngine(s.lang)
		if err != nil {
			return "", err
		}
		s.engine = engine
	}

	if err := s.engine.SetImage(path); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	text, err := s.engine.Text()
	if err != nil {
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}
	return text, nil
}

func (s *OCRService) extractTextFromPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.Error(err),
			)
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// Close releases the Tesseract client if one was created.
func (s *OCRService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return nil
	}
	err := s.engine.Close()
	s.engine = nil
	return err
}

func normalizeLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
