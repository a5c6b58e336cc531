package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"receipt-keeper/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// LLM turns a prompt into raw completion text.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// NewLLM builds the client for the configured provider.
func NewLLM(ctx context.Context, cfg *config.LLMConfig, logger *zap.Logger) (LLM, error) {
	switch cfg.Provider {
	case config.ProviderGigaChat:
		return NewGigaChatLLM(ctx, &cfg.GigaChat, logger)
	case config.ProviderOllama, "":
		return NewOllamaLLM(&cfg.Ollama, logger), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// OllamaLLM generates completions through a local Ollama server.
type OllamaLLM struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaLLM creates an Ollama client for the configured model.
func NewOllamaLLM(cfg *config.OllamaConfig, logger *zap.Logger) *OllamaLLM {
	return &OllamaLLM{
		baseURL:    cfg.URL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (o *OllamaLLM) ModelName() string { return o.model }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Generate calls /api/generate without streaming. A body without a response field yields "{}".
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ollama response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		o.logger.Error("Ollama request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", o.model),
		)
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return "", errors.New("ollama returned invalid JSON")
	}
	result := gjson.GetBytes(body, "response")
	if !result.Exists() {
		return "{}", nil
	}
	return result.String(), nil
}

const gigaChatSystemInstruction = "You extract structured data from receipt OCR text. " +
	"Answer with a single JSON object and nothing else."

// GigaChatLLM generates completions through the GigaChat API.
type GigaChatLLM struct {
	client    *gigago.Client
	model     *gigago.GenerativeModel
	modelName string
	logger    *zap.Logger
}

// NewGigaChatLLM creates a GigaChat client for the configured model.
func NewGigaChatLLM(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatLLM, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = gigaChatSystemInstruction
	model.Temperature = 0.1

	logger.Info("Using GigaChat model", zap.String("model", cfg.Model))

	return &GigaChatLLM{
		client:    client,
		model:     model,
		modelName: cfg.Model,
		logger:    logger,
	}, nil
}

func (g *GigaChatLLM) ModelName() string { return g.modelName }

// Generate sends prompt as a single user message and returns the reply text.
func (g *GigaChatLLM) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	}

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from LLM")
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *GigaChatLLM) Close() error {
	if g.client != nil {
		g.client.Close()
	}
	return nil
}
