package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini completer.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// SystemInstruction is sent with every request when set.
	SystemInstruction string
}

// GeminiCompleter calls the Gemini API and asks for JSON output.
type GeminiCompleter struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGeminiCompleter creates a client for the Gemini API.
func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCompleter{client: client, cfg: cfg, logger: logger}, nil
}

// Model returns the configured model name.
func (g *GeminiCompleter) Model() string { return g.cfg.Model }

// Complete implements Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := g.cfg.Temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if g.cfg.SystemInstruction != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(g.cfg.SystemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	g.logger.Debug("gemini completion", slog.String("model", g.cfg.Model), slog.Int("chars", len(text)))
	return text, nil
}
