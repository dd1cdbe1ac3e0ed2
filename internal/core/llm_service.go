package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"globalassist.com/backend/internal/catalog"
)

const (
	maxOutputTokens = 2000

	codePromptTemplate    = "Generate clean, production-ready code for: %s\n\nProvide the code and a brief explanation."
	explainPromptTemplate = "Explain what the following code does, clearly and concisely. Point out any bugs or risky constructs.\n\n```\n%s\n```"
)

var ErrProviderUnavailable = errors.New("no provider configured for model")

// GenerationResult is what a model produced for a prompt.
type GenerationResult struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// AIProvider sends a single user prompt to a vendor model.
type AIProvider interface {
	Name() string
	Complete(ctx context.Context, remoteModel, prompt string) (string, error)
}

// Generator turns a prompt into code plus an explanation for a catalog model.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string) (*GenerationResult, error)
	Explain(ctx context.Context, code, modelID string) (*GenerationResult, error)
}

// LLMService routes catalog models to the provider that serves them.
type LLMService struct {
	catalog   *catalog.Catalog
	providers map[string]AIProvider
	logger    *slog.Logger
}

func NewLLMService(cat *catalog.Catalog, logger *slog.Logger, providers ...AIProvider) *LLMService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &LLMService{
		catalog:   cat,
		providers: make(map[string]AIProvider),
		logger:    logger,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
		logger.Info("AI provider registered", "provider", p.Name())
	}
	return s
}

func (s *LLMService) Close() {
	for name, p := range s.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.Warn("error closing AI provider", "provider", name, "error", err)
			}
		}
	}
}

func (s *LLMService) Generate(ctx context.Context, prompt, modelID string) (*GenerationResult, error) {
	provider, model, err := s.route(modelID)
	if err != nil {
		return nil, err
	}

	content, err := provider.Complete(ctx, model.RemoteModel, fmt.Sprintf(codePromptTemplate, prompt))
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", provider.Name(), err)
	}
	return ParseCodeResponse(content, defaultExplanation(provider.Name())), nil
}

func (s *LLMService) Explain(ctx context.Context, code, modelID string) (*GenerationResult, error) {
	provider, model, err := s.route(modelID)
	if err != nil {
		return nil, err
	}

	content, err := provider.Complete(ctx, model.RemoteModel, fmt.Sprintf(explainPromptTemplate, code))
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", provider.Name(), err)
	}
	return &GenerationResult{Code: code, Explanation: content}, nil
}

func (s *LLMService) route(modelID string) (AIProvider, catalog.Model, error) {
	model, ok := s.catalog.Model(modelID)
	if !ok {
		return nil, catalog.Model{}, fmt.Errorf("%w: unknown model %q", ErrValidation, modelID)
	}
	provider, ok := s.providers[model.Provider]
	if !ok || model.RemoteModel == "" {
		return nil, model, fmt.Errorf("%w: %s", ErrProviderUnavailable, model.ID)
	}
	return provider, model, nil
}

func defaultExplanation(provider string) string {
	return "Code generated successfully with " + provider
}
