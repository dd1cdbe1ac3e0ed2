package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"globalassist.com/backend/internal/catalog"
	"globalassist.com/backend/internal/store"
)

const (
	HistoryTypeChat    = "chat"
	HistoryTypeExplain = "explain"

	maxTitleRunes = 100
)

// Generation is the outcome of a generate or explain request.
type Generation struct {
	Code        string
	Explanation string
	ModelUsed   string
	HistoryID   int64
}

// GenerationService calls the model for a user and records the result in
// their history. Provider failures are replaced by demo content; storage
// failures are returned.
type GenerationService struct {
	users     *UserDirectory
	history   *HistoryLog
	generator Generator
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

func NewGenerationService(users *UserDirectory, history *HistoryLog, generator Generator, cat *catalog.Catalog, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationService{
		users:     users,
		history:   history,
		generator: generator,
		catalog:   cat,
		logger:    logger,
	}
}

func (s *GenerationService) Generate(ctx context.Context, userID int64, prompt, modelID string) (*Generation, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt required", ErrValidation)
	}
	model, err := s.authorizeModel(userID, modelID)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, prompt, model.ID)
	if err != nil {
		s.logger.Warn("AI generation failed, serving fallback", "model", model.ID, "user_id", userID, "error", err)
		result = FallbackResult(prompt)
	}

	entry, err := s.history.Append(userID, HistoryTypeChat, titleFrom(prompt), result.Code, model.ID, map[string]any{
		"prompt":      prompt,
		"explanation": result.Explanation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save history: %w", err)
	}

	return &Generation{
		Code:        result.Code,
		Explanation: result.Explanation,
		ModelUsed:   model.ID,
		HistoryID:   entry.ID,
	}, nil
}

func (s *GenerationService) Explain(ctx context.Context, userID int64, code, modelID string) (*Generation, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code required", ErrValidation)
	}
	model, err := s.authorizeModel(userID, modelID)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Explain(ctx, code, model.ID)
	if err != nil {
		s.logger.Warn("AI explanation failed, serving fallback", "model", model.ID, "user_id", userID, "error", err)
		result = &GenerationResult{Code: code, Explanation: fallbackExplanation}
	}

	entry, err := s.history.Append(userID, HistoryTypeExplain, titleFrom(code), result.Explanation, model.ID, map[string]any{
		"code": code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save history: %w", err)
	}

	return &Generation{
		Code:        result.Code,
		Explanation: result.Explanation,
		ModelUsed:   model.ID,
		HistoryID:   entry.ID,
	}, nil
}

// authorizeModel resolves modelID (default when empty) and checks the user's tier.
func (s *GenerationService) authorizeModel(userID int64, modelID string) (catalog.Model, error) {
	if modelID == "" {
		modelID = catalog.DefaultModelID
	}
	model, ok := s.catalog.Model(modelID)
	if !ok {
		return catalog.Model{}, fmt.Errorf("%w: unknown model %q", ErrValidation, modelID)
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		return catalog.Model{}, err
	}
	if user == nil {
		return catalog.Model{}, ErrUnauthorized
	}
	if model.RequiresPro() && user.SubscriptionTier != store.TierPro {
		return catalog.Model{}, ErrUpgradeRequired
	}
	return model, nil
}

func titleFrom(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes])
	}
	return text
}
