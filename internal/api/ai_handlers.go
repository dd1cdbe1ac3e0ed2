package api

import (
	"net/http"

	"globalassist.com/backend/internal/catalog"
	"globalassist.com/backend/internal/core"
)

type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type ExplainRequest struct {
	Code  string `json:"code"`
	Model string `json:"model"`
}

type GenerationResponse struct {
	Success     bool   `json:"success"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	ModelUsed   string `json:"model_used"`
	HistoryID   int64  `json:"history_id"`
}

func (h *APIHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string][]catalog.Model{"models": h.catalog.Models})
}

func (h *APIHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Prompt == "" {
		Error(w, http.StatusBadRequest, "Prompt required")
		return
	}

	gen, err := h.generation.Generate(r.Context(), mustUserID(r), req.Prompt, req.Model)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to generate code")
		return
	}
	JSON(w, http.StatusOK, generationResponse(gen))
}

func (h *APIHandler) ExplainHandler(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" {
		Error(w, http.StatusBadRequest, "Code required")
		return
	}

	gen, err := h.generation.Explain(r.Context(), mustUserID(r), req.Code, req.Model)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to explain code")
		return
	}
	JSON(w, http.StatusOK, generationResponse(gen))
}

func generationResponse(g *core.Generation) GenerationResponse {
	return GenerationResponse{
		Success:     true,
		Code:        g.Code,
		Explanation: g.Explanation,
		ModelUsed:   g.ModelUsed,
		HistoryID:   g.HistoryID,
	}
}
