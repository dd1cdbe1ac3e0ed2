package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"globalassist.com/backend/internal/core"
	"globalassist.com/backend/internal/store"
)

const allHistoryTypes = "all"

type HistoryListResponse struct {
	History []store.HistoryEntry `json:"history"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
}

type HistoryEntryResponse struct {
	History *store.HistoryEntry `json:"history"`
}

type CreateHistoryRequest struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	ModelUsed string         `json:"model_used"`
	Metadata  map[string]any `json:"metadata"`
}

// GetHistoryHandler serves both /history/{id} and /history/{type}. A numeric
// selector is an entry id; "all" lists every type.
func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	selector := chi.URLParam(r, "selector")

	if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
		entry, err := h.history.Get(userID, id)
		if err != nil {
			h.writeServiceError(w, r, err, "Failed to load history")
			return
		}
		JSON(w, http.StatusOK, HistoryEntryResponse{History: entry})
		return
	}

	typeFilter := selector
	if typeFilter == allHistoryTypes {
		typeFilter = ""
	}
	entries, err := h.history.ListFor(userID, typeFilter)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load history")
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 0)
	JSON(w, http.StatusOK, HistoryListResponse{
		History: core.Page(entries, page, perPage),
		Total:   len(entries),
		Page:    page,
		PerPage: perPage,
	})
}

func (h *APIHandler) CreateHistoryHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateHistoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "Content required")
		return
	}
	if req.Type == "" {
		req.Type = core.HistoryTypeChat
	}

	entry, err := h.history.Append(mustUserID(r), req.Type, req.Title, req.Content, req.ModelUsed, req.Metadata)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to save history")
		return
	}
	JSON(w, http.StatusCreated, HistoryEntryResponse{History: entry})
}

// DeleteHistoryHandler answers 200 whether or not anything was removed, so
// other users' entry ids are not disclosed.
func (h *APIHandler) DeleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid history id")
		return
	}

	deleted, err := h.history.Delete(mustUserID(r), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to delete history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"message": "History deleted", "deleted": deleted})
}

func (h *APIHandler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	typeFilter := chi.URLParam(r, "type")
	if typeFilter == allHistoryTypes {
		typeFilter = ""
	}

	n, err := h.history.ClearFor(mustUserID(r), typeFilter)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to clear history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"message": "History cleared", "deleted": n})
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}
