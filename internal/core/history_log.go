package core

import (
	"log/slog"
	"time"

	"globalassist.com/backend/internal/store"
)

// HistoryLog records generated content per user. Entry ids are global to
// the collection.
type HistoryLog struct {
	entries *store.Collection[store.HistoryEntry]
	now     func() time.Time
	logger  *slog.Logger
}

func NewHistoryLog(rs *store.RecordStore, logger *slog.Logger) *HistoryLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryLog{
		entries: store.NewCollection[store.HistoryEntry](rs, store.CollectionHistory),
		now:     time.Now,
		logger:  logger,
	}
}

func (h *HistoryLog) Append(userID int64, entryType, title, content, modelUsed string, metadata map[string]any) (*store.HistoryEntry, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry, err := h.entries.Insert(func(_ []store.HistoryEntry, id int64) (store.HistoryEntry, error) {
		return store.HistoryEntry{
			ID:        id,
			UserID:    userID,
			Type:      entryType,
			Title:     title,
			Content:   content,
			ModelUsed: modelUsed,
			Metadata:  metadata,
			CreatedAt: store.NewTimestamp(h.now()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListFor returns userID's entries in insertion order. An empty typeFilter
// matches every type.
func (h *HistoryLog) ListFor(userID int64, typeFilter string) ([]store.HistoryEntry, error) {
	entries, err := h.entries.Load()
	if err != nil {
		return nil, err
	}
	out := make([]store.HistoryEntry, 0)
	for _, e := range entries {
		if matchesOwnerAndType(e, userID, typeFilter) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns ErrNotFound when the entry is absent or owned by someone else.
func (h *HistoryLog) Get(userID, entryID int64) (*store.HistoryEntry, error) {
	entries, err := h.entries.Load()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == entryID && entries[i].UserID == userID {
			return &entries[i], nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes the entry only if userID owns it. Missing and foreign
// entries are reported the same way: false, no error.
func (h *HistoryLog) Delete(userID, entryID int64) (bool, error) {
	deleted := false
	err := h.entries.Update(func(entries []store.HistoryEntry) ([]store.HistoryEntry, error) {
		for i, e := range entries {
			if e.ID == entryID && e.UserID == userID {
				deleted = true
				return append(entries[:i], entries[i+1:]...), nil
			}
		}
		return nil, store.ErrSkipSave
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ClearFor removes every entry of userID matching typeFilter.
func (h *HistoryLog) ClearFor(userID int64, typeFilter string) (int, error) {
	removed := 0
	err := h.entries.Update(func(entries []store.HistoryEntry) ([]store.HistoryEntry, error) {
		kept := entries[:0]
		for _, e := range entries {
			if matchesOwnerAndType(e, userID, typeFilter) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if removed == 0 {
			return nil, store.ErrSkipSave
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		h.logger.Info("history cleared", "user_id", userID, "type", typeFilter, "count", removed)
	}
	return removed, nil
}

// Page returns the 1-based page of items. Out of range pages are empty.
func Page[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return items
	}
	// Compare before multiplying; (page-1)*perPage can overflow.
	pages := len(items) / perPage
	if len(items)%perPage != 0 {
		pages++
	}
	if page > pages {
		return []T{}
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func matchesOwnerAndType(e store.HistoryEntry, userID int64, typeFilter string) bool {
	return e.UserID == userID && (typeFilter == "" || e.Type == typeFilter)
}
