package core

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/store"
)

// SessionManager issues and validates opaque bearer tokens. A session is
// valid until its expiry or until it is explicitly revoked.
type SessionManager struct {
	sessions   *store.Collection[store.Session]
	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewSessionManager(rs *store.RecordStore, defaultTTL time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions:   store.NewCollection[store.Session](rs, store.CollectionSessions),
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     logger,
	}
}

// Issue creates a new session for userID. Existing sessions stay valid.
// A non-positive ttl uses the configured default.
func (m *SessionManager) Issue(userID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return "", err
	}

	expiresAt := m.now().UTC().Add(ttl)
	_, err = m.sessions.Insert(func(_ []store.Session, id int64) (store.Session, error) {
		return store.Session{ID: id, UserID: userID, Token: token, ExpiresAt: store.NewTimestamp(expiresAt)}, nil
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the owning user id, or ErrUnauthorized when the token is
// unknown or expired. It has no side effects.
func (m *SessionManager) Validate(token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}
	sessions, err := m.sessions.Load()
	if err != nil {
		return 0, err
	}

	now := m.now()
	for _, s := range sessions {
		if tokensEqual(s.Token, token) {
			if s.Expired(now) {
				return 0, ErrUnauthorized
			}
			return s.UserID, nil
		}
	}
	return 0, ErrUnauthorized
}

// Revoke removes the session holding token and reports whether one existed.
func (m *SessionManager) Revoke(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	removed := 0
	err := m.sessions.Update(func(sessions []store.Session) ([]store.Session, error) {
		kept, n := filterSessions(sessions, func(s store.Session) bool { return tokensEqual(s.Token, token) })
		removed = n
		if n == 0 {
			return nil, store.ErrSkipSave
		}
		return kept, nil
	})
	return removed > 0, err
}

// RevokeAll removes every session of userID.
func (m *SessionManager) RevokeAll(userID int64) (int, error) {
	removed := 0
	err := m.sessions.Update(func(sessions []store.Session) ([]store.Session, error) {
		kept, n := filterSessions(sessions, func(s store.Session) bool { return s.UserID == userID })
		removed = n
		if n == 0 {
			return nil, store.ErrSkipSave
		}
		return kept, nil
	})
	return removed, err
}

// PruneExpired drops sessions that can no longer validate.
func (m *SessionManager) PruneExpired() (int, error) {
	now := m.now()
	removed := 0
	err := m.sessions.Update(func(sessions []store.Session) ([]store.Session, error) {
		kept, n := filterSessions(sessions, func(s store.Session) bool { return s.Expired(now) })
		removed = n
		if n == 0 {
			return nil, store.ErrSkipSave
		}
		return kept, nil
	})
	if err == nil && removed > 0 {
		m.logger.Info("pruned expired sessions", "count", removed)
	}
	return removed, err
}

func filterSessions(sessions []store.Session, drop func(store.Session) bool) ([]store.Session, int) {
	kept := sessions[:0]
	removed := 0
	for _, s := range sessions {
		if drop(s) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	return kept, removed
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
