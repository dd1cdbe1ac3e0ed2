package store

import "time"

// Collection names. Each maps to one file (or row) holding a JSON array.
const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
	CollectionHistory  = "history"
)

const (
	TierFree = "free"
	TierPro  = "pro"

	StatusActive = "active"
)

// Record is anything persisted in a collection. Ids are unique within a collection.
type Record interface {
	RecordID() int64
}

type User struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"password_hash"` // empty for OAuth-only accounts
	FullName           string    `json:"full_name"`
	SubscriptionTier   string    `json:"subscription_tier"`
	SubscriptionStatus string    `json:"subscription_status"`
	OAuthProvider      string    `json:"oauth_provider,omitempty"`
	CreatedAt          Timestamp `json:"created_at"`
}

func (u User) RecordID() int64 { return u.ID }

// PublicUser is the user as exposed over the API, without the password hash.
type PublicUser struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	FullName           string    `json:"full_name"`
	SubscriptionTier   string    `json:"subscription_tier"`
	SubscriptionStatus string    `json:"subscription_status"`
	OAuthProvider      string    `json:"oauth_provider,omitempty"`
	CreatedAt          Timestamp `json:"created_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		SubscriptionTier:   u.SubscriptionTier,
		SubscriptionStatus: u.SubscriptionStatus,
		OAuthProvider:      u.OAuthProvider,
		CreatedAt:          u.CreatedAt,
	}
}

type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt Timestamp `json:"expires_at"`
}

func (s Session) RecordID() int64 { return s.ID }

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt.Time)
}

type HistoryEntry struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	ModelUsed string         `json:"model_used"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt Timestamp      `json:"created_at"`
}

func (h HistoryEntry) RecordID() int64 { return h.ID }
