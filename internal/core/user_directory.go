package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"globalassist.com/backend/internal/auth"
	"globalassist.com/backend/internal/store"
)

// errEmailTaken signals, from inside an Insert, that the email already exists.
var errEmailTaken = errors.New("email taken")

// UserPatch carries the profile fields a user may change. Nil fields are left alone.
type UserPatch struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

type UserDirectory struct {
	users      *store.Collection[store.User]
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

func NewUserDirectory(rs *store.RecordStore, bcryptCost int, logger *slog.Logger) *UserDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserDirectory{
		users:      store.NewCollection[store.User](rs, store.CollectionUsers),
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger,
	}
}

// FindByEmail returns nil, nil when no user has exactly this email.
func (d *UserDirectory) FindByEmail(email string) (*store.User, error) {
	users, err := d.users.Load()
	if err != nil {
		return nil, err
	}
	return findByEmail(users, email), nil
}

// FindByID returns nil, nil when the user does not exist.
func (d *UserDirectory) FindByID(id int64) (*store.User, error) {
	users, err := d.users.Load()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (d *UserDirectory) Create(email, rawPassword, fullName string) (*store.User, error) {
	if email == "" || rawPassword == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	// Hashing is slow; do it before taking the collection lock.
	hash, err := auth.HashPassword(rawPassword, d.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", ErrValidation)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := d.users.Insert(func(users []store.User, id int64) (store.User, error) {
		if findByEmail(users, email) != nil {
			return store.User{}, ErrDuplicateEmail
		}
		return d.newUser(id, email, hash, fullName, ""), nil
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("user registered", "user_id", user.ID)
	return &user, nil
}

// CreateOAuthUser returns the existing user when the email is already
// registered, so signing in through OAuth never fails on that account.
func (d *UserDirectory) CreateOAuthUser(email, fullName, provider string) (*store.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrValidation)
	}

	var existing *store.User
	user, err := d.users.Insert(func(users []store.User, id int64) (store.User, error) {
		if u := findByEmail(users, email); u != nil {
			existing = u
			return store.User{}, errEmailTaken
		}
		return d.newUser(id, email, "", fullName, provider), nil
	})
	if errors.Is(err, errEmailTaken) {
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	d.logger.Info("oauth user registered", "user_id", user.ID, "provider", provider)
	return &user, nil
}

// VerifyPassword is always false for OAuth-only accounts.
func (d *UserDirectory) VerifyPassword(user *store.User, rawPassword string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return auth.CheckPasswordHash(rawPassword, user.PasswordHash)
}

// Authenticate returns ErrUnauthorized for both unknown emails and wrong passwords.
func (d *UserDirectory) Authenticate(email, rawPassword string) (*store.User, error) {
	if email == "" || rawPassword == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	user, err := d.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		d.logger.Debug("login failed: unknown email")
		return nil, ErrUnauthorized
	}
	if !d.VerifyPassword(user, rawPassword) {
		d.logger.Debug("login failed: bad password", "user_id", user.ID)
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (d *UserDirectory) Update(id int64, patch UserPatch) (*store.User, error) {
	if patch.Email != nil && *patch.Email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrValidation)
	}

	var updated store.User
	err := d.users.Update(func(users []store.User) ([]store.User, error) {
		idx := -1
		for i := range users {
			if users[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrNotFound
		}

		if patch.Email != nil && *patch.Email != users[idx].Email {
			if other := findByEmail(users, *patch.Email); other != nil {
				return nil, ErrDuplicateEmail
			}
			users[idx].Email = *patch.Email
		}
		if patch.FullName != nil {
			users[idx].FullName = *patch.FullName
		}
		updated = users[idx]
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (d *UserDirectory) newUser(id int64, email, hash, fullName, provider string) store.User {
	return store.User{
		ID:                 id,
		Email:              email,
		PasswordHash:       hash,
		FullName:           fullName,
		SubscriptionTier:   store.TierFree,
		SubscriptionStatus: store.StatusActive,
		OAuthProvider:      provider,
		CreatedAt:          store.NewTimestamp(d.now()),
	}
}

func findByEmail(users []store.User, email string) *store.User {
	for i := range users {
		if users[i].Email == email {
			u := users[i]
			return &u
		}
	}
	return nil
}
