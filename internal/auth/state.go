package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("invalid oauth state")

type stateClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"provider"`
}

// StateSigner issues short-lived signed values for the OAuth "state"
// parameter, bound to the provider that started the flow. Each value
// verifies once; its jti is remembered until it expires.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

func NewStateSigner(secret []byte, ttl time.Duration) *StateSigner {
	return &StateSigner{secret: secret, ttl: ttl, now: time.Now, used: make(map[string]time.Time)}
}

// TTL is how long an issued state stays valid.
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

func (s *StateSigner) Issue(provider string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Provider: provider,
	})
	return token.SignedString(s.secret)
}

func (s *StateSigner) Verify(state, provider string) error {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !token.Valid || claims.Provider != provider || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidState
	}
	return s.consume(claims.ID, claims.ExpiresAt.Time)
}

// consume marks jti as used, failing if it already was.
func (s *StateSigner) consume(jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.used {
		if !now.Before(exp) {
			delete(s.used, id)
		}
	}
	if _, seen := s.used[jti]; seen {
		return fmt.Errorf("%w: state already used", ErrInvalidState)
	}
	s.used[jti] = expiresAt
	return nil
}
