package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charlesng35/fundraiser/internal/models"
	"github.com/charlesng35/fundraiser/pkg/crypto"
)

// TokenIssue is the outcome of a refresh-token validation.
type TokenIssue struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	// Rotated is true when a new refresh token was minted and must be persisted.
	Rotated bool
}

// ValidateAndRotateRefreshToken always issues a fresh access token. The stored refresh
// token is kept while it is valid and replaced with a new one once now is past its expiry.
func (s *JWTService) ValidateAndRotateRefreshToken(user *models.User, subject Subject) (TokenIssue, error) {
	if user == nil {
		return TokenIssue{}, errors.New("jwt: user is required")
	}

	access, err := s.IssueAccessToken(subject)
	if err != nil {
		return TokenIssue{}, err
	}

	now := s.now()
	if user.RefreshToken != "" && user.RefreshTokenExpiry != nil && !now.After(*user.RefreshTokenExpiry) {
		return TokenIssue{
			AccessToken:  access,
			RefreshToken: user.RefreshToken,
			Expiry:       *user.RefreshTokenExpiry,
		}, nil
	}

	token, err := crypto.GenerateRefreshToken()
	if err != nil {
		return TokenIssue{}, fmt.Errorf("jwt: generate refresh token: %w", err)
	}
	return TokenIssue{
		AccessToken:  access,
		RefreshToken: token,
		Expiry:       now.Add(s.RefreshLifetime()),
		Rotated:      true,
	}, nil
}

// keyedMutex serialises work per key. Entries are dropped once no goroutine holds or
// waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
