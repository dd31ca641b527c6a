package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/database/testutil"
	"github.com/charlesng35/fundraiser/internal/geo"
	"github.com/charlesng35/fundraiser/internal/models"
)

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type stubResolver struct {
	loc   *geo.Location
	err   error
	panic bool
	calls int
}

func (s *stubResolver) Resolve(context.Context, string) (*geo.Location, error) {
	s.calls++
	if s.panic {
		panic("resolver exploded")
	}
	return s.loc, s.err
}

func setupSessionService(t *testing.T, resolver geo.Resolver) (*gorm.DB, *SessionService, *testClock) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := newTestClock()

	svc, err := NewSessionService(db, SessionConfig{Clock: clock.Now, Geo: resolver})
	require.NoError(t, err)
	return db, svc, clock
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		FullName:       "Test " + username,
		PasswordHash:   "hash",
		EmailConfirmed: true,
		IsActive:       true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func strPtr(v string) *string { return &v }
