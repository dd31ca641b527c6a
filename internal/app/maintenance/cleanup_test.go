package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/fundraiser/internal/auth"
	testutil "github.com/charlesng35/fundraiser/internal/database/testutil"
	"github.com/charlesng35/fundraiser/internal/models"
)

type stubExpirer struct {
	mu    sync.Mutex
	calls int
	idle  time.Duration
	err   error
}

func (s *stubExpirer) ExpireIdleSessions(_ context.Context, idle time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.idle = idle
	return 1, s.err
}

func (s *stubExpirer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubExpirer) lastIdle() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func TestRunOnceExpiresIdleSessions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	sessions, err := iauth.NewSessionService(db, iauth.SessionConfig{Clock: clock})
	require.NoError(t, err)

	user := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	stale, err := sessions.CreateSessionWithoutGeo(context.Background(), user.ID, "", nil)
	require.NoError(t, err)
	current = current.Add(2 * time.Hour)
	fresh, err := sessions.CreateSessionWithoutGeo(context.Background(), user.ID, "", nil)
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, WithIdleTimeout(time.Hour))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var reloaded models.UserSession
	require.NoError(t, db.Take(&reloaded, "id = ?", stale.ID).Error)
	require.False(t, reloaded.IsActive)
	require.NotNil(t, reloaded.LogoutAt)

	require.NoError(t, db.Take(&reloaded, "id = ?", fresh.ID).Error)
	require.True(t, reloaded.IsActive)
}

func TestRunOnceAggregatesErrors(t *testing.T) {
	stub := &stubExpirer{err: errors.New("database is locked")}
	cleaner := NewCleaner(stub, WithIdleTimeout(10*time.Minute))

	err := cleaner.RunOnce(context.Background())
	require.ErrorContains(t, err, "database is locked")
	require.Equal(t, 10*time.Minute, stub.lastIdle())
}

func TestRunOnceWithoutJobs(t *testing.T) {
	cleaner := NewCleaner(nil)
	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}

func TestStartSchedulesSweep(t *testing.T) {
	stub := &stubExpirer{}
	scheduler := cron.New(cron.WithSeconds(), cron.WithLogger(cron.DiscardLogger))

	cleaner := NewCleaner(stub, WithCron(scheduler), WithSessionSchedule("@every 1s"))
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, scheduler.Entries(), 1)
	require.Eventually(t, func() bool { return stub.callCount() > 0 }, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, defaultIdleTimeout, stub.lastIdle())
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	cleaner := NewCleaner(&stubExpirer{}, WithSessionSchedule("not a schedule"))
	require.Error(t, cleaner.Start())
}
