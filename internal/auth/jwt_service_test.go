package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fundraiser/internal/models"
)

func newTestJWT(t *testing.T, clock *testClock) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret:           "unit-test-secret",
		Issuer:           "fundraiser",
		Audience:         "fundraiser-api",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenDays: 7,
		Clock:            clock.Now,
	})
	require.NoError(t, err)
	return svc
}

func testSubject() Subject {
	return Subject{
		UserID:    "user-1",
		Username:  "alice",
		FullName:  "Alice Doe",
		Email:     "alice@example.com",
		SessionID: "session-1",
		UserGrants: []Grant{
			{Type: "permission", Value: "audit.read"},
		},
		RoleGrants: []Grant{
			{Type: "permission", Value: "audit.read"},
			{Type: "permission", Value: "campaign.manage"},
			{Type: "tenant", Value: "north"},
		},
		Roles: []string{"Administrator", "User", "Administrator"},
	}
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)

	svc, err := NewJWTService(JWTConfig{Secret: "x"})
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, svc.RefreshLifetime())
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	clock := newTestClock()
	svc := newTestJWT(t, clock)

	token, err := svc.IssueAccessToken(testSubject())
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "session-1", claims.SessionID)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, []string{"Administrator", "User"}, claims.Roles)
	require.Equal(t, []string{"audit.read", "campaign.manage"}, claims.Grants["permission"])
	require.True(t, claims.HasGrant("tenant", "north"))
	require.False(t, claims.HasGrant("permission", "user.delete"))

	again, err := svc.IssueAccessToken(testSubject())
	require.NoError(t, err)
	againClaims, err := svc.ValidateAccessToken(again)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, againClaims.ID)

	_, err = svc.IssueAccessToken(Subject{})
	require.Error(t, err)
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	clock := newTestClock()
	svc := newTestJWT(t, clock)

	token, err := svc.IssueAccessToken(testSubject())
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := svc.ValidateExpiredTokenPrincipal(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestValidateExpiredTokenPrincipalRejectsForeignTokens(t *testing.T) {
	clock := newTestClock()
	svc := newTestJWT(t, clock)

	sign := func(method jwt.SigningMethod, key any, claims Claims) string {
		token, err := jwt.NewWithClaims(method, &claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	base := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "fundraiser",
			Audience: jwt.ClaimStrings{"fundraiser-api"},
		},
	}

	cases := map[string]string{
		"wrong algorithm": sign(jwt.SigningMethodHS512, []byte("unit-test-secret"), base),
		"unsigned":        sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, base),
		"wrong secret":    sign(jwt.SigningMethodHS256, []byte("other-secret"), base),
		"wrong issuer": sign(jwt.SigningMethodHS256, []byte("unit-test-secret"), Claims{
			UserID:           "user-1",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "evil", Audience: base.Audience},
		}),
		"wrong audience": sign(jwt.SigningMethodHS256, []byte("unit-test-secret"), Claims{
			UserID:           "user-1",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "fundraiser", Audience: jwt.ClaimStrings{"other"}},
		}),
		"missing user": sign(jwt.SigningMethodHS256, []byte("unit-test-secret"), Claims{RegisteredClaims: base.RegisteredClaims}),
		"garbage":      "not-a-token",
		"empty":        "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateExpiredTokenPrincipal(token)
			require.Error(t, err)
		})
	}

	valid := sign(jwt.SigningMethodHS256, []byte("unit-test-secret"), base)
	claims, err := svc.ValidateExpiredTokenPrincipal(valid)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
}

func TestValidateAndRotateRefreshToken(t *testing.T) {
	clock := newTestClock()
	svc := newTestJWT(t, clock)
	subject := testSubject()

	t.Run("missing token rotates", func(t *testing.T) {
		issue, err := svc.ValidateAndRotateRefreshToken(&models.User{}, subject)
		require.NoError(t, err)
		require.True(t, issue.Rotated)
		require.NotEmpty(t, issue.AccessToken)
		require.NotEmpty(t, issue.RefreshToken)
		require.True(t, issue.Expiry.Equal(clock.Now().Add(7*24*time.Hour)))
	})

	t.Run("missing expiry rotates", func(t *testing.T) {
		issue, err := svc.ValidateAndRotateRefreshToken(&models.User{RefreshToken: "old"}, subject)
		require.NoError(t, err)
		require.True(t, issue.Rotated)
		require.NotEqual(t, "old", issue.RefreshToken)
	})

	t.Run("valid token is retained", func(t *testing.T) {
		expiry := clock.Now().Add(time.Hour)
		user := &models.User{RefreshToken: "current", RefreshTokenExpiry: &expiry}
		issue, err := svc.ValidateAndRotateRefreshToken(user, subject)
		require.NoError(t, err)
		require.False(t, issue.Rotated)
		require.Equal(t, "current", issue.RefreshToken)
		require.True(t, issue.Expiry.Equal(expiry))
		require.NotEmpty(t, issue.AccessToken)
	})

	t.Run("token at exact expiry is retained", func(t *testing.T) {
		expiry := clock.Now()
		user := &models.User{RefreshToken: "edge", RefreshTokenExpiry: &expiry}
		issue, err := svc.ValidateAndRotateRefreshToken(user, subject)
		require.NoError(t, err)
		require.False(t, issue.Rotated)
	})

	t.Run("expired token rotates", func(t *testing.T) {
		expiry := clock.Now().Add(-time.Second)
		user := &models.User{RefreshToken: "stale", RefreshTokenExpiry: &expiry}
		issue, err := svc.ValidateAndRotateRefreshToken(user, subject)
		require.NoError(t, err)
		require.True(t, issue.Rotated)
		require.NotEqual(t, "stale", issue.RefreshToken)
	})

	_, err := svc.ValidateAndRotateRefreshToken(nil, subject)
	require.Error(t, err)
}

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	locks := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("user-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Zero(t, locks.size())

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	require.Equal(t, 2, locks.size())
	unlockA()
	unlockB()
	require.Zero(t, locks.size())
}
