package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL defines the fallback validity period for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenDays is the fallback refresh token lifetime in days.
	DefaultRefreshTokenDays = 7
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret           string
	Issuer           string
	Audience         string
	AccessTokenTTL   time.Duration
	RefreshTokenDays int
	Clock            func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID    string              `json:"uid"`
	Username  string              `json:"name"`
	FullName  string              `json:"full_name,omitempty"`
	Email     string              `json:"email,omitempty"`
	SessionID string              `json:"sid,omitempty"`
	Roles     []string            `json:"roles,omitempty"`
	Grants    map[string][]string `json:"grants,omitempty"`
	jwt.RegisteredClaims
}

// HasGrant reports whether the token carries the claim type/value pair.
func (c *Claims) HasGrant(claimType, value string) bool {
	return slices.Contains(c.Grants[claimType], value)
}

// Grant is a single claim type/value pair.
type Grant struct {
	Type  string
	Value string
}

// Subject is the principal an access token is issued for.
type Subject struct {
	UserID     string
	Username   string
	FullName   string
	Email      string
	SessionID  string
	UserGrants []Grant
	RoleGrants []Grant
	Roles      []string
}

// JWTService issues and validates access tokens and decides refresh-token rotation.
type JWTService struct {
	secret      []byte
	issuer      string
	audience    string
	ttl         time.Duration
	refreshDays int
	now         func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	days := cfg.RefreshTokenDays
	if days <= 0 {
		days = DefaultRefreshTokenDays
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		ttl:         ttl,
		refreshDays: days,
		now:         now,
	}, nil
}

// RefreshLifetime is the validity of a newly minted refresh token.
func (s *JWTService) RefreshLifetime() time.Duration {
	return time.Duration(s.refreshDays) * 24 * time.Hour
}

// IssueAccessToken signs a token for subject carrying a fresh token id, the user's own
// grants, role grants not already granted directly and one role entry per role.
func (s *JWTService) IssueAccessToken(subject Subject) (string, error) {
	if subject.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:    subject.UserID,
		Username:  subject.Username,
		FullName:  subject.FullName,
		Email:     subject.Email,
		SessionID: subject.SessionID,
		Roles:     dedupe(subject.Roles),
		Grants:    mergeGrants(subject.UserGrants, subject.RoleGrants),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and fully validates a signed JWT, including its lifetime.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}
	return s.parse(tokenString, jwt.NewParser(opts...))
}

// ValidateExpiredTokenPrincipal checks signature, algorithm, issuer and audience but not
// lifetime. It only extracts identity during refresh.
func (s *JWTService) ValidateExpiredTokenPrincipal(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims, err := s.parse(tokenString, parser)
	if err != nil {
		return nil, err
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}
	if s.audience != "" && !slices.Contains(claims.Audience, s.audience) {
		return nil, errors.New("jwt: invalid audience")
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string, parser *jwt.Parser) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}

	return &claims, nil
}

func mergeGrants(userGrants, roleGrants []Grant) map[string][]string {
	if len(userGrants) == 0 && len(roleGrants) == 0 {
		return nil
	}

	seen := make(map[Grant]struct{}, len(userGrants)+len(roleGrants))
	out := make(map[string][]string)
	for _, grants := range [][]Grant{userGrants, roleGrants} {
		for _, g := range grants {
			if g.Type == "" {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out[g.Type] = append(out[g.Type], g.Value)
		}
	}
	return out
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
