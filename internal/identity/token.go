package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken indicates the token failed signature, structure, or
// expiry validation.
var ErrInvalidToken = errors.New("identity: invalid token")

// Claims are the assertions carried by issued tokens. Roles are a snapshot
// taken at issuance; they go stale until the next login or refresh and are
// never used for authorization without a fresh store lookup.
type Claims struct {
	Kind      Kind     `json:"kind"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed, time-bound tokens. The signing
// secret is injected once at construction and immutable for the process
// lifetime.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures TokenIssuer behavior.
type IssuerOption func(*TokenIssuer)

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(t *TokenIssuer) {
		if name = strings.TrimSpace(name); name != "" {
			t.issuer = name
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(t *TokenIssuer) {
		if ttl > 0 {
			t.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokenIssuer constructs a TokenIssuer signing with HS256.
func NewTokenIssuer(secret string, opts ...IssuerOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: signing secret is required")
	}
	t := &TokenIssuer{
		secret:     []byte(secret),
		issuer:     "aegisid",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t, nil
}

// AccessTTL reports the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// Issue mints an access/refresh pair for the principal snapshot. Both
// tokens carry subject id, kind, and the role codes held at issuance.
func (t *TokenIssuer) Issue(p Principal) (TokenPair, error) {
	if strings.TrimSpace(p.ID) == "" {
		return TokenPair{}, errors.New("identity: principal id is required")
	}
	if !p.Kind.Valid() {
		return TokenPair{}, errors.New("identity: principal kind is required")
	}
	now := t.now().UTC()

	accessExp := now.Add(t.accessTTL)
	access, err := t.sign(p, tokenTypeAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshExp := now.Add(t.refreshTTL)
	refresh, err := t.sign(p, tokenTypeRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (t *TokenIssuer) sign(p Principal, tokenType string, now, exp time.Time) (string, error) {
	roles := make([]string, 0, len(p.Roles))
	for _, code := range p.Roles {
		roles = append(roles, string(code))
	}
	claims := Claims{
		Kind:      p.Kind,
		Roles:     roles,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// VerifyAccess validates an access token and returns its claims.
func (t *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return t.verify(token, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (t *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return t.verify(token, tokenTypeRefresh)
}

func (t *TokenIssuer) verify(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Kind.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
