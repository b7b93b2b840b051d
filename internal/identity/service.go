package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"aegisid.org/internal/ids"
)

// Service implements the credential flows: login, registration, client
// login, token refresh, and logout. Token pairs are minted from a freshly
// loaded principal; nothing is derived from stale state.
type Service struct {
	store  Store
	tokens *TokenIssuer
	audit  AuditSink
	now    func() time.Time
}

// NewService constructs a Service. The audit sink may be nil.
func NewService(store Store, tokens *TokenIssuer, audit AuditSink) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	if tokens == nil {
		return nil, errors.New("identity: token issuer is required")
	}
	return &Service{store: store, tokens: tokens, audit: audit, now: time.Now}, nil
}

// RegisterParams is the input of account registration. The raw password is
// hashed here, at the single explicit boundary.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Login authenticates an account holder by email and password. All failure
// modes collapse into ErrUnauthenticated so callers surface nothing beyond
// "invalid credentials".
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	if err := user.PasswordHash.Verify(password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	if !user.Active {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}

	roles, err := s.store.Roles(ctx).ListForUser(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	user.Roles = roles

	principal := accountPrincipal(user)
	pair, err := s.tokens.Issue(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	// Best-effort; a failed timestamp update must not fail the login.
	_ = s.store.Users(ctx).SetLastLogin(ctx, user.ID, s.now().UTC())

	s.record(ctx, principal, "user_login", meta)
	return pair, principal, nil
}

// Register creates a new account holder and issues an initial token pair.
func (s *Service) Register(ctx context.Context, params RegisterParams, meta RequestMeta) (TokenPair, Principal, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return TokenPair{}, Principal{}, ErrInvalidInput
	}
	if strings.TrimSpace(params.Password) == "" {
		return TokenPair{}, Principal{}, ErrInvalidInput
	}

	if _, err := s.store.Users(ctx).FindByEmail(ctx, email); err == nil {
		return TokenPair{}, Principal{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return TokenPair{}, Principal{}, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Phone:        strings.TrimSpace(params.Phone),
		Active:       true,
		Verified:     false,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return TokenPair{}, Principal{}, err
	}

	principal := accountPrincipal(user)
	pair, err := s.tokens.Issue(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	s.record(ctx, principal, "user_register", meta)
	return pair, principal, nil
}

// ClientLogin authenticates a service client by email or phone plus
// password and issues a client-kind token pair.
func (s *Service) ClientLogin(ctx context.Context, identifier, password string, meta RequestMeta) (TokenPair, Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	client, err := s.store.Clients(ctx).FindByEmailOrPhone(ctx, identifier)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	if err := client.PasswordHash.Verify(password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}
	if !client.Active {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}

	principal := clientPrincipal(client, "")
	pair, err := s.tokens.Issue(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}

	s.record(ctx, principal, "client_login", meta)
	return pair, principal, nil
}

// Refresh verifies the refresh token, re-resolves the principal (which must
// still be active), and issues a brand-new pair. The old refresh token is
// neither extended nor reused; without a revocation store its single use is
// not enforced, only its expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, Principal, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}

	var principal Principal
	switch claims.Kind {
	case KindAccount:
		user, err := s.store.Users(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return TokenPair{}, Principal{}, ErrUnauthenticated
			}
			return TokenPair{}, Principal{}, err
		}
		if !user.Active {
			return TokenPair{}, Principal{}, ErrUnauthenticated
		}
		roles, err := s.store.Roles(ctx).ListForUser(ctx, user.ID)
		if err != nil {
			return TokenPair{}, Principal{}, err
		}
		user.Roles = roles
		principal = accountPrincipal(user)

	case KindClient:
		client, err := s.store.Clients(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return TokenPair{}, Principal{}, ErrUnauthenticated
			}
			return TokenPair{}, Principal{}, err
		}
		if !client.Active {
			return TokenPair{}, Principal{}, ErrUnauthenticated
		}
		principal = clientPrincipal(client, "")

	default:
		return TokenPair{}, Principal{}, ErrUnauthenticated
	}

	pair, err := s.tokens.Issue(principal)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Logout records the logout event. There is no revocation store; issued
// tokens stay valid until expiry.
func (s *Service) Logout(ctx context.Context, principal Principal, meta RequestMeta) {
	action := "user_logout"
	if principal.Kind == KindClient {
		action = "client_logout"
	}
	s.record(ctx, principal, action, meta)
}

func (s *Service) record(ctx context.Context, principal Principal, action string, meta RequestMeta) {
	if s.audit == nil {
		return
	}
	rec := AuditRecord{
		Action:    action,
		Entity:    "auth",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	rec.Actor(principal)
	s.audit.Record(ctx, rec)
}

func accountPrincipal(u *User) Principal {
	return Principal{
		ID:       u.ID,
		Email:    u.Email,
		Kind:     KindAccount,
		Roles:    u.RoleCodes(),
		Active:   u.Active,
		Verified: u.Verified,
	}
}
