package identity

import (
	"context"
	"time"
)

// Kind distinguishes the two principal populations: password-authenticated
// account holders and secret-key-authenticated service clients.
type Kind string

const (
	KindAccount Kind = "account"
	KindClient  Kind = "client"
)

// Valid reports whether the kind is one of the two known values.
func (k Kind) Valid() bool {
	return k == KindAccount || k == KindClient
}

// Principal is the resolved, authoritative identity of a caller for one
// request. It is rebuilt from persisted state on every request; nothing
// beyond subject id and kind is ever trusted from a token.
type Principal struct {
	ID       string
	Email    string
	Kind     Kind
	Roles    []RoleCode
	Active   bool
	Verified bool

	// APIKeyID is set when the principal was resolved through an API key.
	APIKeyID string
}

// User is a password-authenticated account holder.
type User struct {
	ID           string
	Email        string
	PasswordHash PasswordHash
	FirstName    string
	LastName     string
	Phone        string
	Active       bool
	Verified     bool
	Roles        []Role
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// RoleCodes returns the codes of the user's assigned roles.
func (u *User) RoleCodes() []RoleCode {
	codes := make([]RoleCode, 0, len(u.Roles))
	for _, r := range u.Roles {
		codes = append(codes, r.Code)
	}
	return codes
}

// Client is a service client. Clients authenticate with a password for the
// login endpoint or with a long-lived API key for machine access; either way
// they always carry exactly the CLIENT role.
type Client struct {
	ID           string
	Email        string
	PasswordHash PasswordHash
	FirstName    string
	LastName     string
	Phone        string
	Address      string
	Active       bool
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Role is an authorization label owned by the role-management collaborator;
// this subsystem only consumes codes and levels.
type Role struct {
	ID          string
	Name        string
	Code        RoleCode
	Description string
	Default     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// APIKey holds the persisted metadata of a client secret. The plaintext
// exists only transiently at generation time; only the hash is stored.
type APIKey struct {
	ID         string
	ClientID   string
	KeyHash    string
	Name       string
	LastFour   string
	Active     bool
	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// TokenPair is a freshly minted access/refresh token set.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuditRecord is one append-only entry of the audit trail. Exactly one of
// UserID or ClientID is set when the action had an authenticated actor.
type AuditRecord struct {
	ID        string
	UserID    *string
	ClientID  *string
	Action    string
	Entity    string
	EntityID  *string
	Changes   map[string]any
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Actor fills the attribution fields from the resolved principal's kind.
func (r *AuditRecord) Actor(p Principal) {
	switch p.Kind {
	case KindAccount:
		id := p.ID
		r.UserID = &id
	case KindClient:
		id := p.ID
		r.ClientID = &id
	}
}

// AuditSink receives audit records for best-effort persistence. The write
// must never delay or fail the caller's request.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord)
}

// RequestMeta carries per-request attribution detail into audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}
