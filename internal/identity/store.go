package identity

import (
	"context"
	"time"
)

// Store describes the persistence operations this subsystem requires. The
// implementation owns its own transaction discipline; callers assume
// read-your-writes consistency within a single request.
type Store interface {
	Users(ctx context.Context) UserStore
	Clients(ctx context.Context) ClientStore
	Roles(ctx context.Context) RoleStore
	APIKeys(ctx context.Context) APIKeyStore
	Audit(ctx context.Context) AuditStore
}

// UserStore manages account holders.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailOrPhone(ctx context.Context, identifier string) (*User, error)
	Save(ctx context.Context, u *User) error
	SoftDelete(ctx context.Context, id string) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}

// ClientStore manages service clients.
type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	Find(ctx context.Context, id string) (*Client, error)
	FindByEmailOrPhone(ctx context.Context, identifier string) (*Client, error)
	Save(ctx context.Context, c *Client) error
	SoftDelete(ctx context.Context, id string) error
}

// RoleStore manages the role catalog and user assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByCode(ctx context.Context, code RoleCode) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	ListForUser(ctx context.Context, userID string) ([]Role, error)
	Assign(ctx context.Context, userID, roleID string) error
	Unassign(ctx context.Context, userID, roleID string) error
}

// APIKeyStore manages client secret metadata. Plaintext secrets are never
// stored; lookups go through the irreversible hash.
type APIKeyStore interface {
	Create(ctx context.Context, key *APIKey) error
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListByClient(ctx context.Context, clientID string) ([]APIKey, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, rec *AuditRecord) error
}
