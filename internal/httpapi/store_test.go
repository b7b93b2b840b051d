package httpapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"aegisid.org/internal/identity"
	"aegisid.org/internal/ids"
)

// testStore is the in-memory identity.Store backing the HTTP tests. Audit
// appends are mutex-guarded because the recorder writes from its own
// goroutine.
type testStore struct {
	users     map[string]*identity.User
	clients   map[string]*identity.Client
	roles     map[string]*identity.Role
	userRoles map[string][]string
	keys      map[string]*identity.APIKey

	mu     sync.Mutex
	audits []identity.AuditRecord
}

func newTestStore() *testStore {
	return &testStore{
		users:     make(map[string]*identity.User),
		clients:   make(map[string]*identity.Client),
		roles:     make(map[string]*identity.Role),
		userRoles: make(map[string][]string),
		keys:      make(map[string]*identity.APIKey),
	}
}

func (s *testStore) Users(context.Context) identity.UserStore     { return testUsers{s} }
func (s *testStore) Clients(context.Context) identity.ClientStore { return testClients{s} }
func (s *testStore) Roles(context.Context) identity.RoleStore     { return testRoles{s} }
func (s *testStore) APIKeys(context.Context) identity.APIKeyStore { return testKeys{s} }
func (s *testStore) Audit(context.Context) identity.AuditStore    { return testAudit{s} }

func (s *testStore) auditRecords() []identity.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]identity.AuditRecord, len(s.audits))
	copy(out, s.audits)
	return out
}

func (s *testStore) grantRole(userID string, code identity.RoleCode) {
	role := &identity.Role{ID: ids.New(), Name: string(code), Code: code}
	s.roles[role.ID] = role
	s.userRoles[userID] = append(s.userRoles[userID], role.ID)
}

type testUsers struct{ s *testStore }

func (t testUsers) Create(_ context.Context, u *identity.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.CreatedAt = time.Now()
	t.s.users[u.ID] = u
	return nil
}

func (t testUsers) Find(_ context.Context, id string) (*identity.User, error) {
	u, ok := t.s.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, identity.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (t testUsers) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range t.s.users {
		if u.Email == email && u.DeletedAt == nil {
			clone := *u
			return &clone, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (t testUsers) FindByEmailOrPhone(ctx context.Context, identifier string) (*identity.User, error) {
	return t.FindByEmail(ctx, strings.ToLower(identifier))
}

func (t testUsers) Save(_ context.Context, u *identity.User) error {
	if _, ok := t.s.users[u.ID]; !ok {
		return identity.ErrNotFound
	}
	clone := *u
	t.s.users[u.ID] = &clone
	return nil
}

func (t testUsers) SoftDelete(_ context.Context, id string) error {
	u, ok := t.s.users[id]
	if !ok || u.DeletedAt != nil {
		return identity.ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (t testUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	if u, ok := t.s.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type testClients struct{ s *testStore }

func (t testClients) Create(_ context.Context, c *identity.Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.CreatedAt = time.Now()
	t.s.clients[c.ID] = c
	return nil
}

func (t testClients) Find(_ context.Context, id string) (*identity.Client, error) {
	c, ok := t.s.clients[id]
	if !ok || c.DeletedAt != nil {
		return nil, identity.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (t testClients) FindByEmailOrPhone(_ context.Context, identifier string) (*identity.Client, error) {
	for _, c := range t.s.clients {
		if c.DeletedAt != nil {
			continue
		}
		if c.Email == strings.ToLower(identifier) || (c.Phone != "" && c.Phone == identifier) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (t testClients) Save(_ context.Context, c *identity.Client) error {
	if _, ok := t.s.clients[c.ID]; !ok {
		return identity.ErrNotFound
	}
	clone := *c
	t.s.clients[c.ID] = &clone
	return nil
}

func (t testClients) SoftDelete(_ context.Context, id string) error {
	c, ok := t.s.clients[id]
	if !ok || c.DeletedAt != nil {
		return identity.ErrNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

type testRoles struct{ s *testStore }

func (t testRoles) Create(_ context.Context, role *identity.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	t.s.roles[role.ID] = role
	return nil
}

func (t testRoles) Find(_ context.Context, id string) (*identity.Role, error) {
	role, ok := t.s.roles[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (t testRoles) FindByCode(_ context.Context, code identity.RoleCode) (*identity.Role, error) {
	for _, role := range t.s.roles {
		if role.Code == code {
			clone := *role
			return &clone, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (t testRoles) List(_ context.Context) ([]identity.Role, error) {
	var roles []identity.Role
	for _, role := range t.s.roles {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (t testRoles) ListForUser(_ context.Context, userID string) ([]identity.Role, error) {
	var roles []identity.Role
	for _, roleID := range t.s.userRoles[userID] {
		if role, ok := t.s.roles[roleID]; ok {
			roles = append(roles, *role)
		}
	}
	return roles, nil
}

func (t testRoles) Assign(_ context.Context, userID, roleID string) error {
	t.s.userRoles[userID] = append(t.s.userRoles[userID], roleID)
	return nil
}

func (t testRoles) Unassign(_ context.Context, userID, roleID string) error {
	kept := t.s.userRoles[userID][:0]
	for _, existing := range t.s.userRoles[userID] {
		if existing != roleID {
			kept = append(kept, existing)
		}
	}
	t.s.userRoles[userID] = kept
	return nil
}

type testKeys struct{ s *testStore }

func (t testKeys) Create(_ context.Context, key *identity.APIKey) error {
	if key.ID == "" {
		key.ID = ids.New()
	}
	clone := *key
	t.s.keys[key.ID] = &clone
	return nil
}

func (t testKeys) FindByHash(_ context.Context, keyHash string) (*identity.APIKey, error) {
	for _, key := range t.s.keys {
		if key.KeyHash == keyHash && key.DeletedAt == nil {
			clone := *key
			return &clone, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (t testKeys) ListByClient(_ context.Context, clientID string) ([]identity.APIKey, error) {
	var keys []identity.APIKey
	for _, key := range t.s.keys {
		if key.ClientID == clientID && key.DeletedAt == nil {
			keys = append(keys, *key)
		}
	}
	return keys, nil
}

func (t testKeys) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	if key, ok := t.s.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

func (t testKeys) Deactivate(_ context.Context, id string) error {
	key, ok := t.s.keys[id]
	if !ok || key.DeletedAt != nil {
		return identity.ErrNotFound
	}
	key.Active = false
	return nil
}

type testAudit struct{ s *testStore }

func (t testAudit) Append(_ context.Context, rec *identity.AuditRecord) error {
	t.s.mu.Lock()
	t.s.audits = append(t.s.audits, *rec)
	t.s.mu.Unlock()
	return nil
}
