package identity

import (
	"context"
	"strings"
	"time"

	"aegisid.org/internal/ids"
)

// memStore is the in-memory Store used across the package tests.
type memStore struct {
	users     map[string]*User
	clients   map[string]*Client
	roles     map[string]*Role
	userRoles map[string][]string
	keys      map[string]*APIKey
	audits    []AuditRecord

	touchCalls int
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]*User),
		clients:   make(map[string]*Client),
		roles:     make(map[string]*Role),
		userRoles: make(map[string][]string),
		keys:      make(map[string]*APIKey),
	}
}

func (m *memStore) Users(context.Context) UserStore     { return memUsers{m} }
func (m *memStore) Clients(context.Context) ClientStore { return memClients{m} }
func (m *memStore) Roles(context.Context) RoleStore     { return memRoles{m} }
func (m *memStore) APIKeys(context.Context) APIKeyStore { return memKeys{m} }
func (m *memStore) Audit(context.Context) AuditStore    { return memAudit{m} }

func (m *memStore) addRole(code RoleCode) *Role {
	role := &Role{ID: ids.New(), Name: string(code), Code: code, CreatedAt: time.Now()}
	m.roles[role.ID] = role
	return role
}

func (m *memStore) grantRole(userID string, code RoleCode) {
	role := m.addRole(code)
	m.userRoles[userID] = append(m.userRoles[userID], role.ID)
}

type memUsers struct{ m *memStore }

func (s memUsers) Create(_ context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.CreatedAt = time.Now()
	s.m.users[u.ID] = u
	return nil
}

func (s memUsers) Find(_ context.Context, id string) (*User, error) {
	u, ok := s.m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.m.users {
		if u.Email == email && u.DeletedAt == nil {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) FindByEmailOrPhone(ctx context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return s.FindByEmail(ctx, strings.ToLower(identifier))
	}
	for _, u := range s.m.users {
		if u.Phone == identifier && u.DeletedAt == nil {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memUsers) Save(_ context.Context, u *User) error {
	existing, ok := s.m.users[u.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	clone := *u
	s.m.users[u.ID] = &clone
	return nil
}

func (s memUsers) SoftDelete(_ context.Context, id string) error {
	u, ok := s.m.users[id]
	if !ok || u.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (s memUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	if u, ok := s.m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memClients struct{ m *memStore }

func (s memClients) Create(_ context.Context, c *Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.CreatedAt = time.Now()
	s.m.clients[c.ID] = c
	return nil
}

func (s memClients) Find(_ context.Context, id string) (*Client, error) {
	c, ok := s.m.clients[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s memClients) FindByEmailOrPhone(_ context.Context, identifier string) (*Client, error) {
	for _, c := range s.m.clients {
		if c.DeletedAt != nil {
			continue
		}
		if c.Email == strings.ToLower(identifier) || (c.Phone != "" && c.Phone == identifier) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memClients) Save(_ context.Context, c *Client) error {
	existing, ok := s.m.clients[c.ID]
	if !ok || existing.DeletedAt != nil {
		return ErrNotFound
	}
	clone := *c
	s.m.clients[c.ID] = &clone
	return nil
}

func (s memClients) SoftDelete(_ context.Context, id string) error {
	c, ok := s.m.clients[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

type memRoles struct{ m *memStore }

func (s memRoles) Create(_ context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	s.m.roles[role.ID] = role
	return nil
}

func (s memRoles) Find(_ context.Context, id string) (*Role, error) {
	role, ok := s.m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (s memRoles) FindByCode(_ context.Context, code RoleCode) (*Role, error) {
	for _, role := range s.m.roles {
		if role.Code == code {
			clone := *role
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memRoles) List(_ context.Context) ([]Role, error) {
	var roles []Role
	for _, role := range s.m.roles {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (s memRoles) ListForUser(_ context.Context, userID string) ([]Role, error) {
	var roles []Role
	for _, roleID := range s.m.userRoles[userID] {
		if role, ok := s.m.roles[roleID]; ok {
			roles = append(roles, *role)
		}
	}
	return roles, nil
}

func (s memRoles) Assign(_ context.Context, userID, roleID string) error {
	for _, existing := range s.m.userRoles[userID] {
		if existing == roleID {
			return nil
		}
	}
	s.m.userRoles[userID] = append(s.m.userRoles[userID], roleID)
	return nil
}

func (s memRoles) Unassign(_ context.Context, userID, roleID string) error {
	kept := s.m.userRoles[userID][:0]
	for _, existing := range s.m.userRoles[userID] {
		if existing != roleID {
			kept = append(kept, existing)
		}
	}
	s.m.userRoles[userID] = kept
	return nil
}

type memKeys struct{ m *memStore }

func (s memKeys) Create(_ context.Context, key *APIKey) error {
	if key.ID == "" {
		key.ID = ids.New()
	}
	clone := *key
	s.m.keys[key.ID] = &clone
	return nil
}

func (s memKeys) FindByHash(_ context.Context, keyHash string) (*APIKey, error) {
	for _, key := range s.m.keys {
		if key.KeyHash == keyHash && key.DeletedAt == nil {
			clone := *key
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s memKeys) ListByClient(_ context.Context, clientID string) ([]APIKey, error) {
	var keys []APIKey
	for _, key := range s.m.keys {
		if key.ClientID == clientID && key.DeletedAt == nil {
			keys = append(keys, *key)
		}
	}
	return keys, nil
}

func (s memKeys) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.m.touchCalls++
	if key, ok := s.m.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

func (s memKeys) Deactivate(_ context.Context, id string) error {
	key, ok := s.m.keys[id]
	if !ok || key.DeletedAt != nil {
		return ErrNotFound
	}
	key.Active = false
	return nil
}

type memAudit struct{ m *memStore }

func (s memAudit) Append(_ context.Context, rec *AuditRecord) error {
	s.m.audits = append(s.m.audits, *rec)
	return nil
}

// captureSink records synchronously for assertions.
type captureSink struct {
	records []AuditRecord
}

func (c *captureSink) Record(_ context.Context, rec AuditRecord) {
	c.records = append(c.records, rec)
}
