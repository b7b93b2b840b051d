package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"aegisid.org/internal/ids"
)

// apiKeyBytes is the entropy of a generated secret: 32 random bytes,
// hex-encoded into a 64 character key.
const apiKeyBytes = 32

// GeneratedKey is the one-time result of key generation. Key holds the
// plaintext secret; it is returned exactly once and never retrievable again.
type GeneratedKey struct {
	ID        string
	Key       string
	Name      string
	LastFour  string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// APIKeyManager generates and validates long-lived client secrets.
type APIKeyManager struct {
	store Store
	now   func() time.Time
}

// NewAPIKeyManager constructs an APIKeyManager.
func NewAPIKeyManager(store Store) (*APIKeyManager, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	return &APIKeyManager{store: store, now: time.Now}, nil
}

// HashAPIKey computes the irreversible lookup hash of a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate draws a fresh random secret for the client, persists its hash and
// metadata, and returns the plaintext a single time. Expired or deactivated
// keys are never revived; callers generate a new one.
func (m *APIKeyManager) Generate(ctx context.Context, clientID, name string, expiresAt *time.Time) (GeneratedKey, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return GeneratedKey{}, ErrInvalidInput
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return GeneratedKey{}, ErrInvalidInput
	}

	owner, err := m.store.Clients(ctx).Find(ctx, clientID)
	if err != nil {
		return GeneratedKey{}, err
	}
	if !owner.Active {
		return GeneratedKey{}, ErrInvalidInput
	}

	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return GeneratedKey{}, err
	}
	raw := hex.EncodeToString(buf)

	key := &APIKey{
		ID:        ids.New(),
		ClientID:  clientID,
		KeyHash:   HashAPIKey(raw),
		Name:      name,
		LastFour:  raw[len(raw)-4:],
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.APIKeys(ctx).Create(ctx, key); err != nil {
		return GeneratedKey{}, err
	}

	return GeneratedKey{
		ID:        key.ID,
		Key:       raw,
		Name:      key.Name,
		LastFour:  key.LastFour,
		ExpiresAt: key.ExpiresAt,
		CreatedAt: key.CreatedAt,
	}, nil
}

// Validate hashes the presented raw key and looks it up among active keys.
// It rejects unknown, inactive, and expired keys as well as keys whose
// owning client is missing or inactive, each with a distinguishable error.
// On success last_used_at is updated best-effort.
func (m *APIKeyManager) Validate(ctx context.Context, raw string) (*APIKey, *Client, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, ErrInvalidAPIKey
	}

	key, err := m.store.APIKeys(ctx).FindByHash(ctx, HashAPIKey(raw))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidAPIKey
		}
		return nil, nil, err
	}
	if !key.Active {
		return nil, nil, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(m.now()) {
		return nil, nil, ErrAPIKeyExpired
	}

	owner, err := m.store.Clients(ctx).Find(ctx, key.ClientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidAPIKey
		}
		return nil, nil, err
	}
	if !owner.Active {
		return nil, nil, ErrInvalidAPIKey
	}

	// Best-effort; a failed timestamp update must not fail authentication.
	_ = m.store.APIKeys(ctx).TouchLastUsed(ctx, key.ID, m.now().UTC())

	return key, owner, nil
}
