package identity

import (
	"context"
	"errors"
)

// Credential is the raw material extracted from an inbound request. The two
// schemes are mutually exclusive; a bearer token wins when both are present.
type Credential struct {
	Bearer string
	APIKey string
	Meta   RequestMeta
}

// Resolver turns a raw credential into an authoritative, freshly-checked
// principal. Active and verified status always reflect current persisted
// state, never a token's snapshot, so deactivation takes effect on the very
// next request.
type Resolver struct {
	store  Store
	tokens *TokenIssuer
	keys   *APIKeyManager
	audit  AuditSink
}

// NewResolver constructs a Resolver. The audit sink may be nil; API-key
// authentication events are then not recorded.
func NewResolver(store Store, tokens *TokenIssuer, keys *APIKeyManager, audit AuditSink) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("identity: store is required")
	}
	if tokens == nil {
		return nil, errors.New("identity: token issuer is required")
	}
	if keys == nil {
		return nil, errors.New("identity: api key manager is required")
	}
	return &Resolver{store: store, tokens: tokens, keys: keys, audit: audit}, nil
}

// Resolve authenticates the credential through whichever scheme it carries.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (Principal, error) {
	switch {
	case cred.Bearer != "":
		return r.ResolveBearer(ctx, cred.Bearer)
	case cred.APIKey != "":
		return r.ResolveAPIKey(ctx, cred.APIKey, cred.Meta)
	default:
		return Principal{}, ErrUnauthenticated
	}
}

// ResolveBearer verifies the access token and re-fetches the subject's
// authoritative record by (id, kind). Only identity and kind are trusted
// from the token; roles and status come from the store.
func (r *Resolver) ResolveBearer(ctx context.Context, token string) (Principal, error) {
	claims, err := r.tokens.VerifyAccess(token)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	switch claims.Kind {
	case KindAccount:
		user, err := r.store.Users(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrUnauthenticated
			}
			return Principal{}, err
		}
		if !user.Active {
			return Principal{}, ErrUnauthenticated
		}
		roles, err := r.store.Roles(ctx).ListForUser(ctx, user.ID)
		if err != nil {
			return Principal{}, err
		}
		codes := make([]RoleCode, 0, len(roles))
		for _, role := range roles {
			codes = append(codes, role.Code)
		}
		return Principal{
			ID:       user.ID,
			Email:    user.Email,
			Kind:     KindAccount,
			Roles:    codes,
			Active:   user.Active,
			Verified: user.Verified,
		}, nil

	case KindClient:
		client, err := r.store.Clients(ctx).Find(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Principal{}, ErrUnauthenticated
			}
			return Principal{}, err
		}
		if !client.Active {
			return Principal{}, ErrUnauthenticated
		}
		return clientPrincipal(client, ""), nil

	default:
		return Principal{}, ErrUnauthenticated
	}
}

// ResolveAPIKey validates the raw key and synthesizes a client-kind
// principal carrying the single CLIENT role. Successful resolution records
// the authentication event itself as a client login.
func (r *Resolver) ResolveAPIKey(ctx context.Context, raw string, meta RequestMeta) (Principal, error) {
	key, owner, err := r.keys.Validate(ctx, raw)
	if err != nil {
		return Principal{}, err
	}
	principal := clientPrincipal(owner, key.ID)

	if r.audit != nil {
		rec := AuditRecord{
			Action:    "client_login",
			Entity:    "auth",
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		}
		rec.Actor(principal)
		r.audit.Record(ctx, rec)
	}
	return principal, nil
}

// clientPrincipal builds the fixed-shape principal for a service client.
// A client's role set is always exactly {CLIENT}.
func clientPrincipal(c *Client, apiKeyID string) Principal {
	return Principal{
		ID:       c.ID,
		Email:    c.Email,
		Kind:     KindClient,
		Roles:    []RoleCode{RoleClient},
		Active:   c.Active,
		Verified: c.Verified,
		APIKeyID: apiKeyID,
	}
}
