package audit

import (
	"net/http"
	"strings"
)

type actionKey struct {
	entity string
	method string
}

// actions is the declarative classification of mutating calls. Pairs with
// no mapping are silently skipped: only named actions are recorded, there is
// no generic fallback.
var actions = map[actionKey]string{
	{"users", http.MethodPost}:    "user_created",
	{"users", http.MethodPatch}:   "user_updated",
	{"users", http.MethodPut}:     "user_updated",
	{"users", http.MethodDelete}:  "user_deleted",
	{"clients", http.MethodPost}:  "client_created",
	{"clients", http.MethodPatch}: "client_updated",
	{"clients", http.MethodPut}:   "client_updated",
	{"clients", http.MethodDelete}: "client_deleted",
	{"roles", http.MethodPost}:    "role_created",
	{"roles", http.MethodPatch}:   "role_updated",
	{"roles", http.MethodDelete}:  "role_deleted",
	{"api-keys", http.MethodPost}: "api_key_created",
	{"api-keys", http.MethodDelete}: "api_key_deactivated",
}

// ActionFor classifies an (entity, method) pair into a named action.
func ActionFor(entity, method string) (string, bool) {
	action, ok := actions[actionKey{entity: entity, method: method}]
	return action, ok
}

// EntityFromPath extracts the audited entity name from a request path:
// the last known entity segment, so /v1/clients/{id}/api-keys classifies
// as api-keys while /v1/clients/{id} stays clients.
func EntityFromPath(path string) string {
	entity := ""
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if _, ok := knownEntities[segment]; ok {
			entity = segment
		}
	}
	return entity
}

var knownEntities = map[string]struct{}{
	"users":    {},
	"clients":  {},
	"roles":    {},
	"api-keys": {},
}

// sensitiveFields are stripped from captured request bodies before they are
// persisted as changes.
var sensitiveFields = []string{
	"password",
	"password_hash",
	"email_verification_token",
}

// Sanitize returns a copy of the captured body with secret-bearing fields
// removed. A body that sanitizes to empty is dropped entirely.
func Sanitize(body map[string]any) map[string]any {
	if len(body) == 0 {
		return nil
	}
	clean := make(map[string]any, len(body))
	for k, v := range body {
		clean[k] = v
	}
	for _, field := range sensitiveFields {
		delete(clean, field)
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}
