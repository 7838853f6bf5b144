// services/resolver.go
package services

import (
	"sync"
	"time"
)

// RawRecord is an achievement entry of unknown origin — local storage, or any of
// the historical remote wire shapes, flattened by the remote client's decoder.
// Any subset of the identity fields may be present.
type RawRecord struct {
	ID          string
	LegacyID    string // "_id" in old payloads
	Slug        string
	ServerID    string
	Title       string
	Description string
	Points      int
	HasPoints   bool // whether the payload actually carried a points value
	Earned      bool
	DateEarned  *time.Time

	// Nested holds the inner "achievement" object when the entry wrapped one.
	// A bare-string "achievement" field lands in Nested.ServerID.
	Nested *RawRecord
}

// IdentityResolver maps records of unknown shape to canonical catalog ids.
// It owns the process-lifetime serverId → localId hint cache — injected, not
// global, so tests get fresh instances and lifetime is explicit.
type IdentityResolver struct {
	catalog *Catalog

	mu    sync.Mutex
	hints map[string]string // serverId → canonical local id, append-only
}

func NewIdentityResolver(catalog *Catalog) *IdentityResolver {
	return &IdentityResolver{
		catalog: catalog,
		hints:   make(map[string]string),
	}
}

// Resolve maps a record to its canonical catalog id. First match wins:
//  1. any of slug/id/_id (own or nested) that is a known catalog id
//  2. a serverId we've seen paired with a local id before
//  3. exact title match against the catalog
//  4. best-effort raw candidate so unknown-but-real achievements aren't dropped
//
// Returns "" when nothing usable is present. Resolving an already-canonical id
// returns itself. On every successful match where a serverId was present the
// hint cache learns the pairing (write-through).
func (r *IdentityResolver) Resolve(raw RawRecord) string {
	candidates := raw.idCandidates()
	serverID := raw.serverID()

	// 1. known catalog id
	for _, c := range candidates {
		if c != "" && r.catalog.Has(c) {
			r.learn(serverID, c)
			return c
		}
	}

	// 2. learned serverId hint
	if serverID != "" {
		r.mu.Lock()
		hinted, ok := r.hints[serverID]
		r.mu.Unlock()
		if ok {
			return hinted
		}
	}

	// 3. title match
	for _, title := range []string{raw.Title, raw.nestedTitle()} {
		if title == "" {
			continue
		}
		if id, ok := r.catalog.IDForTitle(title); ok {
			r.learn(serverID, id)
			return id
		}
	}

	// 4. best-effort: hand back whatever identifier the payload carried
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return serverID
}

// Observe seeds the hint cache from a record that carries both ids — stored
// locally or returned by the remote. Rebuilds resolution state on cold start.
func (r *IdentityResolver) Observe(localID, serverID string) {
	r.learn(serverID, localID)
}

func (r *IdentityResolver) learn(serverID, localID string) {
	if serverID == "" || localID == "" {
		return
	}
	r.mu.Lock()
	r.hints[serverID] = localID
	r.mu.Unlock()
}

func (raw RawRecord) idCandidates() []string {
	out := []string{raw.Slug, raw.ID, raw.LegacyID}
	if raw.Nested != nil {
		out = append(out, raw.Nested.Slug, raw.Nested.ID, raw.Nested.LegacyID)
	}
	return out
}

func (raw RawRecord) serverID() string {
	if raw.ServerID != "" {
		return raw.ServerID
	}
	if raw.Nested != nil {
		return raw.Nested.ServerID
	}
	return ""
}

func (raw RawRecord) nestedTitle() string {
	if raw.Nested != nil {
		return raw.Nested.Title
	}
	return ""
}
