package durable

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"edgepub/internal/check"
)

// Registry caches the namespaces of one account for a single deployment
// unit. It is not safe for concurrent use; each unit owns its own Registry.
type Registry struct {
	byName map[string]NamespaceRecord
}

// NewRegistry returns a Registry seeded with records. Later records win on
// duplicate names.
func NewRegistry(seed ...NamespaceRecord) *Registry {
	r := &Registry{byName: make(map[string]NamespaceRecord, len(seed))}
	for _, rec := range seed {
		r.byName[rec.Name] = rec
	}
	return r
}

// Refresh replaces the registry content with the account's current listing.
// On error the previous content is left untouched.
func (r *Registry) Refresh(ctx context.Context, dir Lister, accountID string) error {
	check.Assert(r != nil, "Registry.Refresh: receiver must not be nil")
	check.Assert(dir != nil, "Registry.Refresh: lister must not be nil")

	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := dir.ListNamespaces(ctx, accountID)
	if err != nil {
		return fmt.Errorf("list durable object namespaces: %w", err)
	}

	next := make(map[string]NamespaceRecord, len(records))
	for _, rec := range records {
		if prev, dup := next[rec.Name]; dup {
			slog.Warn("Duplicate namespace name in listing.", "namespace", rec.Name, "id", prev.ID, "replaced_by", rec.ID)
		}
		next[rec.Name] = rec
	}
	r.byName = next
	slog.Debug("Refreshed namespace registry.", "account", accountID, "namespaces", len(next))
	return nil
}

// Lookup returns the record for name.
func (r *Registry) Lookup(name string) (NamespaceRecord, bool) {
	if r == nil {
		return NamespaceRecord{}, false
	}
	rec, ok := r.byName[name]
	return rec, ok
}

// Contains reports whether name is known.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Insert records a namespace created or updated during this run.
func (r *Registry) Insert(rec NamespaceRecord) {
	check.Assert(rec.Name != "", "Registry.Insert: name must not be empty")
	if r.byName == nil {
		r.byName = make(map[string]NamespaceRecord)
	}
	r.byName[rec.Name] = rec
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byName)
}

// Records returns a snapshot sorted by name.
func (r *Registry) Records() []NamespaceRecord {
	if r == nil {
		return nil
	}
	out := make([]NamespaceRecord, 0, len(r.byName))
	for _, rec := range r.byName {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
