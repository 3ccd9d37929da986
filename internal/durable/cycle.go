package durable

import (
	"context"
	"fmt"
	"log/slog"

	"edgepub/internal/check"
)

// SelfReferential returns the implemented namespace names that the same unit
// also binds to and that reg does not know yet, in declaration order.
func SelfReferential(implemented []ImplementedNamespace, used []UsedBinding, reg *Registry) []string {
	usedNames := make(map[string]struct{}, len(used))
	for _, b := range used {
		if b.NamespaceName != "" {
			usedNames[b.NamespaceName] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(implemented))
	var out []string
	for _, impl := range implemented {
		name := impl.NamespaceName
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := usedNames[name]; !ok {
			continue
		}
		if reg.Contains(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// BreakCycles creates a placeholder namespace for every self-referential name
// so bindings can resolve before the script exists. Each created record is
// inserted into reg as soon as the call returns, so a later failure leaves
// earlier placeholders in place.
func BreakCycles(
	ctx context.Context,
	dir Directory,
	accountID string,
	implemented []ImplementedNamespace,
	used []UsedBinding,
	reg *Registry,
) ([]NamespaceRecord, error) {
	check.Assert(dir != nil, "BreakCycles: directory must not be nil")
	check.Assert(reg != nil, "BreakCycles: registry must not be nil")

	var created []NamespaceRecord
	for _, name := range SelfReferential(implemented, used, reg) {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		rec, err := dir.CreateNamespace(ctx, accountID, CreateNamespaceRequest{Name: name})
		if err != nil {
			return created, fmt.Errorf("create placeholder namespace %q: %w", name, err)
		}
		if rec.Name == "" {
			rec.Name = name
		}
		reg.Insert(rec)
		created = append(created, rec)
		slog.Info("Created placeholder namespace.", "namespace", name, "id", rec.ID)
	}
	return created, nil
}
