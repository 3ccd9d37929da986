package durable

import (
	"context"
	"fmt"
	"log/slog"

	"edgepub/internal/check"
)

// PlanFinalize classifies each implemented namespace against reg. Entries
// keep declaration order; a name declared twice is planned once.
func PlanFinalize(scriptName string, implemented []ImplementedNamespace, reg *Registry) FinalizePlan {
	plan := FinalizePlan{
		ScriptName: scriptName,
		Entries:    make([]FinalizeEntry, 0, len(implemented)),
	}
	seen := make(map[string]struct{}, len(implemented))
	for _, impl := range implemented {
		if _, dup := seen[impl.NamespaceName]; dup {
			continue
		}
		seen[impl.NamespaceName] = struct{}{}

		entry := FinalizeEntry{
			NamespaceName: impl.NamespaceName,
			ClassName:     impl.ClassName,
		}
		current, ok := reg.Lookup(impl.NamespaceName)
		if !ok {
			entry.Action = ActionCreate
			entry.Reason = ReasonNewNamespace
			plan.Entries = append(plan.Entries, entry)
			continue
		}
		rec := current
		entry.Current = &rec
		entry.Action, entry.Reason = classifyReason(current, scriptName, impl.ClassName)
		plan.Entries = append(plan.Entries, entry)
	}
	return plan
}

// ApplyFinalize issues the create and update calls in plan order and returns
// the names it touched. It stops at the first failure; namespaces finalized
// before it stay finalized.
func ApplyFinalize(ctx context.Context, dir Directory, accountID string, plan FinalizePlan, reg *Registry) ([]string, error) {
	check.Assert(dir != nil, "ApplyFinalize: directory must not be nil")
	check.Assert(reg != nil, "ApplyFinalize: registry must not be nil")

	var touched []string
	for _, entry := range plan.Entries {
		switch entry.Action {
		case ActionNone:
			slog.Debug("Namespace already finalized.", "namespace", entry.NamespaceName)
			continue
		case ActionCreate:
			// The registry may have learned about the name since planning.
			if reg.Contains(entry.NamespaceName) {
				return touched, fmt.Errorf("create namespace %q: already present in registry", entry.NamespaceName)
			}
		}

		if err := ctx.Err(); err != nil {
			return touched, err
		}

		switch entry.Action {
		case ActionCreate:
			rec, err := dir.CreateNamespace(ctx, accountID, CreateNamespaceRequest{
				Name:   entry.NamespaceName,
				Script: plan.ScriptName,
				Class:  entry.ClassName,
			})
			if err != nil {
				return touched, fmt.Errorf("create namespace %q: %w", entry.NamespaceName, err)
			}
			if rec.Name == "" {
				rec.Name = entry.NamespaceName
			}
			reg.Insert(rec)
			slog.Info("Created namespace.", "namespace", rec.Name, "id", rec.ID, "class", entry.ClassName)
		case ActionUpdate:
			check.Assertf(entry.Current != nil, "ApplyFinalize: update of %q must carry the current record", entry.NamespaceName)
			id := entry.Current.ID
			err := dir.UpdateNamespace(ctx, accountID, id, UpdateNamespaceRequest{
				Script: plan.ScriptName,
				Class:  entry.ClassName,
			})
			if err != nil {
				return touched, fmt.Errorf("update namespace %q (%s): %w", entry.NamespaceName, id, err)
			}
			reg.Insert(NamespaceRecord{
				ID:     id,
				Name:   entry.NamespaceName,
				Script: plan.ScriptName,
				Class:  entry.ClassName,
			})
			slog.Info("Updated namespace.", "namespace", entry.NamespaceName, "id", id, "reason", entry.Reason.String())
		default:
			return touched, fmt.Errorf("namespace %q: unknown finalize action %d", entry.NamespaceName, entry.Action)
		}
		touched = append(touched, entry.NamespaceName)
	}
	return touched, nil
}

// Finalize associates every implemented namespace with scriptName, creating
// or updating as needed. It must run after the script upload succeeded.
func Finalize(
	ctx context.Context,
	dir Directory,
	accountID, scriptName string,
	implemented []ImplementedNamespace,
	reg *Registry,
) ([]string, error) {
	plan := PlanFinalize(scriptName, implemented, reg)
	return ApplyFinalize(ctx, dir, accountID, plan, reg)
}
