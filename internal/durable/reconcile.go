package durable

import (
	"context"
	"fmt"

	"edgepub/internal/check"
)

// Reconcile runs the pre-upload phase: refresh reg from the control plane,
// create placeholders for self-referential namespaces and resolve bindings.
// The returned bindings are a resolved copy of used.
func Reconcile(
	ctx context.Context,
	dir Directory,
	accountID, scriptName string,
	implemented []ImplementedNamespace,
	used []UsedBinding,
	reg *Registry,
) ([]UsedBinding, error) {
	resolved, _, err := reconcile(ctx, dir, accountID, scriptName, implemented, used, reg)
	return resolved, err
}

func reconcile(
	ctx context.Context,
	dir Directory,
	accountID, scriptName string,
	implemented []ImplementedNamespace,
	used []UsedBinding,
	reg *Registry,
) ([]UsedBinding, []NamespaceRecord, error) {
	check.Assert(reg != nil, "Reconcile: registry must not be nil")

	if err := reg.Refresh(ctx, dir, accountID); err != nil {
		return nil, nil, err
	}
	created, err := BreakCycles(ctx, dir, accountID, implemented, used, reg)
	if err != nil {
		return nil, created, fmt.Errorf("script %s: %w", scriptName, err)
	}

	resolved := append([]UsedBinding(nil), used...)
	if err := ResolveBindings(resolved, reg); err != nil {
		return nil, created, fmt.Errorf("script %s: %w", scriptName, err)
	}
	return resolved, created, nil
}

// Unit is one script publish. It owns the Registry shared by every phase.
type Unit struct {
	AccountID  string
	ScriptName string
	Implements []ImplementedNamespace
	Uses       []UsedBinding
	Registry   *Registry

	// Placeholders holds the namespaces created by the last Reconcile.
	Placeholders []NamespaceRecord
}

// NewUnit returns a Unit with an empty registry.
func NewUnit(accountID, scriptName string, implements []ImplementedNamespace, uses []UsedBinding) *Unit {
	return &Unit{
		AccountID:  accountID,
		ScriptName: scriptName,
		Implements: implements,
		Uses:       uses,
		Registry:   NewRegistry(),
	}
}

// Reconcile runs the pre-upload phase and stores the resolved bindings on u.
func (u *Unit) Reconcile(ctx context.Context, dir Directory) ([]UsedBinding, error) {
	resolved, created, err := reconcile(ctx, dir, u.AccountID, u.ScriptName, u.Implements, u.Uses, u.Registry)
	u.Placeholders = created
	if err != nil {
		return nil, err
	}
	u.Uses = resolved
	return resolved, nil
}

// Plan refreshes the registry and reports what the unit would do without
// issuing any mutating call.
func (u *Unit) Plan(ctx context.Context, dir Lister) (placeholders []string, plan FinalizePlan, err error) {
	if err := u.Registry.Refresh(ctx, dir, u.AccountID); err != nil {
		return nil, FinalizePlan{}, err
	}
	placeholders = SelfReferential(u.Implements, u.Uses, u.Registry)

	// Placeholders would exist by finalize time, so plan against them.
	projected := NewRegistry(u.Registry.Records()...)
	for _, name := range placeholders {
		projected.Insert(NamespaceRecord{Name: name})
	}
	return placeholders, PlanFinalize(u.ScriptName, u.Implements, projected), nil
}

// Finalize runs the post-upload phase.
func (u *Unit) Finalize(ctx context.Context, dir Directory) ([]string, error) {
	touched, err := Finalize(ctx, dir, u.AccountID, u.ScriptName, u.Implements, u.Registry)
	if err != nil {
		return touched, fmt.Errorf("script %s: %w", u.ScriptName, err)
	}
	return touched, nil
}
