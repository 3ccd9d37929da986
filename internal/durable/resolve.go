package durable

import (
	"fmt"

	"edgepub/internal/check"
)

// ResolveBindings sets NamespaceID on every binding that names a namespace
// and has no id yet. Bindings are updated in place. If any name cannot be
// resolved the returned error is a *NamespaceNotFoundError listing all of
// them; callers must not upload in that case.
func ResolveBindings(used []UsedBinding, reg *Registry) error {
	check.Assert(reg != nil, "ResolveBindings: registry must not be nil")

	var notFound *NamespaceNotFoundError
	for i := range used {
		b := &used[i]
		if b.NamespaceID != "" {
			continue
		}
		if b.NamespaceName == "" {
			return fmt.Errorf("binding %q: %w: no namespace name or id", b.Binding, ErrInvalidBinding)
		}
		rec, ok := reg.Lookup(b.NamespaceName)
		if !ok {
			if notFound == nil {
				notFound = &NamespaceNotFoundError{Name: b.NamespaceName, Binding: b.Binding}
			}
			notFound.Missing = append(notFound.Missing, b.NamespaceName)
			continue
		}
		b.NamespaceID = rec.ID
	}
	if notFound != nil {
		return notFound
	}
	return nil
}
