package manifest

import "edgepub/internal/durable"

// Implements returns the namespaces this script implements, in declaration order.
func (m Manifest) Implements() []durable.ImplementedNamespace {
	out := make([]durable.ImplementedNamespace, 0, len(m.DurableObjects.Implements))
	for _, impl := range m.DurableObjects.Implements {
		name := impl.NamespaceName
		if name == "" {
			name = NamespaceName(m.Name, impl.ClassName)
		}
		out = append(out, durable.ImplementedNamespace{NamespaceName: name, ClassName: impl.ClassName})
	}
	return out
}

// Uses returns the namespace bindings of this script, in declaration order.
func (m Manifest) Uses() []durable.UsedBinding {
	out := make([]durable.UsedBinding, 0, len(m.DurableObjects.Bindings))
	for _, b := range m.DurableObjects.Bindings {
		out = append(out, durable.UsedBinding{Binding: b.Name, NamespaceName: m.bindingNamespace(b)})
	}
	return out
}

func (m Manifest) bindingNamespace(b Binding) string {
	if b.NamespaceName != "" {
		return b.NamespaceName
	}
	script := b.ScriptName
	if script == "" {
		script = m.Name
	}
	return NamespaceName(script, b.ClassName)
}
