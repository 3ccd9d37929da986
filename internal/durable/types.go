package durable

// NamespaceRecord is the control plane's view of one durable object namespace.
// Script and Class are empty for placeholder namespaces.
type NamespaceRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Script string `json:"script,omitempty"`
	Class  string `json:"class,omitempty"`
}

// IsPlaceholder reports whether the namespace has no implementation attached.
func (r NamespaceRecord) IsPlaceholder() bool {
	return r.Script == "" && r.Class == ""
}

// ImplementedNamespace declares that the script being published implements
// ClassName as the backing class of namespace NamespaceName.
type ImplementedNamespace struct {
	NamespaceName string
	ClassName     string
}

// UsedBinding declares a script binding to a namespace by name. NamespaceID is
// filled in by ResolveBindings.
type UsedBinding struct {
	Binding       string
	NamespaceName string
	NamespaceID   string
}

// CreateNamespaceRequest is the body of a namespace create call. Leaving
// Script and Class empty creates a placeholder.
type CreateNamespaceRequest struct {
	Name   string `json:"name"`
	Script string `json:"script,omitempty"`
	Class  string `json:"class,omitempty"`
}

// UpdateNamespaceRequest replaces the script and class of a namespace.
type UpdateNamespaceRequest struct {
	Script string `json:"script"`
	Class  string `json:"class"`
}

type Action uint8

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// FinalizeEntry is the planned outcome for one implemented namespace.
type FinalizeEntry struct {
	NamespaceName string
	ClassName     string
	Action        Action
	Reason        ReasonCode
	Current       *NamespaceRecord
}

// FinalizePlan lists implemented namespaces in declaration order.
type FinalizePlan struct {
	ScriptName string
	Entries    []FinalizeEntry
}

// Mutations returns the entries that require a remote call.
func (p FinalizePlan) Mutations() []FinalizeEntry {
	var out []FinalizeEntry
	for _, e := range p.Entries {
		if e.Action != ActionNone {
			out = append(out, e)
		}
	}
	return out
}
