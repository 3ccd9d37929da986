package durable

import "context"

// Lister reads the full namespace listing for an account.
type Lister interface {
	ListNamespaces(ctx context.Context, accountID string) ([]NamespaceRecord, error)
}

// Directory is the control-plane surface the reconciler drives. Errors for
// non-success responses are expected to carry the status and body verbatim.
type Directory interface {
	Lister
	CreateNamespace(ctx context.Context, accountID string, req CreateNamespaceRequest) (NamespaceRecord, error)
	UpdateNamespace(ctx context.Context, accountID, namespaceID string, req UpdateNamespaceRequest) error
}
