package durable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// ErrInvalidBinding marks a binding that declares neither a namespace name
// nor a namespace id.
var ErrInvalidBinding = errors.New("invalid durable object binding")

// NamespaceNotFoundError reports a used binding whose namespace is neither on
// the control plane nor implemented by the script being published.
type NamespaceNotFoundError struct {
	Name    string
	Binding string
	// Missing holds every unresolved namespace name, Name included.
	Missing []string
}

func (e *NamespaceNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "durable object namespace %q not found", e.Name)
	if e.Binding != "" {
		fmt.Fprintf(&b, " (binding %s)", e.Binding)
	}
	if len(e.Missing) > 1 {
		fmt.Fprintf(&b, "; unresolved namespaces: %s", strings.Join(e.Missing, ", "))
	}
	return b.String()
}

func (e *NamespaceNotFoundError) Unwrap() error {
	return errdefs.ErrNotFound
}
