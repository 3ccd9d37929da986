package publish

import "edgepub/internal/durable"

// Results describes a finished publish.
type Results struct {
	ScriptName string
	// URLs are the workers.dev address and every route pattern serving the
	// script.
	URLs      []string
	Schedules []string
	// DurableObjectNamespaces holds the implemented namespaces as recorded
	// after finalization, in declaration order.
	DurableObjectNamespaces []durable.NamespaceRecord
	// Placeholders names the namespaces created before upload.
	Placeholders []string
	// Finalized names the namespaces created or updated after upload.
	Finalized []string
}

// Preview is the outcome of a dry run.
type Preview struct {
	ScriptName   string
	Placeholders []string
	Bindings     []durable.UsedBinding
	Finalize     durable.FinalizePlan
}

// PendingID stands in for the id of a namespace that a dry run would create.
const PendingID = "<pending>"
