package controlplane

import "encoding/json"

// envelope is the response wrapper used by every control-plane endpoint.
type envelope struct {
	Success  bool            `json:"success"`
	Errors   []apiMessage    `json:"errors"`
	Messages []apiMessage    `json:"messages,omitempty"`
	Result   json.RawMessage `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Binding is one entry of the script metadata bindings list.
type Binding struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	NamespaceID string `json:"namespace_id,omitempty"`
}

const BindingTypeDurableObjectNamespace = "durable_object_namespace"

// ScriptMetadata accompanies a script upload.
type ScriptMetadata struct {
	BodyPart string    `json:"body_part"`
	Bindings []Binding `json:"bindings"`
}

// ScriptUpload is a built script and its bindings.
type ScriptUpload struct {
	Name     string
	Body     []byte
	Bindings []Binding
}

// Route maps a zone pattern to a script.
type Route struct {
	ID      string `json:"id,omitempty"`
	Pattern string `json:"pattern"`
	Script  string `json:"script,omitempty"`
}

// Schedule is a cron trigger.
type Schedule struct {
	Cron string `json:"cron"`
}

type subdomainResult struct {
	Subdomain string `json:"subdomain"`
}

type schedulesResult struct {
	Schedules []Schedule `json:"schedules"`
}

type scriptResult struct {
	ID string `json:"id"`
}
