package devplane

import (
	"encoding/json"
	"fmt"

	"edgepub/internal/controlplane"
)

func encodeBindings(bindings []controlplane.Binding) (string, error) {
	if bindings == nil {
		bindings = []controlplane.Binding{}
	}
	data, err := json.Marshal(bindings)
	if err != nil {
		return "", fmt.Errorf("encode bindings: %w", err)
	}
	return string(data), nil
}

func decodeBindings(encoded string) ([]controlplane.Binding, error) {
	var out []controlplane.Binding
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil, fmt.Errorf("decode bindings: %w", err)
	}
	return out, nil
}
