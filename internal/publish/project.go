package publish

import (
	"fmt"
	"os"

	"edgepub/internal/durable"
	"edgepub/internal/manifest"
)

// Project is everything needed to publish one script.
type Project struct {
	AccountID  string
	ScriptName string
	Script     []byte
	WorkersDev bool
	ZoneID     string
	Routes     []string
	Crons      []string
	Implements []durable.ImplementedNamespace
	Uses       []durable.UsedBinding
}

// FromManifest builds a Project from m, reading the script it points at.
func FromManifest(m manifest.Manifest) (Project, error) {
	path := m.ScriptPath()
	body, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("read script %q: %w", path, err)
	}
	return Project{
		AccountID:  m.AccountID,
		ScriptName: m.Name,
		Script:     body,
		WorkersDev: m.WorkersDev,
		ZoneID:     m.ZoneID,
		Routes:     append([]string(nil), m.Routes...),
		Crons:      append([]string(nil), m.Triggers.Crons...),
		Implements: m.Implements(),
		Uses:       m.Uses(),
	}, nil
}

// LoadProject loads the manifest at path and the script it references.
func LoadProject(path string) (Project, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return Project{}, err
	}
	return FromManifest(m)
}

func (p Project) unit() *durable.Unit {
	return durable.NewUnit(p.AccountID, p.ScriptName, p.Implements, append([]durable.UsedBinding(nil), p.Uses...))
}
