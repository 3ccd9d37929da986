// Package manifest loads edgepub.toml project manifests.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the manifest name looked up in the working directory.
const DefaultFile = "edgepub.toml"

// Manifest is the parsed project file.
type Manifest struct {
	Name           string         `toml:"name"`
	AccountID      string         `toml:"account_id"`
	Main           string         `toml:"main"`
	WorkersDev     bool           `toml:"workers_dev"`
	ZoneID         string         `toml:"zone_id"`
	Routes         []string       `toml:"routes"`
	Triggers       Triggers       `toml:"triggers"`
	DurableObjects DurableObjects `toml:"durable_objects"`

	// dir is the directory the manifest was read from; Main is relative to it.
	dir string
}

type Triggers struct {
	Crons []string `toml:"crons"`
}

type DurableObjects struct {
	Implements []Implementation `toml:"implements"`
	Bindings   []Binding        `toml:"bindings"`
}

// Implementation declares a class exported by this script.
type Implementation struct {
	ClassName     string `toml:"class_name"`
	NamespaceName string `toml:"namespace_name"`
}

// Binding exposes a namespace to the script under Name. The namespace is
// NamespaceName when set, otherwise "<script_name>-<class_name>" where
// script_name defaults to this script.
type Binding struct {
	Name          string `toml:"name"`
	ClassName     string `toml:"class_name"`
	ScriptName    string `toml:"script_name"`
	NamespaceName string `toml:"namespace_name"`
}

var (
	scriptNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]{0,61}[a-z0-9])?$`)
	bindingPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Load reads and validates the manifest at path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %q: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest %q: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates manifest content. Unknown keys are rejected.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return Manifest{}, fmt.Errorf("parse: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Manifest{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks required fields and durable object declarations.
func (m Manifest) Validate() error {
	var errs []error
	if !scriptNamePattern.MatchString(m.Name) {
		errs = append(errs, fmt.Errorf("name %q: must be lowercase alphanumeric with dashes or underscores", m.Name))
	}
	if strings.TrimSpace(m.AccountID) == "" {
		errs = append(errs, errors.New("account_id is required"))
	}
	if strings.TrimSpace(m.Main) == "" {
		errs = append(errs, errors.New("main is required"))
	}
	if len(m.Routes) > 0 && strings.TrimSpace(m.ZoneID) == "" {
		errs = append(errs, errors.New("zone_id is required when routes are set"))
	}
	for i, cron := range m.Triggers.Crons {
		if len(strings.Fields(cron)) != 5 {
			errs = append(errs, fmt.Errorf("triggers.crons[%d] %q: want 5 fields", i, cron))
		}
	}

	seenClass := make(map[string]bool)
	for i, impl := range m.DurableObjects.Implements {
		if strings.TrimSpace(impl.ClassName) == "" {
			errs = append(errs, fmt.Errorf("durable_objects.implements[%d]: class_name is required", i))
			continue
		}
		if seenClass[impl.ClassName] {
			errs = append(errs, fmt.Errorf("durable_objects.implements[%d]: class %q declared twice", i, impl.ClassName))
		}
		seenClass[impl.ClassName] = true
	}

	seenBinding := make(map[string]bool)
	for i, b := range m.DurableObjects.Bindings {
		if !bindingPattern.MatchString(b.Name) {
			errs = append(errs, fmt.Errorf("durable_objects.bindings[%d]: name %q is not a valid identifier", i, b.Name))
		}
		if seenBinding[b.Name] {
			errs = append(errs, fmt.Errorf("durable_objects.bindings[%d]: binding %q declared twice", i, b.Name))
		}
		seenBinding[b.Name] = true
		if strings.TrimSpace(b.ClassName) == "" && strings.TrimSpace(b.NamespaceName) == "" {
			errs = append(errs, fmt.Errorf("durable_objects.bindings[%d]: class_name or namespace_name is required", i))
		}
	}
	return errors.Join(errs...)
}

// NamespaceName is the default namespace name for a class of a script.
func NamespaceName(scriptName, className string) string {
	return scriptName + "-" + className
}

// ScriptPath returns Main resolved against the manifest directory.
func (m Manifest) ScriptPath() string {
	if filepath.IsAbs(m.Main) || m.dir == "" {
		return m.Main
	}
	return filepath.Join(m.dir, m.Main)
}
