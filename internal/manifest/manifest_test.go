package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edgepub/internal/durable"
)

const counterManifest = `
name = "counter"
account_id = "acct-1"
main = "dist/worker.js"
workers_dev = true
zone_id = "zone-1"
routes = ["example.com/counter/*"]

[triggers]
crons = ["*/5 * * * *"]

[[durable_objects.implements]]
class_name = "Counter"

[[durable_objects.implements]]
class_name = "Session"
namespace_name = "sessions"

[[durable_objects.bindings]]
name = "COUNTER"
class_name = "Counter"

[[durable_objects.bindings]]
name = "RATE_LIMITER"
class_name = "Limiter"
script_name = "limiter"

[[durable_objects.bindings]]
name = "SESSIONS"
namespace_name = "sessions"
`

func TestParseDerivesNamespaceNames(t *testing.T) {
	m, err := Parse([]byte(counterManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantImpl := []durable.ImplementedNamespace{
		{NamespaceName: "counter-Counter", ClassName: "Counter"},
		{NamespaceName: "sessions", ClassName: "Session"},
	}
	gotImpl := m.Implements()
	if len(gotImpl) != len(wantImpl) {
		t.Fatalf("Implements() len = %d, want %d", len(gotImpl), len(wantImpl))
	}
	for i := range wantImpl {
		if gotImpl[i] != wantImpl[i] {
			t.Fatalf("Implements()[%d] = %+v, want %+v", i, gotImpl[i], wantImpl[i])
		}
	}

	wantUses := []durable.UsedBinding{
		{Binding: "COUNTER", NamespaceName: "counter-Counter"},
		{Binding: "RATE_LIMITER", NamespaceName: "limiter-Limiter"},
		{Binding: "SESSIONS", NamespaceName: "sessions"},
	}
	gotUses := m.Uses()
	if len(gotUses) != len(wantUses) {
		t.Fatalf("Uses() len = %d, want %d", len(gotUses), len(wantUses))
	}
	for i := range wantUses {
		if gotUses[i] != wantUses[i] {
			t.Fatalf("Uses()[%d] = %+v, want %+v", i, gotUses[i], wantUses[i])
		}
	}

	if len(m.Triggers.Crons) != 1 || m.Triggers.Crons[0] != "*/5 * * * *" {
		t.Fatalf("Triggers.Crons = %v", m.Triggers.Crons)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(`
name = "counter"
account_id = "acct-1"
main = "worker.js"
compatibility_date = "2024-01-01"
`))
	if err == nil {
		t.Fatal("Parse() expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "compatibility_date") {
		t.Fatalf("Parse() error = %v, want mention of compatibility_date", err)
	}
}

func TestValidate(t *testing.T) {
	valid := Manifest{Name: "counter", AccountID: "acct-1", Main: "worker.js"}

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantErr string
	}{
		{name: "valid", mutate: func(*Manifest) {}},
		{name: "bad script name", mutate: func(m *Manifest) { m.Name = "Counter!" }, wantErr: "name"},
		{name: "missing account", mutate: func(m *Manifest) { m.AccountID = "" }, wantErr: "account_id"},
		{name: "missing main", mutate: func(m *Manifest) { m.Main = " " }, wantErr: "main"},
		{name: "routes without zone", mutate: func(m *Manifest) { m.Routes = []string{"example.com/*"} }, wantErr: "zone_id"},
		{name: "short cron", mutate: func(m *Manifest) { m.Triggers.Crons = []string{"* * *"} }, wantErr: "5 fields"},
		{
			name: "duplicate class",
			mutate: func(m *Manifest) {
				m.DurableObjects.Implements = []Implementation{{ClassName: "Counter"}, {ClassName: "Counter"}}
			},
			wantErr: "declared twice",
		},
		{
			name: "binding without target",
			mutate: func(m *Manifest) {
				m.DurableObjects.Bindings = []Binding{{Name: "COUNTER"}}
			},
			wantErr: "class_name or namespace_name",
		},
		{
			name: "binding bad identifier",
			mutate: func(m *Manifest) {
				m.DurableObjects.Bindings = []Binding{{Name: "1COUNTER", ClassName: "Counter"}}
			},
			wantErr: "valid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadResolvesScriptPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(counterManifest), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, want := m.ScriptPath(), filepath.Join(dir, "dist", "worker.js"); got != want {
		t.Fatalf("ScriptPath() = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want not-exist", err)
	}
}

