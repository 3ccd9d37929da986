package cmdutil

import (
	"path/filepath"
	"testing"

	"edgepub/config"
	"edgepub/internal/controlplane"
)

func writeConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	t.Setenv(config.PathEnv, filepath.Join(t.TempDir(), "config.yaml"))
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestResolveDefaultsToPublicAPI(t *testing.T) {
	t.Setenv(config.PathEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv(config.DefaultTokenEnv, "tok")

	conn, err := (&Target{}).Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if conn.API != controlplane.DefaultBaseURL || conn.Token != "tok" || conn.Context != "" {
		t.Fatalf("Resolve() = %+v", conn)
	}
}

func TestResolveUsesCurrentContextAndFlagOverride(t *testing.T) {
	t.Setenv("DEV_TOKEN", "dev-secret")
	writeConfig(t, &config.Config{
		CurrentContext: "dev",
		Contexts: map[string]config.Context{
			"dev":  {API: "http://127.0.0.1:8787/client/v4", AccountID: "dev-acct", TokenEnv: "DEV_TOKEN"},
			"prod": {API: "https://api.example.com/client/v4", AccountID: "prod-acct"},
		},
	})

	conn, err := (&Target{}).Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := Connection{Context: "dev", API: "http://127.0.0.1:8787/client/v4", AccountID: "dev-acct", Token: "dev-secret"}
	if conn != want {
		t.Fatalf("Resolve() = %+v, want %+v", conn, want)
	}

	conn, err = (&Target{ContextName: "prod", API: "http://localhost:9999/client/v4"}).Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if conn.Context != "prod" || conn.AccountID != "prod-acct" || conn.API != "http://localhost:9999/client/v4" {
		t.Fatalf("Resolve() = %+v", conn)
	}
}

func TestResolveUnknownContext(t *testing.T) {
	writeConfig(t, &config.Config{Contexts: map[string]config.Context{}})
	if _, err := (&Target{ContextName: "nope"}).Resolve(); err == nil {
		t.Fatal("Resolve() expected error for unknown context")
	}
}
