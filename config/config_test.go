package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Setenv(PathEnv, filepath.Join(t.TempDir(), "config.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Contexts) != 0 || cfg.CurrentContext != "" {
		t.Fatalf("Load() = %+v, want empty", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv(PathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Set("prod", Context{API: "https://api.example.com/client/v4", AccountID: "acct-1", TokenEnv: "PROD_TOKEN"})
	cfg.Set("dev", Context{API: "http://127.0.0.1:8787/client/v4", AccountID: "dev"})
	if err := cfg.Use("prod"); err != nil {
		t.Fatalf("Use() error = %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config mode = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	name, ctx, ok := loaded.Current()
	if !ok || name != "prod" || ctx.AccountID != "acct-1" || ctx.TokenEnv != "PROD_TOKEN" {
		t.Fatalf("Current() = %q %+v %v", name, ctx, ok)
	}
	if got := loaded.Names(); len(got) != 2 || got[0] != "dev" || got[1] != "prod" {
		t.Fatalf("Names() = %v", got)
	}
}

func TestUseAndRemove(t *testing.T) {
	cfg := &Config{Contexts: map[string]Context{"a": {}}}
	if err := cfg.Use("missing"); err == nil {
		t.Fatal("Use(missing) expected error")
	}
	if err := cfg.Use("a"); err != nil {
		t.Fatalf("Use() error = %v", err)
	}
	if err := cfg.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Fatalf("CurrentContext = %q, want cleared", cfg.CurrentContext)
	}
	if err := cfg.Remove("a"); err == nil {
		t.Fatal("Remove() twice expected error")
	}
}

func TestResolve(t *testing.T) {
	cfg := &Config{CurrentContext: "a", Contexts: map[string]Context{"a": {AccountID: "1"}, "b": {AccountID: "2"}}}

	name, ctx, err := cfg.Resolve("")
	if err != nil || name != "a" || ctx.AccountID != "1" {
		t.Fatalf("Resolve(\"\") = %q %+v %v", name, ctx, err)
	}
	name, ctx, err = cfg.Resolve("b")
	if err != nil || name != "b" || ctx.AccountID != "2" {
		t.Fatalf("Resolve(b) = %q %+v %v", name, ctx, err)
	}
	if _, _, err := cfg.Resolve("c"); err == nil {
		t.Fatal("Resolve(c) expected error")
	}
}

func TestContextToken(t *testing.T) {
	t.Setenv(DefaultTokenEnv, " default-token ")
	t.Setenv("CUSTOM_TOKEN", "custom")

	if got := (Context{}).Token(); got != "default-token" {
		t.Fatalf("Token() = %q, want default-token", got)
	}
	if got := (Context{TokenEnv: "CUSTOM_TOKEN"}).Token(); got != "custom" {
		t.Fatalf("Token() = %q, want custom", got)
	}
}
