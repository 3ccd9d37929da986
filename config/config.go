// Package config handles CLI contexts: which control plane to publish to and
// with which credentials.
//
// Config is stored at $EDGEPUB_CONFIG, else $XDG_CONFIG_HOME/edgepub/config.yaml
// (defaults to ~/.config/edgepub/config.yaml). Named contexts with a
// current-context selector, as in kubeconfig.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	PathEnv = "EDGEPUB_CONFIG"
	// DefaultTokenEnv is read when a context names no token variable.
	DefaultTokenEnv = "EDGEPUB_API_TOKEN"
)

// Context describes one control plane target. The token itself is never
// stored; TokenEnv names the environment variable holding it.
type Context struct {
	API       string `yaml:"api,omitempty"`
	AccountID string `yaml:"account_id,omitempty"`
	TokenEnv  string `yaml:"token_env,omitempty"`
}

// Token reads the API token from the context's environment variable.
func (c Context) Token() string {
	env := c.TokenEnv
	if env == "" {
		env = DefaultTokenEnv
	}
	return strings.TrimSpace(os.Getenv(env))
}

// Config holds named contexts and the current selection.
type Config struct {
	CurrentContext string             `yaml:"current-context"`
	Contexts       map[string]Context `yaml:"contexts"`
}

// Path returns the config file location.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "edgepub", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "edgepub", "config.yaml")
}

// Load reads the config file. A missing file yields an empty Config.
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Contexts: make(map[string]Context)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]Context)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Current returns the current context name and value.
// The bool is false when no current context is set.
func (c *Config) Current() (string, Context, bool) {
	if c.CurrentContext == "" {
		return "", Context{}, false
	}
	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return "", Context{}, false
	}
	return c.CurrentContext, ctx, true
}

// Resolve returns the named context, or the current one when name is empty.
func (c *Config) Resolve(name string) (string, Context, error) {
	if name == "" {
		n, ctx, ok := c.Current()
		if !ok {
			return "", Context{}, nil
		}
		return n, ctx, nil
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return "", Context{}, fmt.Errorf("context %q not found", name)
	}
	return name, ctx, nil
}

// Names returns context names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Use sets the current context. It returns an error if the name doesn't exist.
func (c *Config) Use(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return nil
}

// Set adds or updates a named context.
func (c *Config) Set(name string, ctx Context) {
	c.Contexts[name] = ctx
}

// Remove deletes a context. If it was the current context, current-context
// is cleared.
func (c *Config) Remove(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return nil
}
