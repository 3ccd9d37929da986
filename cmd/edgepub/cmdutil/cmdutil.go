package cmdutil

import (
	"fmt"
	"log/slog"
	"strings"

	"edgepub/config"
	"edgepub/internal/controlplane"

	"github.com/spf13/cobra"
)

// Target holds the connection flags shared by every command.
type Target struct {
	ContextName string
	API         string
}

func (t *Target) Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&t.ContextName, "context", "", "Context name to use")
	cmd.PersistentFlags().StringVar(&t.API, "api", "", "Control plane API URL (overrides the context)")
}

// Connection is a resolved control plane target.
type Connection struct {
	Context   string
	API       string
	AccountID string
	Token     string
}

// Resolve merges flags over the selected context. With no context and no
// --api the public control plane is used with the default token variable.
func (t *Target) Resolve() (Connection, error) {
	cfg, err := config.Load()
	if err != nil {
		return Connection{}, err
	}
	name, ctx, err := cfg.Resolve(strings.TrimSpace(t.ContextName))
	if err != nil {
		return Connection{}, err
	}

	conn := Connection{
		Context:   name,
		API:       ctx.API,
		AccountID: ctx.AccountID,
		Token:     ctx.Token(),
	}
	if api := strings.TrimSpace(t.API); api != "" {
		conn.API = api
	}
	if conn.API == "" {
		conn.API = controlplane.DefaultBaseURL
	}
	return conn, nil
}

// Client builds a control plane client for the resolved target.
func (t *Target) Client() (*controlplane.Client, Connection, error) {
	conn, err := t.Resolve()
	if err != nil {
		return nil, Connection{}, err
	}
	client, err := controlplane.NewClient(conn.API,
		controlplane.WithToken(conn.Token),
		controlplane.WithLogger(slog.Default()))
	if err != nil {
		return nil, Connection{}, fmt.Errorf("connect to %s: %w", conn.API, err)
	}
	return client, conn, nil
}
