package devcmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"edgepub/cmd/edgepub/ui"
	"edgepub/internal/controlplane"
	"edgepub/internal/devplane"
	"edgepub/internal/publish"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func Cmd() *cobra.Command {
	var (
		listen    string
		dbPath    string
		token     string
		accountID string
		subdomain string
	)

	cmd := &cobra.Command{
		Use:   "dev [manifest...]",
		Short: "Run a local control plane, optionally publishing manifests to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := devplane.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if subdomain != "" {
				if err := store.SetSubdomain(ctx, accountID, subdomain); err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}
			api := "http://" + ln.Addr().String() + devplane.DefaultBasePath
			srv := devplane.NewServer(store, devplane.Options{Token: token, Logger: slog.Default()})

			fmt.Fprintln(os.Stderr, ui.InfoMsg("control plane listening on %s", ui.Bold(api)))
			fmt.Fprintln(os.Stderr, ui.InfoMsg("metrics on http://%s/metrics", ln.Addr()))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve(gctx, ln)
			})
			if len(args) > 0 {
				g.Go(func() error {
					return publishManifests(gctx, api, token, args)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8787", "Address to serve the control plane API on")
	cmd.Flags().StringVar(&dbPath, "db", filepath.Join(".edgepub", "devplane.db"), "SQLite database path")
	cmd.Flags().StringVar(&token, "token", "", "Require this bearer token on API requests")
	cmd.Flags().StringVar(&accountID, "account", "dev", "Account to register --subdomain for")
	cmd.Flags().StringVar(&subdomain, "subdomain", "dev", "workers.dev subdomain of --account")
	return cmd
}

func publishManifests(ctx context.Context, api, token string, paths []string) error {
	client, err := controlplane.NewClient(api, controlplane.WithToken(token))
	if err != nil {
		return err
	}
	projects := make([]publish.Project, 0, len(paths))
	for _, path := range paths {
		proj, err := publish.LoadProject(path)
		if err != nil {
			return err
		}
		projects = append(projects, proj)
	}

	out := ui.NewTelemetryOutput()
	defer out.Close()
	p := publish.New(client, publish.Options{Tracer: out.Tracer("edgepub/dev")})
	results, err := p.PublishAll(ctx, projects)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintln(os.Stderr, ui.SuccessMsg("published %s to the local control plane", ui.Bold(res.ScriptName)))
	}
	return nil
}
