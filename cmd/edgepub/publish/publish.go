package publishcmd

import (
	"fmt"
	"strings"

	"edgepub/cmd/edgepub/cmdutil"
	"edgepub/cmd/edgepub/ui"
	"edgepub/internal/durable"
	"edgepub/internal/manifest"
	"edgepub/internal/publish"

	"github.com/spf13/cobra"
)

func Cmd(target *cmdutil.Target) *cobra.Command {
	var (
		dryRun      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "publish [manifest...]",
		Short: "Publish scripts and their durable object namespaces",
		Long: "Publish one or more scripts described by edgepub.toml manifests. Namespaces a\n" +
			"script both implements and binds are created as placeholders before upload\n" +
			"and attached to the script afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{manifest.DefaultFile}
			}
			projects := make([]publish.Project, 0, len(args))
			for _, path := range args {
				proj, err := publish.LoadProject(path)
				if err != nil {
					return err
				}
				projects = append(projects, proj)
			}

			client, conn, err := target.Client()
			if err != nil {
				return err
			}

			if dryRun {
				p := publish.New(client, publish.Options{})
				for _, proj := range projects {
					preview, err := p.Plan(cmd.Context(), proj)
					if err != nil {
						return err
					}
					printPreview(preview)
				}
				return nil
			}

			out := ui.NewTelemetryOutput()
			p := publish.New(client, publish.Options{
				Tracer:      out.Tracer("edgepub/publish"),
				Concurrency: concurrency,
			})
			results, err := p.PublishAll(cmd.Context(), projects)
			out.Close()
			if err != nil {
				return err
			}

			for _, res := range results {
				printResults(res, conn.API)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned namespace changes without publishing")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum scripts published at once")
	return cmd
}

func printResults(res publish.Results, api string) {
	fmt.Println(ui.SuccessMsg("Published %s", ui.Bold(res.ScriptName)))
	pairs := []ui.Pair{ui.KV("api", api)}
	if len(res.URLs) > 0 {
		pairs = append(pairs, ui.KV("urls", strings.Join(res.URLs, ", ")))
	}
	if len(res.Schedules) > 0 {
		pairs = append(pairs, ui.KV("schedules", strings.Join(res.Schedules, ", ")))
	}
	if len(res.Placeholders) > 0 {
		pairs = append(pairs, ui.KV("placeholders", strings.Join(res.Placeholders, ", ")))
	}
	fmt.Print(ui.KeyValues("  ", pairs...))

	if len(res.DurableObjectNamespaces) == 0 {
		return
	}
	rows := make([][]string, 0, len(res.DurableObjectNamespaces))
	for _, ns := range res.DurableObjectNamespaces {
		rows = append(rows, []string{ns.Name, ns.ID, ns.Class})
	}
	fmt.Println(ui.Table([]string{"NAMESPACE", "ID", "CLASS"}, rows))
}

func printPreview(preview publish.Preview) {
	fmt.Println(ui.InfoMsg("Dry run for %s", ui.Bold(preview.ScriptName)))
	if len(preview.Placeholders) > 0 {
		fmt.Print(ui.KeyValues("  ", ui.KV("placeholders", strings.Join(preview.Placeholders, ", "))))
	}

	if len(preview.Bindings) > 0 {
		rows := make([][]string, 0, len(preview.Bindings))
		for _, b := range preview.Bindings {
			rows = append(rows, []string{b.Binding, b.NamespaceName, b.NamespaceID})
		}
		fmt.Println(ui.Table([]string{"BINDING", "NAMESPACE", "ID"}, rows))
	}

	if len(preview.Finalize.Entries) == 0 {
		return
	}
	rows := make([][]string, 0, len(preview.Finalize.Entries))
	for _, e := range preview.Finalize.Entries {
		action := e.Action.String()
		if e.Action == durable.ActionNone {
			action = ui.Muted(action)
		}
		rows = append(rows, []string{e.NamespaceName, e.ClassName, action, e.Reason.String()})
	}
	fmt.Println(ui.Table([]string{"NAMESPACE", "CLASS", "ACTION", "REASON"}, rows))
}
