package main

import (
	"fmt"
	"os"

	"edgepub/cmd/edgepub/cmdutil"
	contextcmd "edgepub/cmd/edgepub/context"
	devcmd "edgepub/cmd/edgepub/dev"
	namespacescmd "edgepub/cmd/edgepub/namespaces"
	publishcmd "edgepub/cmd/edgepub/publish"
	"edgepub/cmd/edgepub/ui"
	"edgepub/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var (
		debug         bool
		noInteraction bool
		target        cmdutil.Target
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "edgepub",
		Short:         "Publish edge scripts with durable object namespaces",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Disable colors, redraws and prompts")
	target.Bind(root)

	root.AddCommand(publishcmd.Cmd(&target))
	root.AddCommand(namespacescmd.Cmd(&target))
	root.AddCommand(contextcmd.Cmd())
	root.AddCommand(devcmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
