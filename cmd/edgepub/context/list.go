package contextcmd

import (
	"fmt"

	"edgepub/cmd/edgepub/ui"
	"edgepub/config"
	"edgepub/internal/controlplane"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available contexts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.Contexts) == 0 {
				fmt.Println(ui.InfoMsg("No contexts configured."))
				return nil
			}

			var rows [][]string
			for _, name := range cfg.Names() {
				c := cfg.Contexts[name]
				current := ""
				if name == cfg.CurrentContext {
					current = "*"
				}
				api := c.API
				if api == "" {
					api = ui.Muted(controlplane.DefaultBaseURL)
				}
				tokenEnv := c.TokenEnv
				if tokenEnv == "" {
					tokenEnv = ui.Muted(config.DefaultTokenEnv)
				}
				rows = append(rows, []string{current, name, api, c.AccountID, tokenEnv})
			}

			fmt.Println(ui.Table([]string{"", "NAME", "API", "ACCOUNT", "TOKEN ENV"}, rows))
			return nil
		},
	}
}
