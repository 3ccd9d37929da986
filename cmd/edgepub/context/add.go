package contextcmd

import (
	"fmt"
	"strings"

	"edgepub/cmd/edgepub/ui"
	"edgepub/config"

	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var (
		api, accountID, tokenEnv string
		use                      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			if strings.TrimSpace(api) == "" && strings.TrimSpace(accountID) == "" {
				return fmt.Errorf("at least one of --api or --account is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.Set(name, config.Context{
				API:       strings.TrimSpace(api),
				AccountID: strings.TrimSpace(accountID),
				TokenEnv:  strings.TrimSpace(tokenEnv),
			})
			if use || cfg.CurrentContext == "" {
				cfg.CurrentContext = name
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Context %s saved.", ui.Bold(name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&api, "api", "", "Control plane API URL")
	cmd.Flags().StringVar(&accountID, "account", "", "Default account ID")
	cmd.Flags().StringVar(&tokenEnv, "token-env", "", "Environment variable holding the API token (default "+config.DefaultTokenEnv+")")
	cmd.Flags().BoolVar(&use, "use", false, "Make this the current context")
	return cmd
}
