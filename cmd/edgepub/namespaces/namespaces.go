package namespacescmd

import (
	"errors"
	"fmt"
	"strings"

	"edgepub/cmd/edgepub/cmdutil"
	"edgepub/cmd/edgepub/ui"

	"github.com/spf13/cobra"
)

// Cmd returns the parent "edgepub namespaces" command.
func Cmd(target *cmdutil.Target) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespaces",
		Aliases: []string{"ns"},
		Short:   "Inspect durable object namespaces",
	}
	cmd.AddCommand(listCmd(target))
	return cmd
}

func listCmd(target *cmdutil.Target) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List durable object namespaces of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, conn, err := target.Client()
			if err != nil {
				return err
			}
			account := strings.TrimSpace(accountID)
			if account == "" {
				account = conn.AccountID
			}
			if account == "" {
				return errors.New("no account: pass --account or set account_id on the context")
			}

			records, err := client.ListNamespaces(cmd.Context(), account)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(ui.InfoMsg("No namespaces in account %s.", ui.Bold(account)))
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				script, class := rec.Script, rec.Class
				if rec.IsPlaceholder() {
					script = ui.Warn("placeholder")
				}
				rows = append(rows, []string{rec.Name, rec.ID, script, class})
			}
			fmt.Println(ui.Table([]string{"NAME", "ID", "SCRIPT", "CLASS"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID (defaults to the context's account)")
	return cmd
}
