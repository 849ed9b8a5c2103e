package commands

import (
	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/buildinfo"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	root string
}

func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	return openApp(o.root, cmd.OutOrStdout())
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:     "settleloop",
		Short:   "Shared expenses, balances and settlements for a household",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.root, "root", ".", "ledger directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newMissionCommand(opts),
		newMemberCommand(opts),
		newExpenseCommand(opts),
		newBalancesCommand(opts),
		newSettleCommand(opts),
		newRuleCommand(opts),
		newPackCommand(opts),
		newScanCommand(opts),
		newBillsCommand(opts),
		newRemindCommand(opts),
	)
	return rootCmd
}
