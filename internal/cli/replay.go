package cli

import (
	"github.com/spf13/cobra"
)

func newReplayCommand(a *app) *cobra.Command {
	var (
		output  string
		withLog bool
	)

	cmd := &cobra.Command{
		Use:   "replay <ops.json>",
		Short: "Rebuild an invoice from an operation file",
		Long: `Replay folds the operations in order and prints the resulting invoice as
JSON. A recorded log (every entry carries a hash) is verified entry by entry
and the command fails on the first hash mismatch.`,
		Example: `  invoicectl replay ops.json
  invoicectl replay ops.json --log -o document.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := buildDocument(a.log, args[0])
			if err != nil {
				return err
			}
			if withLog {
				return writeJSON(cmd, output, doc)
			}
			return writeJSON(cmd, output, doc.State)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&withLog, "log", false, "Include the operation log in the output")
	return cmd
}
