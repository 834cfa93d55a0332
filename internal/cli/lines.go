package cli

import (
	"github.com/smallbiznis/invoicedoc/internal/invoice/sheet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLinesCommand(a *app) *cobra.Command {
	var (
		output string
		opts   sheet.Options
	)

	cmd := &cobra.Command{
		Use:   "lines <sheet.xlsx>",
		Short: "Turn spreadsheet rows into ADD_LINE_ITEM actions",
		Long: `Lines reads a workbook whose header row names the description, quantity,
tax percent and unit price excl. tax columns, and prints one ADD_LINE_ITEM
action per row.`,
		Example: `  invoicectl lines items.xlsx --currency EUR -o lines.json
  invoicectl lines items.xlsx --sheet "March"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := sheet.ReadLineItemsFile(args[0], opts)
			if err != nil {
				return err
			}
			a.log.Debug("line items read", zap.String("file", args[0]), zap.Int("rows", len(actions)))

			raw, err := encodeActions(actions)
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, raw)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the operation file here instead of stdout")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "Sheet name, defaults to the first sheet")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "Currency for rows without a currency cell")
	return cmd
}
