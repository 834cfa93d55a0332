package cli

import (
	"os"

	"github.com/smallbiznis/invoicedoc/internal/invoice/ubl"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		output string
		pdfOut string
	)

	cmd := &cobra.Command{
		Use:   "import <invoice.xml|->",
		Short: "Convert a UBL invoice into an operation file",
		Long: `Import reads a UBL 2.1 Invoice and prints the actions that rebuild it,
in the same order an editor would dispatch them. Pass - to read from stdin.`,
		Example: `  invoicectl import invoice.xml -o ops.json
  invoicectl import invoice.xml --pdf-out attachment.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			imported, err := ubl.Import(src)
			if err != nil {
				return err
			}
			a.log.Debug("ubl imported",
				zap.Int("actions", len(imported.Actions)),
				zap.Int("pdf_bytes", len(imported.PDF)),
			)

			if pdfOut != "" {
				if len(imported.PDF) == 0 {
					a.log.Warn("document has no embedded pdf", zap.String("file", args[0]))
				} else if err := os.WriteFile(pdfOut, imported.PDF, 0o644); err != nil {
					return err
				}
			}

			raw, err := encodeActions(imported.Actions)
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, raw)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the operation file here instead of stdout")
	cmd.Flags().StringVar(&pdfOut, "pdf-out", "", "Save the embedded PDF attachment to this file")
	return cmd
}
