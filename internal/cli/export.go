package cli

import (
	"fmt"
	"os"

	"github.com/smallbiznis/invoicedoc/internal/invoice/ubl"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		output  string
		pdfPath string
	)

	cmd := &cobra.Command{
		Use:   "export <ops.json>",
		Short: "Export an invoice as UBL 2.1 XML",
		Example: `  invoicectl export ops.json -o invoice.xml
  invoicectl export ops.json --pdf invoice.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := buildDocument(a.log, args[0])
			if err != nil {
				return err
			}

			opts := []ubl.Option{ubl.WithLogger(a.log)}
			if pdfPath != "" {
				pdf, err := os.ReadFile(pdfPath)
				if err != nil {
					return fmt.Errorf("read pdf: %w", err)
				}
				opts = append(opts, ubl.WithPDF(pdf))
			}

			xml, err := ubl.Export(doc.State, opts...)
			if err != nil {
				return err
			}
			a.log.Debug("invoice exported",
				zap.String("invoice_no", doc.State.InvoiceNo),
				zap.Int("line_items", len(doc.State.LineItems)),
			)
			return writeOutput(cmd, output, []byte(xml))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Embed this PDF as the invoice attachment")
	return cmd
}
