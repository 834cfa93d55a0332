package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicedoc/internal/config"
	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/statusrule"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errBlocked = errors.New("status change blocked")

type validateReport struct {
	From    domain.Status       `json:"from"`
	To      domain.Status       `json:"to"`
	Results []statusrule.Result `json:"results"`
	Blocked bool                `json:"blocked"`
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		to        string
		rulesFile string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <ops.json>",
		Short: "Check whether an invoice may move to a status",
		Long: `Validate rebuilds the invoice and runs the rules registered for the
target status. The command exits non-zero when any error, or any warning
unless blockOnWarning is disabled in the rules file, fails.`,
		Example: `  invoicectl validate ops.json --to ISSUED
  invoicectl validate ops.json --to PAYMENTSCHEDULED --rules rules.yml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := domain.Status(strings.ToUpper(strings.TrimSpace(to)))
			if !target.Valid() {
				return fmt.Errorf("%w: %q", domain.ErrInvalidTransition, to)
			}

			rules := config.DefaultRulesConfig()
			if rulesFile != "" {
				holder, err := config.NewRulesHolder(config.Config{RulesFile: rulesFile}, a.log)
				if err != nil {
					return err
				}
				rules = holder.Get()
			}

			doc, err := buildDocument(a.log, args[0])
			if err != nil {
				return err
			}

			engine := statusrule.NewEngine(statusrule.DefaultRules(statusrule.Options{
				IBANCurrencies:   rules.IBANCurrencies,
				FiatCurrencies:   rules.FiatCurrencies,
				CryptoCurrencies: rules.CryptoCurrencies,
			}))
			results := engine.ValidateAll(doc.State, target)
			if results == nil {
				results = []statusrule.Result{}
			}
			report := validateReport{
				From:    doc.State.Status,
				To:      target,
				Results: results,
				Blocked: len(statusrule.Blocking(results, rules.BlockOnWarning)) > 0,
			}
			a.log.Debug("transition validated",
				zap.String("from", string(report.From)),
				zap.String("to", string(report.To)),
				zap.Int("rules", len(results)),
				zap.Bool("blocked", report.Blocked),
			)

			if asJSON {
				if err := writeJSON(cmd, "", report); err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			if report.Blocked {
				return fmt.Errorf("%w: %s -> %s", errBlocked, report.From, report.To)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Target status")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rules file (yaml, json or toml)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printReport(cmd *cobra.Command, report validateReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s\n", report.From, report.To)
	if len(report.Results) == 0 {
		fmt.Fprintln(out, "no rules apply")
		return
	}
	for _, res := range report.Results {
		if res.IsValid {
			fmt.Fprintf(out, "  ok    %s\n", res.Field)
			continue
		}
		fmt.Fprintf(out, "  %-5s %s: %s\n", strings.ToLower(string(res.Severity)), res.Field, res.Message)
	}
}
