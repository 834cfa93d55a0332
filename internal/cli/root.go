package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "0.1.0"

type app struct {
	verbose bool
	log     *zap.Logger
}

// NewRootCommand builds the invoicectl command tree.
func NewRootCommand() *cobra.Command {
	a := &app{log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Work with action-sourced invoice documents offline",
		Long: `invoicectl replays invoice operation logs, converts them to and from
UBL 2.1 XML, imports line items from spreadsheets and checks whether an
invoice is ready for a status change.

An operation file is a JSON array of {"type": ..., "input": {...}} entries,
optionally carrying the index, timestamp and hash of a stored log.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(a.verbose)
			if err != nil {
				return err
			}
			a.log = log.Named("invoicectl").With(zap.String("command", cmd.Name()))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newReplayCommand(a),
		newExportCommand(a),
		newImportCommand(a),
		newValidateCommand(a),
		newLinesCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
