package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/smallbiznis/invoicedoc/internal/invoice/domain"
	"github.com/smallbiznis/invoicedoc/internal/invoice/reducer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func readOperations(path string) ([]domain.Operation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ops []domain.Operation
	if err := json.Unmarshal(b, &ops); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ops, nil
}

// buildDocument replays a stored log when every entry carries a hash and
// otherwise applies the entries as fresh actions.
func buildDocument(log *zap.Logger, path string) (domain.Document, error) {
	ops, err := readOperations(path)
	if err != nil {
		return domain.Document{}, err
	}
	r := reducer.New(reducer.WithLogger(log))

	if recorded(ops) {
		log.Debug("replaying recorded log", zap.Int("operations", len(ops)))
		return r.Replay(ops)
	}

	actions := make([]domain.Action, 0, len(ops))
	for i, op := range ops {
		action, err := op.Action()
		if err != nil {
			return domain.Document{}, fmt.Errorf("entry %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	log.Debug("applying actions", zap.Int("actions", len(actions)))
	return r.ApplyAll(domain.NewDocument(), actions)
}

func recorded(ops []domain.Operation) bool {
	if len(ops) == 0 {
		return false
	}
	for _, op := range ops {
		if op.Hash == "" {
			return false
		}
	}
	return true
}

func encodeActions(actions []domain.Action) ([]domain.RawAction, error) {
	out := make([]domain.RawAction, 0, len(actions))
	for _, action := range actions {
		raw, err := action.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

// writeJSON writes v indented to path, or to the command output when path is empty.
func writeJSON(cmd *cobra.Command, path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(cmd, path, append(b, '\n'))
}

func writeOutput(cmd *cobra.Command, path string, b []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}
