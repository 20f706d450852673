package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/pkg/sqlite"
)

// attachBackend opens the configured store. The caller must defer
// backend.Detach().
func (a *app) attachBackend() (*sqlite.Backend, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, sysError("%w", err)
	}
	backend := sqlite.NewBackend(sqlite.WithLogger(a.log))
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError("attach backend: %w", err)
	}
	a.log.Debug("backend attached", zap.String("backend", cfg.Backend), zap.String("data_dir", cfg.DataDir))
	return backend, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
