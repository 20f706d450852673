package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize keystone storage",
		Long:  "Create the configuration directory and config.yaml if missing, then open the store and apply the schema.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	written, err := writeDefaultConfig(configDir)
	if err != nil {
		return sysError("%w", err)
	}
	if written {
		// Pick up the file just written.
		v, err := loadConfig(configDir)
		if err != nil {
			return sysError("%w", err)
		}
		if a.logLevel != "" {
			v.Set(cfgKeyLogLevel, a.logLevel)
		}
		a.config = v
		a.log.Info("config written", zap.String("path", paths.ConfigFile(configDir)))
	}

	backend, err := a.attachBackend()
	if err != nil {
		return err
	}
	defer backend.Detach()

	version, err := backend.SchemaVersion(cmd.Context())
	if err != nil {
		return sysError("read schema version: %w", err)
	}
	if a.jsonMode {
		return printJSON(stdout(cmd), map[string]string{"config_dir": configDir, "schema_version": version})
	}
	fmt.Fprintf(stdout(cmd), "Keystone initialized (schema v%s)\n", version)
	return nil
}
