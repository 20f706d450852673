// Package cli implements the keystone operator command line: schema setup,
// integrity audits, variant listing and JSONL snapshots.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/internal/logger"
	"github.com/mesh-intelligence/keystone/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// app holds global flag values and the state loaded before each command.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string

	config *viper.Viper
	log    *zap.Logger
}

// NewRootCmd creates the top-level "keystone" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "keystone",
		Short: "Operator tooling for the Keystone entity store",
		Long: "Keystone manages principals, polymorphic entities, ordered dependents\n" +
			"and links under enforced integrity rules. This command initializes\n" +
			"stores, audits them and moves snapshots in and out.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newAuditCmd(a))
	root.AddCommand(newVariantsCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newImportCmd(a))

	return root
}

// load resolves the config directory, reads config.yaml and builds the
// logger before any subcommand runs.
func (a *app) load(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return sysError("%w", err)
	}
	if a.logLevel != "" {
		v.Set(cfgKeyLogLevel, a.logLevel)
	}

	logCfg := logger.DefaultConfig()
	if err := v.UnmarshalKey(cfgKeyLog, &logCfg); err != nil {
		return sysError("read log config: %w", err)
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return sysError("create logger: %w", err)
	}

	a.config = v
	a.log = log.With(zap.String("command", cmd.Name()))
	a.log.Debug("config loaded", zap.String("config_dir", configDir), zap.String("file", v.ConfigFileUsed()))
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:])
}

func run(root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
