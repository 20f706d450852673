package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/keystone/internal/paths"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeyDSN       = "dsn"
	cfgKeyLog       = "log"
	cfgKeyLogLevel  = "log.level"
	defaultBackend  = types.BackendSQLite
	configEnvPrefix = "KEYSTONE"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Keystone configuration

# Backend selection: sqlite or postgres
backend: sqlite

# Data directory for sqlite (optional; overridable by --data-dir)
# data_dir:

# Connection string for postgres
# dsn: postgres://keystone@localhost/keystone?sslmode=disable

# Entity payload codec: json or msgpack
payload_codec: json

# Link types stored as unordered pairs
symmetric_link_types:
  - friend

# Extra entity variants and dependent kinds
# variants_file: variants.yaml

log:
  level: info
  format: console
  output: stderr
`

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; defaults and KEYSTONE_* environment variables still apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyDSN, "")
	v.SetDefault("max_writers", 0)
	v.SetDefault("isolation", types.IsolationDefault)
	v.SetDefault("payload_codec", types.CodecJSON)
	v.SetDefault("symmetric_link_types", []string{})
	v.SetDefault("variants_file", "")
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetEnvPrefix(configEnvPrefix)
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// writeDefaultConfig creates configDir and a default config.yaml if the
// file does not exist yet. It reports whether a file was written.
func writeDefaultConfig(configDir string) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}

// storeConfig builds the backend config from the loaded settings. The data
// directory follows --data-dir > config.yaml > KEYSTONE_DATA_DIR > default.
func (a *app) storeConfig() (types.Config, error) {
	var cfg types.Config
	if err := a.config.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Backend == types.BackendSQLite {
		fromFile := ""
		if a.config.InConfig(cfgKeyDataDir) {
			fromFile = a.config.GetString(cfgKeyDataDir)
		}
		dataDir, err := paths.ResolveDataDir(a.dataDir, fromFile)
		if err != nil {
			return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dataDir
	}
	return cfg, cfg.Validate()
}
