package types

import "errors"

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// DataDir holds the SQLite database file (sqlite backend).
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// DSN is the connection string for the postgres backend.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`

	// MaxWriters caps concurrent write connections. Zero means one writer
	// for sqlite and the driver default for postgres.
	MaxWriters int `json:"max_writers" yaml:"max_writers" mapstructure:"max_writers"`

	// Isolation selects the transaction isolation of each unit of work.
	Isolation string `json:"isolation" yaml:"isolation" mapstructure:"isolation"`

	// PayloadCodec encodes polymorphic entity payloads: json or msgpack.
	PayloadCodec string `json:"payload_codec" yaml:"payload_codec" mapstructure:"payload_codec"`

	// SymmetricLinkTypes lists link types stored as unordered pairs.
	SymmetricLinkTypes []string `json:"symmetric_link_types" yaml:"symmetric_link_types" mapstructure:"symmetric_link_types"`

	// VariantsFile optionally points at a YAML file of extra variant schemas.
	VariantsFile string `json:"variants_file" yaml:"variants_file" mapstructure:"variants_file"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Isolation levels a unit of work may request.
const (
	IsolationDefault       = ""
	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

// Payload codecs.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Config validation errors.
var (
	ErrBackendEmpty      = errors.New("backend must not be empty")
	ErrBackendUnknown    = errors.New("unknown backend")
	ErrDSNEmpty          = errors.New("dsn must not be empty for postgres")
	ErrIsolationUnknown  = errors.New("unknown isolation level")
	ErrCodecUnknown      = errors.New("unknown payload codec")
	ErrMaxWritersInvalid = errors.New("max writers must not be negative")
)

var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend == BackendPostgres && c.DSN == "" {
		return ErrDSNEmpty
	}
	switch c.Isolation {
	case IsolationDefault, IsolationReadCommitted, IsolationSerializable:
	default:
		return ErrIsolationUnknown
	}
	switch c.PayloadCodec {
	case "", CodecJSON, CodecMsgpack:
	default:
		return ErrCodecUnknown
	}
	if c.MaxWriters < 0 {
		return ErrMaxWritersInvalid
	}
	return nil
}

// Codec returns the configured payload codec, defaulting to json.
func (c Config) Codec() string {
	if c.PayloadCodec == "" {
		return CodecJSON
	}
	return c.PayloadCodec
}
