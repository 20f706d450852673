// Package sqlite implements the Keystone store on SQLite, with PostgreSQL as
// an alternate dialect. A Backend owns a writer pool, used by units of work,
// and a separate reader handle, used by derived views, so views observe only
// committed state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/keystone/internal/integrity"
	"github.com/mesh-intelligence/keystone/internal/registry"
	"github.com/mesh-intelligence/keystone/pkg/types"
)

// DatabaseFile is the SQLite file created under DataDir.
const DatabaseFile = "keystone.db"

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Backend implements types.Store.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dialect  dialect
	storeKey string
	db       *sql.DB // writer pool
	reader   *sql.DB // committed-state reads

	log        *zap.Logger
	variants   *registry.Registry
	dependents *registry.Registry
	checker    *integrity.Checker
	symmetric  map[string]bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithVariants replaces the entity variant registry (default: the built-in
// personal and corporate variants).
func WithVariants(r *registry.Registry) Option {
	return func(b *Backend) { b.variants = r }
}

// WithDependentKinds replaces the dependent kind registry (default: the
// built-in address kind).
func WithDependentKinds(r *registry.Registry) Option {
	return func(b *Backend) { b.dependents = r }
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		log:     zap.NewNop(),
		checker: integrity.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.variants == nil {
		b.variants = registry.Builtin()
	}
	if b.dependents == nil {
		b.dependents = registry.BuiltinDependents()
	}
	return b
}

// Variants returns the entity variant registry.
func (b *Backend) Variants() *registry.Registry { return b.variants }

// DependentKinds returns the dependent kind registry.
func (b *Backend) DependentKinds() *registry.Registry { return b.dependents }

// Attach opens the store named by config, applies the schema, and loads the
// variants file if one is configured. Existing data is kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := b.loadVariantsFile(config); err != nil {
		return err
	}

	d := dialectFor(config.Backend)
	writerDSN, readerDSN, err := dsnFor(config)
	if err != nil {
		return err
	}

	db, err := sql.Open(d.driver, writerDSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	reader, err := sql.Open(d.driver, readerDSN)
	if err != nil {
		db.Close()
		return fmt.Errorf("opening reader: %w", err)
	}

	switch {
	case config.MaxWriters > 0:
		db.SetMaxOpenConns(config.MaxWriters)
	case d.name == types.BackendSQLite:
		db.SetMaxOpenConns(1)
	}

	if err := b.attachLocked(db, reader, d, config, writerDSN); err != nil {
		reader.Close()
		db.Close()
		return err
	}
	return nil
}

// AttachDB attaches to an already opened database, used as both writer and
// reader. The dialect is taken from config.Backend.
func (b *Backend) AttachDB(db *sql.DB, config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if config.Backend == "" {
		config.Backend = types.BackendSQLite
	}
	if err := b.loadVariantsFile(config); err != nil {
		return err
	}
	return b.attachLocked(db, db, dialectFor(config.Backend), config, fmt.Sprintf("db:%p", db))
}

func (b *Backend) attachLocked(db, reader *sql.DB, d dialect, config types.Config, storeKey string) error {
	if _, err := db.Exec(schemaScript(d)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	b.db = db
	b.reader = reader
	b.dialect = d
	b.config = config
	b.storeKey = storeKey
	b.symmetric = make(map[string]bool, len(config.SymmetricLinkTypes))
	for _, lt := range config.SymmetricLinkTypes {
		b.symmetric[lt] = true
	}
	b.attached = true

	b.log.Info("store attached",
		zap.String("backend", d.name),
		zap.String("codec", config.Codec()),
		zap.Int("max_writers", config.MaxWriters),
	)
	return nil
}

func (b *Backend) loadVariantsFile(config types.Config) error {
	if config.VariantsFile == "" {
		return nil
	}
	f, err := registry.LoadFile(config.VariantsFile)
	if err != nil {
		return err
	}
	return f.Apply(b.variants, b.dependents)
}

// dsnFor returns the writer and reader connection strings. For SQLite the
// reader is opened query_only against the same file.
func dsnFor(config types.Config) (string, string, error) {
	if config.Backend == types.BackendPostgres {
		return config.DSN, config.DSN, nil
	}

	path := config.DSN
	if path == "" {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return "", "", fmt.Errorf("creating data dir: %w", err)
		}
		path = filepath.Join(dataDir, DatabaseFile)
	}

	writer := "file:" + path + "?" + sqlitePragmas
	reader := writer + "&_pragma=query_only(1)"
	return writer, reader, nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrBackendDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	var firstErr error
	if b.reader != nil && b.reader != b.db {
		if err := b.reader.Close(); err != nil {
			firstErr = err
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.db = nil
	b.reader = nil
	b.attached = false
	b.log.Info("store detached")
	return firstErr
}

// Begin starts a unit of work. The returned unit must end with Commit or
// Rollback; Rollback after Commit is a no-op, so it is safe to defer.
//
// ctx bounds the whole unit, Commit's re-verification included. Cancelling
// it rolls the unit back and makes a later Commit fail.
func (b *Backend) Begin(ctx context.Context) (*UnitOfWork, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	var opts *sql.TxOptions
	if b.dialect.name == types.BackendPostgres {
		switch b.config.Isolation {
		case types.IsolationReadCommitted:
			opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
		case types.IsolationSerializable:
			opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
		}
	}

	tx, err := b.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, integrity.Classify(fmt.Errorf("beginning unit of work: %w", err))
	}
	return newUnitOfWork(ctx, b, tx), nil
}

// Do runs fn inside a unit of work, committing when fn returns nil and
// rolling back otherwise.
func (b *Backend) Do(ctx context.Context, fn func(types.UnitOfWork) error) error {
	uow, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

// Views returns the derived view resolver.
func (b *Backend) Views() types.Views {
	return &viewResolver{b: b}
}

// ReadPrimary returns the primary dependent of a principal.
func (b *Backend) ReadPrimary(ctx context.Context, ownerID string) (*types.DependentRecord, error) {
	return b.Views().PrimaryOf(ctx, types.PrincipalOwner(ownerID))
}

// ReadMainProfile returns the main profile membership of a customer, with
// the profile entity hydrated.
func (b *Backend) ReadMainProfile(ctx context.Context, customerID string) (*types.MembershipRecord, error) {
	return b.Views().MainProfileOf(ctx, customerID)
}

// SchemaVersion returns the layout version recorded in the store.
func (b *Backend) SchemaVersion(ctx context.Context) (string, error) {
	r, err := b.readerDB()
	if err != nil {
		return "", err
	}
	var v string
	err = r.QueryRowContext(ctx, b.dialect.rebind("SELECT meta_value FROM schema_meta WHERE meta_key = ?"), "schema_version").Scan(&v)
	if err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func (b *Backend) readerDB() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}
	return b.reader, nil
}

func (b *Backend) isSymmetric(linkType string) bool {
	return b.symmetric[linkType]
}

// generateUUID generates a new UUID v7 for entity IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

var _ types.Store = (*Backend)(nil)
