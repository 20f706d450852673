package sqlite

import "strings"

// SchemaVersion is the layout version recorded in schema_meta.
const SchemaVersion = "1"

// Table DDL. {{blob}} is replaced with the dialect's binary column type.
const (
	createPrincipals = `CREATE TABLE IF NOT EXISTS principals (
    principal_id TEXT PRIMARY KEY,
    public_id TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL CHECK (kind IN ('user', 'customer')),
    customer_type TEXT,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createEntities = `CREATE TABLE IF NOT EXISTS entities (
    entity_id TEXT PRIMARY KEY,
    discriminator TEXT NOT NULL,
    codec TEXT NOT NULL,
    payload {{blob}} NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createDependents = `CREATE TABLE IF NOT EXISTS dependents (
    dependent_id TEXT PRIMARY KEY,
    owner_kind TEXT NOT NULL CHECK (owner_kind IN ('principal', 'entity')),
    owner_id TEXT NOT NULL,
    sequence INTEGER NOT NULL CHECK (sequence >= 1),
    kind TEXT NOT NULL,
    attributes TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (owner_kind, owner_id, sequence)
);`

	createMemberships = `CREATE TABLE IF NOT EXISTS memberships (
    membership_id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL REFERENCES principals(principal_id),
    entity_id TEXT NOT NULL REFERENCES entities(entity_id),
    role TEXT NOT NULL CHECK (role IN ('main', 'sub')),
    is_main INTEGER NOT NULL DEFAULT 0 CHECK (is_main IN (0, 1)),
    sequence INTEGER NOT NULL CHECK (sequence >= 1),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (owner_id, entity_id)
);`

	createLinks = `CREATE TABLE IF NOT EXISTS links (
    link_id TEXT PRIMARY KEY,
    link_type TEXT NOT NULL,
    left_id TEXT NOT NULL REFERENCES principals(principal_id),
    right_id TEXT NOT NULL REFERENCES principals(principal_id),
    created_at TEXT NOT NULL,
    UNIQUE (link_type, left_id, right_id)
);`

	createSchemaMeta = `CREATE TABLE IF NOT EXISTS schema_meta (
    meta_key TEXT PRIMARY KEY,
    meta_value TEXT NOT NULL
);`
)

// Index DDL.
const (
	idxMembershipsMain   = `CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_main ON memberships(owner_id, role) WHERE is_main = 1;`
	idxMembershipsEntity = `CREATE INDEX IF NOT EXISTS idx_memberships_entity ON memberships(entity_id);`
	idxDependentsKind    = `CREATE INDEX IF NOT EXISTS idx_dependents_kind ON dependents(kind);`
	idxLinksRight        = `CREATE INDEX IF NOT EXISTS idx_links_right ON links(right_id, link_type);`
	idxLinksLeft         = `CREATE INDEX IF NOT EXISTS idx_links_left ON links(left_id, link_type);`
)

const seedSchemaMeta = `INSERT INTO schema_meta (meta_key, meta_value)
SELECT 'schema_version', '` + SchemaVersion + `'
WHERE NOT EXISTS (SELECT 1 FROM schema_meta WHERE meta_key = 'schema_version');`

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createPrincipals,
	createEntities,
	createDependents,
	createMemberships,
	createLinks,
	createSchemaMeta,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxMembershipsMain,
	idxMembershipsEntity,
	idxDependentsKind,
	idxLinksRight,
	idxLinksLeft,
}

// schemaScript returns the full DDL script for d, applied as one Exec.
func schemaScript(d dialect) string {
	stmts := make([]string, 0, len(schemaDDL)+len(indexDDL)+1)
	stmts = append(stmts, schemaDDL...)
	stmts = append(stmts, indexDDL...)
	stmts = append(stmts, seedSchemaMeta)
	return strings.ReplaceAll(strings.Join(stmts, "\n\n")+"\n", "{{blob}}", d.blobType)
}
