package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// snapshotFile maps one table to its JSONL file. Files are listed in
// dependency order: a record only references records of earlier files.
type snapshotFile struct {
	table  string
	file   string
	export func(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error)
	load   func(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error
}

var snapshotFiles = []snapshotFile{
	{table: "principals", file: "principals.jsonl", export: exportPrincipals, load: loadPrincipal},
	{table: "entities", file: "entities.jsonl", export: exportEntities, load: loadEntity},
	{table: "dependents", file: "dependents.jsonl", export: exportDependents, load: loadDependent},
	{table: "memberships", file: "memberships.jsonl", export: exportMemberships, load: loadMembership},
	{table: "links", file: "links.jsonl", export: exportLinks, load: loadLink},
}

// Export writes committed state to one JSONL file per table under dir and
// returns the record count per table.
func (b *Backend) Export(ctx context.Context, dir string) (map[string]int, error) {
	r, err := b.readerDB()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	counts := make(map[string]int, len(snapshotFiles))
	for _, f := range snapshotFiles {
		records, err := f.export(ctx, b, r)
		if err != nil {
			return nil, fmt.Errorf("exporting %s: %w", f.table, err)
		}
		if err := writeJSONL(filepath.Join(dir, f.file), records); err != nil {
			return nil, fmt.Errorf("writing %s: %w", f.file, err)
		}
		counts[f.table] = len(records)
	}
	b.log.Info("snapshot exported", zap.String("dir", dir), zap.Any("counts", counts))
	return counts, nil
}

// Import loads a snapshot written by Export in one unit of work. Every
// record passes the same checks as a live write, so a snapshot that breaks
// a constraint is rejected whole. Missing files are treated as empty; a
// malformed line rejects the import.
func (b *Backend) Import(ctx context.Context, dir string) (map[string]int, error) {
	u, err := b.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback()

	counts := make(map[string]int, len(snapshotFiles))
	for _, f := range snapshotFiles {
		records, err := readJSONL(filepath.Join(dir, f.file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if err := f.load(ctx, u, rec.data); err != nil {
				return nil, fmt.Errorf("importing %s line %d: %w", f.file, rec.line, err)
			}
		}
		counts[f.table] = len(records)
	}
	if err := u.Commit(); err != nil {
		return nil, err
	}
	b.log.Info("snapshot imported", zap.String("dir", dir), zap.Any("counts", counts))
	return counts, nil
}

func exportRows[T any](ctx context.Context, r *sql.DB, b *Backend, query string, scan func(rowScanner) (T, error)) ([]json.RawMessage, error) {
	rows, err := r.QueryContext(ctx, b.dialect.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []json.RawMessage{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		records = append(records, data)
	}
	return records, rows.Err()
}

func exportPrincipals(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error) {
	return exportRows(ctx, r, b,
		`SELECT `+principalColumns+` FROM principals ORDER BY created_at, principal_id`,
		scanPrincipal)
}

func exportEntities(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error) {
	return exportRows(ctx, r, b,
		`SELECT `+entityColumns+` FROM entities ORDER BY created_at, entity_id`,
		func(row rowScanner) (*types.PolymorphicEntity, error) {
			e, err := scanEntity(row, b.variants)
			if err != nil {
				return nil, err
			}
			out := e.PolymorphicEntity
			out.Fields = b.variants.Encode(e)
			return &out, nil
		})
}

func exportDependents(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error) {
	return exportRows(ctx, r, b,
		`SELECT `+dependentColumns+` FROM dependents ORDER BY owner_kind, owner_id, sequence`,
		func(row rowScanner) (*types.DependentRecord, error) {
			d, err := scanDependent(row, b.dependents)
			if err != nil {
				return nil, err
			}
			d.Attributes = b.dependents.Encode(&types.TypedEntity{PolymorphicEntity: types.PolymorphicEntity{Fields: d.Attributes}})
			return d, nil
		})
}

func exportMemberships(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error) {
	return exportRows(ctx, r, b,
		`SELECT `+membershipColumns+` FROM memberships ORDER BY owner_id, sequence`,
		scanMembership)
}

func exportLinks(ctx context.Context, b *Backend, r *sql.DB) ([]json.RawMessage, error) {
	return exportRows(ctx, r, b,
		`SELECT `+linkColumns+` FROM links ORDER BY created_at, link_id`,
		scanLink)
}

// decodeRecord unmarshals rec keeping numbers as json.Number.
func decodeRecord(rec json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	return dec.Decode(v)
}

func loadPrincipal(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error {
	var p types.Principal
	if err := decodeRecord(rec, &p); err != nil {
		return err
	}
	in := types.PrincipalInput{Kind: p.Kind, CustomerType: p.CustomerType, Email: p.Email, Username: p.Username}
	if err := in.Validate(); err != nil {
		return err
	}
	return u.insertPrincipal(ctx, &p)
}

func loadEntity(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error {
	var e types.PolymorphicEntity
	if err := decodeRecord(rec, &e); err != nil {
		return err
	}
	fields := e.Fields
	e.Fields = nil
	typed, err := u.b.variants.Decode(e, fields)
	if err != nil {
		return err
	}
	return u.insertEntity(ctx, typed)
}

func loadDependent(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error {
	var d types.DependentRecord
	if err := decodeRecord(rec, &d); err != nil {
		return err
	}
	if !d.Owner().Valid() {
		return fmt.Errorf("%w: owner %q", types.ErrInvalidInput, d.Owner().String())
	}
	attrs, err := u.decodeAttributes(d.Kind, d.Attributes)
	if err != nil {
		return err
	}
	d.Attributes = attrs
	return u.insertDependent(ctx, &d)
}

func loadMembership(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error {
	var m types.MembershipRecord
	if err := decodeRecord(rec, &m); err != nil {
		return err
	}
	if !types.ValidRole(m.Role) {
		return fmt.Errorf("%w: role %q", types.ErrInvalidInput, m.Role)
	}
	m.Entity = nil
	return u.insertMembership(ctx, &m)
}

func loadLink(ctx context.Context, u *UnitOfWork, rec json.RawMessage) error {
	var l types.AssociationLink
	if err := decodeRecord(rec, &l); err != nil {
		return err
	}
	if !types.ValidLinkType(l.LinkType) {
		return fmt.Errorf("%w: link type %q", types.ErrInvalidInput, l.LinkType)
	}
	l.LeftID, l.RightID = types.NormalizePair(l.LeftID, l.RightID, u.b.isSymmetric(l.LinkType))
	return u.insertLink(ctx, &l)
}
