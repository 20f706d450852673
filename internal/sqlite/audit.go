package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// auditCheck is one scan for stored rows that break an integrity rule. The
// query yields (subject, detail) pairs.
type auditCheck struct {
	code     string
	severity string
	query    string
}

var auditChecks = []auditCheck{
	{
		code:     types.FindingDuplicateSequence,
		severity: types.SeverityError,
		query: `SELECT owner_kind || '/' || owner_id, 'sequence ' || CAST(sequence AS TEXT) || ' held by ' || CAST(COUNT(*) AS TEXT) || ' dependents'
		 FROM dependents GROUP BY owner_kind, owner_id, sequence HAVING COUNT(*) > 1`,
	},
	{
		code:     types.FindingMissingPrimary,
		severity: types.SeverityWarning,
		query: `SELECT owner_kind || '/' || owner_id, 'no dependent at sequence 1'
		 FROM dependents GROUP BY owner_kind, owner_id
		 HAVING SUM(CASE WHEN sequence = 1 THEN 1 ELSE 0 END) = 0`,
	},
	{
		code:     types.FindingMultipleMain,
		severity: types.SeverityError,
		query: `SELECT owner_id, CAST(COUNT(*) AS TEXT) || ' main memberships for role ' || role
		 FROM memberships WHERE is_main = 1 GROUP BY owner_id, role HAVING COUNT(*) > 1`,
	},
	{
		code:     types.FindingOrphanDependent,
		severity: types.SeverityError,
		query: `SELECT d.dependent_id, 'owner ' || d.owner_kind || '/' || d.owner_id || ' is gone'
		 FROM dependents d
		 WHERE (d.owner_kind = 'principal' AND NOT EXISTS (SELECT 1 FROM principals p WHERE p.principal_id = d.owner_id))
		    OR (d.owner_kind = 'entity' AND NOT EXISTS (SELECT 1 FROM entities e WHERE e.entity_id = d.owner_id))`,
	},
	{
		code:     types.FindingOrphanMembership,
		severity: types.SeverityError,
		query: `SELECT m.membership_id, 'references missing owner or entity'
		 FROM memberships m
		 WHERE NOT EXISTS (SELECT 1 FROM principals p WHERE p.principal_id = m.owner_id)
		    OR NOT EXISTS (SELECT 1 FROM entities e WHERE e.entity_id = m.entity_id)`,
	},
	{
		code:     types.FindingUnreferencedEntity,
		severity: types.SeverityWarning,
		query: `SELECT e.entity_id, e.discriminator || ' entity has no membership'
		 FROM entities e
		 WHERE NOT EXISTS (SELECT 1 FROM memberships m WHERE m.entity_id = e.entity_id)`,
	},
}

// Audit scans committed state for rows that break the integrity rules,
// e.g. data written before the rules were enforced or by other tools.
func (b *Backend) Audit(ctx context.Context) (*types.AuditReport, error) {
	r, err := b.readerDB()
	if err != nil {
		return nil, err
	}
	report := &types.AuditReport{Findings: []types.Finding{}}
	for _, c := range auditChecks {
		rows, err := r.QueryContext(ctx, c.query)
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", c.code, err)
		}
		for rows.Next() {
			f := types.Finding{Code: c.code, Severity: c.severity}
			if err := rows.Scan(&f.Subject, &f.Detail); err != nil {
				rows.Close()
				return nil, fmt.Errorf("audit %s: %w", c.code, err)
			}
			report.Findings = append(report.Findings, f)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("audit %s: %w", c.code, err)
		}
	}
	b.log.Info("audit finished", zap.Int("findings", len(report.Findings)), zap.Int("errors", report.Errors()))
	return report, nil
}
