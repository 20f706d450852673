package types

// Audit finding codes.
const (
	FindingDuplicateSequence  = "duplicate_sequence"
	FindingMissingPrimary     = "missing_primary"
	FindingMultipleMain       = "multiple_main"
	FindingOrphanDependent    = "orphan_dependent"
	FindingOrphanMembership   = "orphan_membership"
	FindingUnreferencedEntity = "unreferenced_entity"
)

// Finding severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Finding is one integrity problem found by an audit of stored data.
type Finding struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Subject  string `json:"subject"`
	Detail   string `json:"detail"`
}

// AuditReport collects the findings of one audit run.
type AuditReport struct {
	Findings []Finding `json:"findings"`
}

// Errors returns the number of error-severity findings.
func (r *AuditReport) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			n++
		}
	}
	return n
}
