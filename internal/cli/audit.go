package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report stored rows that break integrity rules",
		Long: `Audit scans committed state for duplicate sequences, owners without a
primary dependent, multiple main memberships, orphaned rows and entities
without a membership. It exits with status 1 when any error-severity
finding is reported.`,
		Args: cobra.NoArgs,
		RunE: a.runAudit,
	}
}

func (a *app) runAudit(cmd *cobra.Command, args []string) error {
	backend, err := a.attachBackend()
	if err != nil {
		return err
	}
	defer backend.Detach()

	report, err := backend.Audit(cmd.Context())
	if err != nil {
		return sysError("audit: %w", err)
	}

	if a.jsonMode {
		if err := printJSON(stdout(cmd), report); err != nil {
			return err
		}
	} else if len(report.Findings) == 0 {
		fmt.Fprintln(stdout(cmd), "No findings")
	} else {
		w := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEVERITY\tCODE\tSUBJECT\tDETAIL")
		for _, f := range report.Findings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Severity, f.Code, f.Subject, f.Detail)
		}
		w.Flush()
	}

	if n := report.Errors(); n > 0 {
		return &exitError{code: exitUserError, err: fmt.Errorf("audit found %d error(s)", n)}
	}
	return nil
}
