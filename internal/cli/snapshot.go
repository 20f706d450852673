package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write committed state to JSONL files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			counts, err := backend.Export(cmd.Context(), args[0])
			if err != nil {
				return sysError("export: %w", err)
			}
			return a.printCounts(cmd, "Exported", counts)
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load JSONL files written by export",
		Long: `Import loads a snapshot in a single unit of work. Every record passes the
same integrity checks as a live write; if any record is rejected nothing is
imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			counts, err := backend.Import(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			return a.printCounts(cmd, "Imported", counts)
		},
	}
}

func (a *app) printCounts(cmd *cobra.Command, verb string, counts map[string]int) error {
	if a.jsonMode {
		return printJSON(stdout(cmd), counts)
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(stdout(cmd), "%s %d %s\n", verb, counts[t], t)
	}
	return nil
}
