package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

func newVariantsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List registered entity variants and dependent kinds",
		Args:  cobra.NoArgs,
		RunE:  a.runVariants,
	}
}

type variantsOutput struct {
	Variants   []*types.VariantSchema `json:"variants"`
	Dependents []*types.VariantSchema `json:"dependents"`
}

func (a *app) runVariants(cmd *cobra.Command, args []string) error {
	backend, err := a.attachBackend()
	if err != nil {
		return err
	}
	defer backend.Detach()

	var out variantsOutput
	for _, name := range backend.Variants().Variants() {
		s, err := backend.Variants().Resolve(name)
		if err != nil {
			return err
		}
		out.Variants = append(out.Variants, s)
	}
	for _, name := range backend.DependentKinds().Variants() {
		s, err := backend.DependentKinds().Resolve(name)
		if err != nil {
			return err
		}
		out.Dependents = append(out.Dependents, s)
	}

	if a.jsonMode {
		return printJSON(stdout(cmd), out)
	}
	w := stdout(cmd)
	for _, group := range []struct {
		title   string
		schemas []*types.VariantSchema
	}{{"Variants", out.Variants}, {"Dependent kinds", out.Dependents}} {
		fmt.Fprintf(w, "%s:\n", group.title)
		for _, s := range group.schemas {
			names := make([]string, len(s.Fields))
			for i, f := range s.Fields {
				names[i] = f.Name
				if f.Required {
					names[i] += "*"
				}
			}
			fmt.Fprintf(w, "  %-12s %s\n", s.Discriminator, strings.Join(names, ", "))
		}
	}
	return nil
}
