package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/zeros"
	"github.com/GoCodeAlone/zeros/manifest"
)

func newOrderCommand(_ *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "order <manifest>",
		Short: "Print the load order and load layers of a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			_, plan, err := zeros.PlanDeclaration(m.Declaration)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			fmt.Fprintln(out, "Load order:")
			for i, id := range plan.Order {
				fmt.Fprintf(out, "  %2d. %s\n", i+1, id)
			}
			fmt.Fprintln(out, "Layers:")
			for i, layer := range plan.Layers {
				fmt.Fprintf(out, "  %d: %s\n", i, strings.Join(layer, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}
