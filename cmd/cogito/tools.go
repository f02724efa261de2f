package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/registry"
)

// toolsCmd lists the registered tools and their risk tiers.
func toolsCmd() *cobra.Command {
	var risk, sideEffect string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			st, err := buildStack(cmd.Context(), logger, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			specs := st.reg.List(registry.Filter{
				Risk:       models.RiskTier(risk),
				SideEffect: models.SideEffect(sideEffect),
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tRISK\tSIDE EFFECT\tDESCRIPTION")
			for _, spec := range specs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					spec.Name, spec.Risk, spec.SideEffect, spec.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&risk, "risk", "", "filter by risk tier (safe, review, confirm, owner-root)")
	cmd.Flags().StringVar(&sideEffect, "side-effect", "", "filter by side effect (read-only, writes-fs, network, os-control, memory-write)")
	return cmd
}
