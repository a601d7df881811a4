package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/profiles"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles [exercise]",
		Short: "List exercise profiles, or show the one an exercise resolves to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(cmd, func(reg *profiles.Registry) error {
				if len(args) == 1 {
					p, err := reg.Resolve(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if ctx.json() {
						return writeJSON(cmd, p)
					}
					printProfile(cmd.OutOrStdout(), p)
					return nil
				}

				list, err := reg.List(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.json() {
					return writeJSON(cmd, list)
				}
				printProfiles(cmd, list)
				return nil
			})
		},
	}
	return cmd
}

func printProfiles(cmd *cobra.Command, list []models.CalibrationProfile) {
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		inv := ""
		if p.IsInverted {
			inv = "yes"
		}
		rows = append(rows, []string{
			p.Name,
			p.DisplayName,
			formatTriple(p.Joints),
			fmt.Sprintf("%.0f°", p.TopAngleDegrees),
			fmt.Sprintf("%.0f°", p.BottomAngleDegrees),
			inv,
			string(p.Source),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
		Headers: []string{"Name", "Display", "Joints", "Top", "Bottom", "Inverted", "Source"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	}))
}
