package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/angle"
	"github.com/claude/repcounter/internal/models"
)

func newAngleCommand(ctx *commandContext) *cobra.Command {
	var a, vertex, c []float64
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "angle",
		Short: "Compute the joint angle at a vertex",
		Long: "Angle computes the angle at --vertex between --a and --c. Each point\n" +
			"is x,y in normalized image coordinates with an optional confidence\n" +
			"as a third value (default 1).",
		Example: "  repcount angle --a 0.5,0.2 --vertex 0.5,0.5 --c 0.8,0.5",
		RunE: func(cmd *cobra.Command, args []string) error {
			pa, err := keypointFlag("a", a)
			if err != nil {
				return err
			}
			pv, err := keypointFlag("vertex", vertex)
			if err != nil {
				return err
			}
			pc, err := keypointFlag("c", c)
			if err != nil {
				return err
			}

			deg, err := angle.Compute(pa, pv, pc, minConfidence)
			if err != nil {
				return err
			}
			if ctx.json() {
				return writeJSON(cmd, map[string]float64{"angle_degrees": deg})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f°\n", deg)
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&a, "a", nil, "First outer point as x,y[,confidence]")
	cmd.Flags().Float64SliceVar(&vertex, "vertex", nil, "Vertex point as x,y[,confidence]")
	cmd.Flags().Float64SliceVar(&c, "c", nil, "Second outer point as x,y[,confidence]")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", angle.DefaultMinConfidence, "Minimum keypoint confidence")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("vertex")
	_ = cmd.MarkFlagRequired("c")

	return cmd
}

func keypointFlag(name string, v []float64) (models.Keypoint, error) {
	switch len(v) {
	case 2:
		return models.Keypoint{X: v[0], Y: v[1], Confidence: 1}, nil
	case 3:
		return models.Keypoint{X: v[0], Y: v[1], Confidence: v[2]}, nil
	default:
		return models.Keypoint{}, fmt.Errorf("--%s needs x,y or x,y,confidence, got %d values", name, len(v))
	}
}
