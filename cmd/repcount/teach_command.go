package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/teach"
)

func newTeachCommand(ctx *commandContext) *cobra.Command {
	var name string
	var joints []string
	var topAt int
	var bottomAt int

	cmd := &cobra.Command{
		Use:   "teach <trace>",
		Short: "Derive and save a profile from a recorded demonstration",
		Long: "Teach replays a recorded demonstration through Teach Mode. The top\n" +
			"capture is armed at frame --top-at and the bottom capture at frame\n" +
			"--bottom-at; each needs a steady hold of the capture window.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(joints) != 3 {
				return fmt.Errorf("--joints needs exactly three landmarks (a,vertex,c), got %d", len(joints))
			}
			if bottomAt <= topAt {
				return fmt.Errorf("--bottom-at (%d) must come after --top-at (%d)", bottomAt, topAt)
			}
			poses, err := readTrace(cmd, args[0])
			if err != nil {
				return err
			}

			var saved models.CalibrationProfile
			err = ctx.withRegistry(cmd, func(reg *profiles.Registry) error {
				m := session.NewManager(reg, session.Options{}, ctx.logger(cmd))
				p, err := teachFromTrace(cmd, m, name, joints, topAt, bottomAt, poses)
				saved = p
				return err
			})
			if err != nil {
				return err
			}

			if ctx.json() {
				return writeJSON(cmd, saved)
			}
			printProfile(cmd.OutOrStdout(), saved)
			if ctx.storeDir() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "not persisted: pass --store to keep taught profiles")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Exercise name for the taught profile")
	cmd.Flags().StringSliceVar(&joints, "joints", nil, "Joint triple as a,vertex,c (e.g. leftHip,leftKnee,leftAnkle)")
	cmd.Flags().IntVar(&topAt, "top-at", 0, "Frame index at which to arm the top capture")
	cmd.Flags().IntVar(&bottomAt, "bottom-at", 0, "Frame index at which to arm the bottom capture")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("joints")
	_ = cmd.MarkFlagRequired("bottom-at")

	return cmd
}

func teachFromTrace(cmd *cobra.Command, m *session.Manager, name string, joints []string, topAt, bottomAt int, poses []models.DetectedPose) (models.CalibrationProfile, error) {
	h, _ := m.StartTeach(name)
	defer m.Stop(h)

	calib, err := m.Calibrator(h)
	if err != nil {
		return models.CalibrationProfile{}, err
	}
	for _, j := range joints {
		if !calib.SelectJoint(models.Joint(strings.TrimSpace(j))) {
			return models.CalibrationProfile{}, fmt.Errorf("joint %q rejected: landmarks must be distinct", j)
		}
	}
	if err := calib.ConfirmJoints(); err != nil {
		return models.CalibrationProfile{}, err
	}

	for i, pose := range poses {
		if err := cmd.Context().Err(); err != nil {
			return models.CalibrationProfile{}, err
		}
		switch i {
		case topAt:
			if err := calib.Capture(); err != nil {
				return models.CalibrationProfile{}, fmt.Errorf("top capture at frame %d: %w", i, err)
			}
		case bottomAt:
			if err := calib.Capture(); err != nil {
				return models.CalibrationProfile{}, fmt.Errorf("bottom capture at frame %d: %w", i, err)
			}
		}
		if _, err := m.ProcessFrame(h, pose); err != nil {
			return models.CalibrationProfile{}, fmt.Errorf("frame %d: %w", i, err)
		}
		if s := calib.State(); s == teach.StateComplete || s == teach.StateFailed {
			break
		}
	}

	saved, err := m.CommitTeach(cmd.Context(), h)
	if errors.Is(err, teach.ErrIncomplete) {
		if status := calib.Status(); status.LastRejection != "" {
			return saved, fmt.Errorf("%w (last rejection: %s)", err, status.LastRejection)
		}
	}
	return saved, err
}

func printProfile(w io.Writer, p models.CalibrationProfile) {
	inverted := "no"
	if p.IsInverted {
		inverted = "yes"
	}
	rows := [][]string{
		{"Name", p.Name},
		{"Joints", formatTriple(p.Joints)},
		{"Top", fmt.Sprintf("%.1f°", p.TopAngleDegrees)},
		{"Bottom", fmt.Sprintf("%.1f°", p.BottomAngleDegrees)},
		{"Inverted", inverted},
		{"Hysteresis", fmt.Sprintf("%.1f°", p.Hysteresis())},
		{"Source", string(p.Source)},
	}
	fmt.Fprintln(w, renderTable(tableSpec{Title: p.DisplayName, Headers: []string{"Field", "Value"}, Rows: rows}))
}

func formatTriple(t models.JointTriple) string {
	return fmt.Sprintf("%s-%s-%s", t.A, t.Vertex, t.C)
}
