package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/repcount"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/trace"
)

type repRow struct {
	Rep          int           `json:"rep"`
	Frame        int           `json:"frame"`
	Offset       time.Duration `json:"offset_ns"`
	AngleDegrees float64       `json:"smoothed_angle_degrees"`
}

type replayReport struct {
	Exercise     string        `json:"exercise"`
	Source       string        `json:"source"`
	Frames       int           `json:"frames"`
	Duration     time.Duration `json:"duration_ns"`
	RepCount     int           `json:"rep_count"`
	TrackingLost int           `json:"tracking_lost"`
	Reps         []repRow      `json:"reps"`
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	var exercise string
	var alpha float64
	var hysteresis float64

	cmd := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Count reps in a recorded pose trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poses, err := readTrace(cmd, args[0])
			if err != nil {
				return err
			}

			var report replayReport
			err = ctx.withRegistry(cmd, func(reg *profiles.Registry) error {
				opts := session.Options{
					Counter:           repcount.DefaultOptions(),
					HysteresisDegrees: hysteresis,
				}
				opts.Counter.SmoothingAlpha = alpha
				m := session.NewManager(reg, opts, ctx.logger(cmd))
				profile, err := reg.Resolve(cmd.Context(), exercise)
				if err != nil {
					return err
				}
				r, err := replay(cmd, m, profile, poses)
				report = r
				return err
			})
			if err != nil {
				return err
			}

			if ctx.json() {
				return writeJSON(cmd, report)
			}
			printReplay(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "Exercise profile to count with")
	cmd.Flags().Float64Var(&alpha, "alpha", repcount.DefaultSmoothingAlpha, "EMA smoothing factor")
	cmd.Flags().Float64Var(&hysteresis, "hysteresis", 0, "Override the profile's hysteresis in degrees")
	_ = cmd.MarkFlagRequired("exercise")

	return cmd
}

func replay(cmd *cobra.Command, m *session.Manager, profile models.CalibrationProfile, poses []models.DetectedPose) (replayReport, error) {
	h, _, err := m.Start(profile)
	if err != nil {
		return replayReport{}, err
	}

	report := replayReport{
		Exercise: h.Exercise(),
		Source:   string(profile.Source),
		Frames:   len(poses),
		Reps:     []repRow{},
	}
	var start time.Time
	if len(poses) > 0 {
		start = poses[0].Timestamp
		report.Duration = poses[len(poses)-1].Timestamp.Sub(start)
	}

	lost := false
	for i, pose := range poses {
		if err := cmd.Context().Err(); err != nil {
			return report, err
		}
		res, err := m.ProcessFrame(h, pose)
		if err != nil {
			return report, fmt.Errorf("frame %d: %w", i, err)
		}
		if res.Tracking == models.TrackingLost && !lost {
			report.TrackingLost++
		}
		lost = res.Tracking == models.TrackingLost
		if res.RepCountDelta > 0 {
			report.Reps = append(report.Reps, repRow{
				Rep:          res.RepCount,
				Frame:        i,
				Offset:       pose.Timestamp.Sub(start),
				AngleDegrees: res.SmoothedAngleDegrees,
			})
		}
	}
	report.RepCount = m.Stop(h)
	return report, nil
}

func printReplay(w io.Writer, report replayReport) {
	if len(report.Reps) > 0 {
		rows := make([][]string, 0, len(report.Reps))
		for _, r := range report.Reps {
			rows = append(rows, []string{
				strconv.Itoa(r.Rep),
				strconv.Itoa(r.Frame),
				formatOffset(r.Offset),
				fmt.Sprintf("%.1f°", r.AngleDegrees),
			})
		}
		fmt.Fprintln(w, renderTable(tableSpec{
			Title:   report.Exercise,
			Headers: []string{"Rep", "Frame", "At", "Angle"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight},
			Footer:  []string{"Total", strconv.Itoa(report.Frames), formatOffset(report.Duration), ""},
		}))
	}
	fmt.Fprintf(w, "%s (%s): %d reps in %d frames over %s",
		report.Exercise, report.Source, report.RepCount, report.Frames, formatOffset(report.Duration))
	if report.TrackingLost > 0 {
		fmt.Fprintf(w, ", tracking lost %d times", report.TrackingLost)
	}
	fmt.Fprintln(w)
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// readTrace loads a trace from path, or from stdin when path is "-".
func readTrace(cmd *cobra.Command, path string) ([]models.DetectedPose, error) {
	if path == "-" {
		return trace.Read(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()
	poses, err := trace.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return poses, nil
}
