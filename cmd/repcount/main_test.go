package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/repcounter/internal/models"
	ts "github.com/claude/repcounter/internal/testsupport"
	"github.com/claude/repcounter/internal/trace"
)

var kneeTriple = models.JointTriple{A: models.JointLeftHip, Vertex: models.JointLeftKnee, C: models.JointLeftAnkle}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeTrace(t *testing.T, angles []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := trace.Write(f, ts.Trace(kneeTriple, angles, 0.9)); err != nil {
		t.Fatal(err)
	}
	return path
}

func squatAngles(n int) []float64 {
	angles := ts.Hold(170, 30)
	for range n {
		angles = ts.Concat(angles, ts.Ramp(170, 80, 15), ts.Ramp(80, 170, 15), ts.Hold(170, 10))
	}
	return angles
}

// demoAngles holds the top, moves down and holds the bottom long enough for
// both capture windows.
func demoAngles(top, bottom float64) []float64 {
	return ts.Concat(ts.Hold(top, 60), ts.Ramp(top, bottom, 20), ts.Hold(bottom, 60))
}

func TestReplayCountsReps(t *testing.T) {
	path := writeTrace(t, squatAngles(3))

	out, _, err := runCLI(t, "replay", path, "--exercise", "Squat")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	requireContains(t, out, "squat (builtin): 3 reps")
	requireContains(t, out, "REP")
	requireContains(t, out, "TOTAL")
}

func TestReplayJSON(t *testing.T) {
	path := writeTrace(t, squatAngles(2))

	out, _, err := runCLI(t, "--json", "replay", path, "-e", "squat")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	var report replayReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.RepCount != 2 || len(report.Reps) != 2 {
		t.Fatalf("report = %+v, want 2 reps", report)
	}
	if report.Reps[0].Rep != 1 || report.Reps[1].Rep != 2 {
		t.Errorf("rep numbers = %d, %d", report.Reps[0].Rep, report.Reps[1].Rep)
	}
	if report.Frames != len(squatAngles(2)) {
		t.Errorf("frames = %d", report.Frames)
	}
}

func TestReplayFromStdin(t *testing.T) {
	var buf bytes.Buffer
	if err := trace.Write(&buf, ts.Trace(kneeTriple, squatAngles(1), 0.9)); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(&buf)
	cmd.SetArgs([]string{"replay", "-", "--exercise", "squat"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	requireContains(t, stdout.String(), "1 reps")
}

func TestReplayUnsupportedExercise(t *testing.T) {
	path := writeTrace(t, squatAngles(1))

	_, _, err := runCLI(t, "replay", path, "--exercise", "jumping jacks")
	if err == nil {
		t.Fatal("expected error for unknown exercise")
	}
	requireContains(t, err.Error(), "unsupported exercise")
}

func TestReplayMissingExerciseFlag(t *testing.T) {
	path := writeTrace(t, squatAngles(1))
	if _, _, err := runCLI(t, "replay", path); err == nil {
		t.Fatal("expected error without --exercise")
	}
}

func TestReplayBadTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"t\":1,\"joints\":{}}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, "replay", path, "--exercise", "squat")
	if err == nil {
		t.Fatal("expected decode error")
	}
	requireContains(t, err.Error(), "line 2")
}

func TestTeachThenReplayWithStore(t *testing.T) {
	store := t.TempDir()
	demo := writeTrace(t, demoAngles(170, 80))

	out, _, err := runCLI(t, "--store", store, "teach", demo,
		"--name", "Knee Bend",
		"--joints", "leftHip,leftKnee,leftAnkle",
		"--top-at", "0",
		"--bottom-at", "85",
	)
	if err != nil {
		t.Fatalf("teach: %v", err)
	}
	requireContains(t, out, "knee bend")
	requireContains(t, out, "taught")

	out, _, err = runCLI(t, "--store", store, "profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	requireContains(t, out, "knee bend")

	reps := writeTrace(t, squatAngles(2))
	out, _, err = runCLI(t, "--store", store, "replay", reps, "--exercise", "knee bend")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	requireContains(t, out, "knee bend (taught): 2 reps")
}

func TestTeachInvertedJSON(t *testing.T) {
	demo := writeTrace(t, demoAngles(40, 150))

	out, _, err := runCLI(t, "--json", "teach", demo,
		"--name", "curl",
		"--joints", "leftHip,leftKnee,leftAnkle",
		"--bottom-at", "85",
	)
	if err != nil {
		t.Fatalf("teach: %v", err)
	}
	var p models.CalibrationProfile
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !p.IsInverted {
		t.Error("expected inverted profile")
	}
	if p.TopAngleDegrees < p.BottomAngleDegrees {
		t.Errorf("top %.1f below bottom %.1f", p.TopAngleDegrees, p.BottomAngleDegrees)
	}
}

func TestTeachDegenerate(t *testing.T) {
	demo := writeTrace(t, demoAngles(150, 145))

	_, _, err := runCLI(t, "teach", demo,
		"--name", "wrist flick",
		"--joints", "leftHip,leftKnee,leftAnkle",
		"--bottom-at", "85",
	)
	if err == nil {
		t.Fatal("expected degenerate error")
	}
	requireContains(t, err.Error(), "degenerate")
}

// TestTeachBottomBeforeTopComplete re-arms the unfinished top capture, so the
// bottom is never captured.
func TestTeachBottomBeforeTopComplete(t *testing.T) {
	demo := writeTrace(t, demoAngles(170, 80))

	_, _, err := runCLI(t, "teach", demo,
		"--name", "squat",
		"--joints", "leftHip,leftKnee,leftAnkle",
		"--bottom-at", "10",
	)
	if err == nil {
		t.Fatal("expected incomplete calibration")
	}
	requireContains(t, err.Error(), "calibration not complete")
}

func TestTeachFlagValidation(t *testing.T) {
	demo := writeTrace(t, demoAngles(170, 80))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"two joints", []string{"--joints", "leftHip,leftKnee", "--bottom-at", "85"}, "exactly three"},
		{"duplicate joint", []string{"--joints", "leftHip,leftKnee,leftHip", "--bottom-at", "85"}, "distinct"},
		{"bottom before top", []string{"--joints", "leftHip,leftKnee,leftAnkle", "--top-at", "50", "--bottom-at", "20"}, "must come after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"teach", demo, "--name", "squat"}, tt.args...)
			_, _, err := runCLI(t, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			requireContains(t, err.Error(), tt.want)
		})
	}
}

func TestProfilesListsBuiltIns(t *testing.T) {
	out, _, err := runCLI(t, "profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	for _, name := range []string{"squat", "bicep curl", "lateral raise"} {
		requireContains(t, out, name)
	}
}

func TestProfilesResolveJSON(t *testing.T) {
	out, _, err := runCLI(t, "--json", "profiles", "  BICEP   Curl ")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	var p models.CalibrationProfile
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if p.Name != "bicep curl" || !p.IsInverted || p.Source != models.SourceBuiltIn {
		t.Errorf("profile = %+v", p)
	}
}

func TestAngleCommand(t *testing.T) {
	out, _, err := runCLI(t, "angle", "--a", "0.5,0.2", "--vertex", "0.5,0.5", "--c", "0.8,0.5")
	if err != nil {
		t.Fatalf("angle: %v", err)
	}
	requireContains(t, out, "90.00°")
}

func TestAngleCommandLowConfidence(t *testing.T) {
	_, _, err := runCLI(t, "angle", "--a", "0.5,0.2,0.1", "--vertex", "0.5,0.5", "--c", "0.8,0.5")
	if err == nil {
		t.Fatal("expected low-confidence error")
	}
}

func TestAngleCommandBadPoint(t *testing.T) {
	_, _, err := runCLI(t, "angle", "--a", "0.5", "--vertex", "0.5,0.5", "--c", "0.8,0.5")
	if err == nil {
		t.Fatal("expected error for a one-value point")
	}
	requireContains(t, err.Error(), "--a needs")
}

func TestPushRequiresServer(t *testing.T) {
	path := writeTrace(t, squatAngles(1))
	_, _, err := runCLI(t, "push", path, "--exercise", "squat", "--url", "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "starting session")
}

// TestRenderTableFooter pads short rows and prints the footer.
func TestRenderTableFooter(t *testing.T) {
	out := renderTable(tableSpec{
		Title:   "squat",
		Headers: []string{"Rep", "At"},
		Rows:    [][]string{{"1"}},
		Aligns:  []columnAlignment{alignRight},
		Footer:  []string{"Total", "1.00s"},
	})
	for _, want := range []string{"squat", "REP", "TOTAL", "1.00s"} {
		requireContains(t, strings.ToUpper(out), strings.ToUpper(want))
	}
	if renderTable(tableSpec{}) != "" {
		t.Error("empty spec should render nothing")
	}
}
