package repcount

import (
	"math"
	"testing"

	"github.com/claude/repcounter/internal/models"
	ts "github.com/claude/repcounter/internal/testsupport"
)

var kneeTriple = models.JointTriple{A: models.JointLeftHip, Vertex: models.JointLeftKnee, C: models.JointLeftAnkle}

func squatProfile() models.CalibrationProfile {
	return models.CalibrationProfile{
		Name:               "squat",
		Joints:             kneeTriple,
		TopAngleDegrees:    170,
		BottomAngleDegrees: 80,
		HysteresisDegrees:  8,
	}
}

func curlProfile() models.CalibrationProfile {
	return models.CalibrationProfile{
		Name:               "bicep curl",
		Joints:             models.JointTriple{A: models.JointLeftShoulder, Vertex: models.JointLeftElbow, C: models.JointLeftWrist},
		TopAngleDegrees:    160,
		BottomAngleDegrees: 40,
		IsInverted:         true,
		HysteresisDegrees:  8,
	}
}

// run feeds every frame and collects the distinct phase sequence, the final
// result, and the number of RepCompleted frames.
func run(m *Machine, frames []models.DetectedPose) (phases []models.Phase, last models.FrameResult, completed int) {
	phases = []models.Phase{m.State().Phase}
	for _, f := range frames {
		last = m.Step(f)
		if last.Phase != phases[len(phases)-1] {
			phases = append(phases, last.Phase)
		}
		if last.Feedback == models.FeedbackRepCompleted {
			completed++
		}
	}
	return phases, last, completed
}

func equalPhases(a, b []models.Phase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizedSweep converts fractions of the profile range (0 = smaller
// endpoint, 1 = larger) into raw angles.
func normalizedSweep(p models.CalibrationProfile, fractions []float64) []float64 {
	th := p.Thresholds()
	out := make([]float64, len(fractions))
	for i, f := range fractions {
		out[i] = th.Lower + f*(th.Upper-th.Lower)
	}
	return out
}

// fullSweep is bottom -> top -> bottom -> top with settling holds.
func fullSweep() []float64 {
	return ts.Concat(
		ts.Hold(0, 15), ts.Ramp(0, 1, 20), ts.Hold(1, 15),
		ts.Ramp(1, 0, 20), ts.Hold(0, 15),
		ts.Ramp(0, 1, 20), ts.Hold(1, 15),
	)
}

// TestSquatEndToEnd drives the documented squat trace: a 30-frame hold at the
// top, a 15-frame descent and a 15-frame ascent produce one rep.
func TestSquatEndToEnd(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	angles := ts.Concat(ts.Hold(170, 30), ts.Ramp(170, 80, 15), ts.Ramp(80, 170, 15))

	phases, last, completed := run(m, ts.Trace(kneeTriple, angles, 0.9))

	want := []models.Phase{
		models.PhaseIdle, models.PhaseAtTop, models.PhaseDescending,
		models.PhaseAtBottom, models.PhaseAscending, models.PhaseAtTop,
	}
	if !equalPhases(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
	if last.RepCount != 1 {
		t.Errorf("repCount = %d, want 1", last.RepCount)
	}
	if completed != 1 {
		t.Errorf("RepCompleted frames = %d, want 1", completed)
	}
}

// TestRepCompletedOnlyOnIncrementFrame verifies the increment frame reports
// delta 1 and the following frame goes back to ordinary feedback.
func TestRepCompletedOnlyOnIncrementFrame(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	angles := ts.Concat(ts.Hold(170, 30), ts.Ramp(170, 80, 15), ts.Ramp(80, 170, 15), ts.Hold(170, 5))
	frames := ts.Trace(kneeTriple, angles, 0.9)

	var deltas int
	for i, f := range frames {
		res := m.Step(f)
		deltas += res.RepCountDelta
		if res.RepCountDelta == 1 {
			if res.Feedback != models.FeedbackRepCompleted {
				t.Errorf("frame %d: feedback = %s, want rep_completed", i, res.Feedback)
			}
			next := m.Step(frames[i])
			if next.Feedback == models.FeedbackRepCompleted || next.RepCountDelta != 0 {
				t.Errorf("frame after increment: feedback = %s delta = %d", next.Feedback, next.RepCountDelta)
			}
		}
	}
	if deltas != 1 {
		t.Errorf("sum of deltas = %d, want 1", deltas)
	}
}

// TestFirstTopDoesNotCount verifies reaching the top from Idle never counts.
func TestFirstTopDoesNotCount(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	_, last, _ := run(m, ts.Trace(kneeTriple, ts.Hold(170, 40), 0.9))
	if last.Phase != models.PhaseAtTop {
		t.Errorf("phase = %s, want at_top", last.Phase)
	}
	if last.RepCount != 0 {
		t.Errorf("repCount = %d, want 0", last.RepCount)
	}
}

// TestMonotonicSweepCountsOnce verifies a single bottom->top->bottom->top
// sweep yields exactly one rep for a range of profiles.
func TestMonotonicSweepCountsOnce(t *testing.T) {
	narrow := squatProfile()
	narrow.Name = "narrow"
	narrow.TopAngleDegrees, narrow.BottomAngleDegrees, narrow.HysteresisDegrees = 120, 90, 5

	for _, p := range []models.CalibrationProfile{squatProfile(), curlProfile(), narrow} {
		t.Run(p.Name, func(t *testing.T) {
			m := New(p, DefaultOptions())
			_, last, completed := run(m, ts.Trace(p.Joints, normalizedSweep(p, fullSweep()), 0.9))
			if last.RepCount != 1 {
				t.Errorf("repCount = %d, want 1", last.RepCount)
			}
			if completed != 1 {
				t.Errorf("RepCompleted frames = %d, want 1", completed)
			}
		})
	}
}

// TestInversionTransparency verifies an inverted curl and a plain squat,
// driven by the same normalized sweep, walk the same phases and count once.
func TestInversionTransparency(t *testing.T) {
	curl := New(curlProfile(), DefaultOptions())
	squat := New(squatProfile(), DefaultOptions())

	curlPhases, curlLast, _ := run(curl, ts.Trace(curlProfile().Joints, normalizedSweep(curlProfile(), fullSweep()), 0.9))
	squatPhases, squatLast, _ := run(squat, ts.Trace(kneeTriple, normalizedSweep(squatProfile(), fullSweep()), 0.9))

	if curlLast.RepCount != 1 || squatLast.RepCount != 1 {
		t.Errorf("repCount curl=%d squat=%d, want 1 and 1", curlLast.RepCount, squatLast.RepCount)
	}
	if !equalPhases(curlPhases, squatPhases) {
		t.Errorf("curl phases %v != squat phases %v", curlPhases, squatPhases)
	}
	if th := curl.Thresholds(); th.Upper != 160 || th.Lower != 40 {
		t.Errorf("curl thresholds = %+v, want upper 160 lower 40", th)
	}
}

// TestHysteresisAtTop verifies jitter inside [top-h, top] never triggers a
// descent.
func TestHysteresisAtTop(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	angles := ts.Hold(170, 5)
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			angles = append(angles, 162.5)
		} else {
			angles = append(angles, 170)
		}
	}
	for i, f := range ts.Trace(kneeTriple, angles, 0.9) {
		res := m.Step(f)
		if i > 0 && res.Phase != models.PhaseAtTop {
			t.Fatalf("frame %d (%.1f°): phase = %s, want at_top", i, angles[i], res.Phase)
		}
	}
}

// TestLowConfidenceFramesDoNotMovePhase verifies frames under the confidence
// threshold never change the phase or the smoothed angle, whatever their
// raw angle.
func TestLowConfidenceFramesDoNotMovePhase(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	run(m, ts.Trace(kneeTriple, ts.Hold(170, 20), 0.9))
	before := m.State()

	for i, deg := range []float64{20, 80, 175, 45} {
		res := m.Step(ts.PoseAt(kneeTriple, deg, 0.1, ts.Epoch))
		if res.Phase != before.Phase {
			t.Errorf("low frame %d: phase = %s, want %s", i, res.Phase, before.Phase)
		}
		if res.SmoothedAngleDegrees != before.SmoothedAngleDegrees {
			t.Errorf("low frame %d: smoothed = %.2f, want %.2f", i, res.SmoothedAngleDegrees, before.SmoothedAngleDegrees)
		}
	}
}

// TestTrackingLossPreservesPhaseAndCount verifies five zero-confidence frames
// during a descent pause counting, and three good frames resume the descent.
func TestTrackingLossPreservesPhaseAndCount(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	angles := ts.Concat(
		ts.Hold(170, 30), ts.Ramp(170, 80, 15), ts.Ramp(80, 170, 15),
		ts.Hold(170, 10), ts.Ramp(170, 152, 3),
	)
	_, last, _ := run(m, ts.Trace(kneeTriple, angles, 0.9))
	if last.Phase != models.PhaseDescending || last.RepCount != 1 {
		t.Fatalf("setup: phase = %s repCount = %d, want descending/1", last.Phase, last.RepCount)
	}

	for i := 1; i <= 5; i++ {
		res := m.Step(ts.PoseAt(kneeTriple, 152, 0, ts.Epoch))
		want := models.PhaseDescending
		if i == 5 {
			want = models.PhaseTrackingLost
		}
		if res.Phase != want {
			t.Errorf("lost frame %d: phase = %s, want %s", i, res.Phase, want)
		}
		if res.RepCount != 1 {
			t.Errorf("lost frame %d: repCount = %d, want 1", i, res.RepCount)
		}
	}
	if fb := m.State().LastFeedback; fb != models.FeedbackNoDetection {
		t.Errorf("feedback while lost = %s, want no_detection", fb)
	}

	for i := 1; i <= 3; i++ {
		res := m.Step(ts.PoseAt(kneeTriple, 152, 0.9, ts.Epoch))
		want := models.PhaseTrackingLost
		if i == 3 {
			want = models.PhaseDescending
		}
		if res.Phase != want {
			t.Errorf("good frame %d: phase = %s, want %s", i, res.Phase, want)
		}
	}
	if got := m.State().RepCount; got != 1 {
		t.Errorf("repCount after recovery = %d, want 1", got)
	}
}

// TestTrackingLossFromIdleResumesIdle verifies the held phase is restored
// even when tracking drops before the first top.
func TestTrackingLossFromIdleResumesIdle(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	for i := 0; i < 5; i++ {
		m.Step(ts.PoseAt(kneeTriple, 100, 0, ts.Epoch))
	}
	if m.State().Phase != models.PhaseTrackingLost {
		t.Fatalf("phase = %s, want tracking_lost", m.State().Phase)
	}
	for i := 0; i < 3; i++ {
		m.Step(ts.PoseAt(kneeTriple, 100, 0.9, ts.Epoch))
	}
	if m.State().Phase != models.PhaseIdle {
		t.Errorf("phase = %s, want idle", m.State().Phase)
	}
}

// TestAbandonedDescentDoesNotCount verifies returning to the top without
// reaching the bottom goes back to AtTop with no rep.
func TestAbandonedDescentDoesNotCount(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	angles := ts.Concat(ts.Hold(170, 20), ts.Ramp(170, 130, 8), ts.Ramp(130, 170, 8), ts.Hold(170, 10))
	phases, last, _ := run(m, ts.Trace(kneeTriple, angles, 0.9))
	want := []models.Phase{models.PhaseIdle, models.PhaseAtTop, models.PhaseDescending, models.PhaseAtTop}
	if !equalPhases(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
	if last.RepCount != 0 {
		t.Errorf("repCount = %d, want 0", last.RepCount)
	}
}

// TestFeedbackDerivation verifies hold detection at the top and directional
// feedback during the movement.
func TestFeedbackDerivation(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	frames := ts.Trace(kneeTriple, ts.Hold(170, 12), 0.9)
	for i, f := range frames {
		res := m.Step(f)
		switch {
		case i < 9 && res.Feedback != models.FeedbackCalibrating:
			t.Errorf("frame %d: feedback = %s, want calibrating", i, res.Feedback)
		case i >= 9 && res.Feedback != models.FeedbackHoldingTop:
			t.Errorf("frame %d: feedback = %s, want holding_top", i, res.Feedback)
		}
	}

	sawDown, sawUp, sawHoldBottom := false, false, false
	angles := ts.Concat(ts.Ramp(170, 80, 15), ts.Hold(80, 12), ts.Ramp(80, 150, 10))
	for _, f := range ts.Trace(kneeTriple, angles, 0.9) {
		switch m.Step(f).Feedback {
		case models.FeedbackGoingDown:
			sawDown = true
		case models.FeedbackGoingUp:
			sawUp = true
		case models.FeedbackHoldingBottom:
			sawHoldBottom = true
		}
	}
	if !sawDown || !sawUp || !sawHoldBottom {
		t.Errorf("feedback seen: down=%v up=%v holdBottom=%v, want all true", sawDown, sawUp, sawHoldBottom)
	}
}

// TestResetClearsCount verifies Reset returns the machine to Idle with no
// reps.
func TestResetClearsCount(t *testing.T) {
	m := New(squatProfile(), DefaultOptions())
	run(m, ts.Trace(kneeTriple, normalizedSweep(squatProfile(), fullSweep()), 0.9))
	m.Reset()
	st := m.State()
	if st.Phase != models.PhaseIdle || st.RepCount != 0 {
		t.Errorf("state after reset = %+v", st)
	}
}

// TestSmoother verifies the seeding and weighting of the moving average.
func TestSmoother(t *testing.T) {
	s := NewSmoother(0.3)
	if got := s.Update(100); got != 100 {
		t.Errorf("first update = %v, want 100", got)
	}
	if got := s.Update(0); math.Abs(got-30) > 1e-9 {
		t.Errorf("second update = %v, want 30", got)
	}
	s.Reset()
	if got := s.Update(50); got != 50 {
		t.Errorf("after reset = %v, want 50", got)
	}
}
