package tracking

import (
	"testing"

	"github.com/claude/repcounter/internal/models"
)

var knee = models.JointTriple{A: models.JointLeftHip, Vertex: models.JointLeftKnee, C: models.JointLeftAnkle}

func frame(conf float64) models.DetectedPose {
	return models.DetectedPose{Joints: map[models.Joint]models.Keypoint{
		models.JointLeftHip:   {X: 0.5, Y: 0.3, Confidence: conf},
		models.JointLeftKnee:  {X: 0.5, Y: 0.5, Confidence: conf},
		models.JointLeftAnkle: {X: 0.5, Y: 0.8, Confidence: conf},
	}}
}

// TestMonitorLosesAfterConsecutiveBadFrames verifies Lost is reported only on
// the fifth consecutive bad frame.
func TestMonitorLosesAfterConsecutiveBadFrames(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 1; i <= 4; i++ {
		if got := m.Observe(frame(0), knee); got != models.TrackingPresent {
			t.Fatalf("bad frame %d: status = %s, want present", i, got)
		}
	}
	if got := m.Observe(frame(0), knee); got != models.TrackingLost {
		t.Errorf("bad frame 5: status = %s, want lost", got)
	}
}

// TestMonitorSingleGoodFrameResetsLossCount verifies an isolated good frame
// restarts the loss debounce so flicker never reaches Lost.
func TestMonitorSingleGoodFrameResetsLossCount(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 0; i < 20; i++ {
		conf := 0.0
		if i%4 == 3 {
			conf = 0.9
		}
		if got := m.Observe(frame(conf), knee); got != models.TrackingPresent {
			t.Fatalf("frame %d: status = %s, want present", i, got)
		}
	}
}

// TestMonitorRecoversAfterGoodFrames verifies Present returns only after
// three consecutive good frames.
func TestMonitorRecoversAfterGoodFrames(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 0; i < 5; i++ {
		m.Observe(frame(0), knee)
	}
	if m.Status() != models.TrackingLost {
		t.Fatalf("status = %s, want lost", m.Status())
	}
	m.Observe(frame(0.9), knee)
	m.Observe(frame(0.9), knee)
	if m.Status() != models.TrackingLost {
		t.Errorf("after 2 good frames: status = %s, want lost", m.Status())
	}
	m.Observe(frame(0), knee)
	m.Observe(frame(0.9), knee)
	m.Observe(frame(0.9), knee)
	if m.Status() != models.TrackingLost {
		t.Errorf("interrupted recovery: status = %s, want lost", m.Status())
	}
	if got := m.Observe(frame(0.9), knee); got != models.TrackingPresent {
		t.Errorf("after 3 good frames: status = %s, want present", got)
	}
}

// TestMonitorMissingJointIsBad verifies a joint absent from the frame counts
// as a low-confidence frame.
func TestMonitorMissingJointIsBad(t *testing.T) {
	m := NewMonitor(Config{LostAfter: 1, RecoverAfter: 1})
	pose := frame(0.9)
	delete(pose.Joints, models.JointLeftAnkle)
	if got := m.Observe(pose, knee); got != models.TrackingLost {
		t.Errorf("status = %s, want lost", got)
	}
	if c := m.Confidence(); c < 0.59 || c > 0.61 {
		t.Errorf("confidence = %.3f, want 0.6", c)
	}
}

// TestMonitorReset verifies Reset clears counters and status.
func TestMonitorReset(t *testing.T) {
	m := NewMonitor(Config{LostAfter: 1, RecoverAfter: 3})
	m.Observe(frame(0), knee)
	m.Reset()
	if m.Status() != models.TrackingPresent {
		t.Errorf("status = %s, want present", m.Status())
	}
}
