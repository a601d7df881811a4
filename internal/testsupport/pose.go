package testsupport

import (
	"math"
	"time"

	"github.com/claude/repcounter/internal/models"
)

// FrameInterval is the spacing between synthetic frames (30fps).
const FrameInterval = time.Second / 30

// Epoch is the timestamp of the first synthetic frame.
var Epoch = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// PoseAt builds a frame whose triple forms the given angle at the vertex.
// A sits straight above the vertex; C is rotated deg degrees away from A.
func PoseAt(t models.JointTriple, deg, conf float64, at time.Time) models.DetectedPose {
	const r = 0.3
	rad := deg * math.Pi / 180
	return models.DetectedPose{
		Timestamp: at,
		Joints: map[models.Joint]models.Keypoint{
			t.A:      {X: 0.5, Y: 0.5 - r, Confidence: conf},
			t.Vertex: {X: 0.5, Y: 0.5, Confidence: conf},
			t.C:      {X: 0.5 + r*math.Sin(rad), Y: 0.5 - r*math.Cos(rad), Confidence: conf},
		},
	}
}

// Trace turns a list of angles into consecutive frames starting at Epoch.
func Trace(t models.JointTriple, angles []float64, conf float64) []models.DetectedPose {
	out := make([]models.DetectedPose, len(angles))
	for i, a := range angles {
		out[i] = PoseAt(t, a, conf, Epoch.Add(time.Duration(i)*FrameInterval))
	}
	return out
}

// Hold repeats deg n times.
func Hold(deg float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = deg
	}
	return out
}

// Ramp returns n angles moving linearly from from to to, excluding from and
// including to.
func Ramp(from, to float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + (to-from)*float64(i+1)/float64(n)
	}
	return out
}

// Concat joins angle segments.
func Concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
