// Package angle computes the angle at a joint from three pose keypoints.
package angle

import (
	"errors"
	"math"

	"github.com/claude/repcounter/internal/models"
)

// DefaultMinConfidence is the per-joint confidence below which no angle is
// reported.
const DefaultMinConfidence = 0.3

// ErrInsufficientConfidence is returned when a joint is too uncertain (or the
// geometry too degenerate) to produce an angle.
var ErrInsufficientConfidence = errors.New("insufficient joint confidence")

// minSegment rejects flanking joints that sit on top of the vertex.
const minSegment = 1e-9

// Compute returns the angle at vertex between a and c in degrees, in [0,180].
func Compute(a, vertex, c models.Keypoint, minConfidence float64) (float64, error) {
	if a.Confidence < minConfidence || vertex.Confidence < minConfidence || c.Confidence < minConfidence {
		return 0, ErrInsufficientConfidence
	}

	ax, ay := a.X-vertex.X, a.Y-vertex.Y
	cx, cy := c.X-vertex.X, c.Y-vertex.Y
	la := math.Hypot(ax, ay)
	lc := math.Hypot(cx, cy)
	if la < minSegment || lc < minSegment {
		return 0, ErrInsufficientConfidence
	}

	// Noisy near-collinear points can push the ratio just past ±1.
	cos := (ax*cx + ay*cy) / (la * lc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, nil
}

// FromPose looks up the triple in pose and computes its angle. Missing joints
// count as zero confidence.
func FromPose(pose models.DetectedPose, t models.JointTriple, minConfidence float64) (float64, error) {
	return Compute(pose.Keypoint(t.A), pose.Keypoint(t.Vertex), pose.Keypoint(t.C), minConfidence)
}
