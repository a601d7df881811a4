// Package tracking debounces per-frame joint confidence into a stable
// present/lost signal.
package tracking

import (
	"github.com/claude/repcounter/internal/angle"
	"github.com/claude/repcounter/internal/models"
)

// Config controls the debounce. Losing tracking is deliberately slower to
// trigger than regaining it is to confirm.
type Config struct {
	// MinConfidence is the per-joint threshold for a good frame.
	MinConfidence float64
	// LostAfter is the number of consecutive bad frames before Lost (~150ms at 30fps).
	LostAfter int
	// RecoverAfter is the number of consecutive good frames before Present.
	RecoverAfter int
}

// DefaultConfig returns the standard debounce settings.
func DefaultConfig() Config {
	return Config{
		MinConfidence: angle.DefaultMinConfidence,
		LostAfter:     5,
		RecoverAfter:  3,
	}
}

// Monitor tracks one joint triple. Not safe for concurrent use.
type Monitor struct {
	cfg        Config
	status     models.TrackingStatus
	bad        int
	good       int
	confidence float64
}

// NewMonitor creates a Monitor that starts out Present.
func NewMonitor(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.LostAfter <= 0 {
		cfg.LostAfter = def.LostAfter
	}
	if cfg.RecoverAfter <= 0 {
		cfg.RecoverAfter = def.RecoverAfter
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &Monitor{cfg: cfg, status: models.TrackingPresent}
}

// Observe folds one frame into the debounce counters and returns the
// resulting status.
func (m *Monitor) Observe(pose models.DetectedPose, t models.JointTriple) models.TrackingStatus {
	ok := true
	var sum float64
	for _, j := range t.Joints() {
		kp, present := pose.Joints[j]
		if !present || kp.Confidence < m.cfg.MinConfidence {
			ok = false
		}
		if present {
			sum += kp.Confidence
		}
	}
	m.confidence = sum / 3

	if ok {
		m.bad = 0
		m.good++
		if m.status == models.TrackingLost && m.good >= m.cfg.RecoverAfter {
			m.status = models.TrackingPresent
		}
	} else {
		m.good = 0
		m.bad++
		if m.status == models.TrackingPresent && m.bad >= m.cfg.LostAfter {
			m.status = models.TrackingLost
		}
	}
	return m.status
}

// Status returns the current debounced status.
func (m *Monitor) Status() models.TrackingStatus {
	return m.status
}

// Confidence is the mean confidence of the triple on the last frame.
func (m *Monitor) Confidence() float64 {
	return m.confidence
}

// Reset returns the monitor to Present with empty counters.
func (m *Monitor) Reset() {
	m.status = models.TrackingPresent
	m.bad, m.good = 0, 0
	m.confidence = 0
}
