// Package repcount turns a stream of pose frames into repetition events.
//
// A Machine normalizes its profile once, so every comparison is made against
// the numerically larger ("top") and smaller ("bottom") endpoint regardless of
// which end is anatomically the top of the exercise. Raw angles are smoothed
// before any threshold is applied, and the hysteresis dead-zone on both
// endpoints keeps jitter at the extremes from flapping the phase.
//
// A Machine is not safe for concurrent use; drive it from one goroutine.
package repcount

import (
	"github.com/claude/repcounter/internal/angle"
	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/tracking"
)

const (
	DefaultSmoothingAlpha       = 0.3
	DefaultHoldWindowFrames     = 10
	DefaultHoldToleranceDegrees = 2.0
)

// Options tunes a Machine. Zero values take the defaults.
type Options struct {
	MinConfidence        float64
	SmoothingAlpha       float64
	HoldWindowFrames     int
	HoldToleranceDegrees float64
	Tracking             tracking.Config
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		MinConfidence:        angle.DefaultMinConfidence,
		SmoothingAlpha:       DefaultSmoothingAlpha,
		HoldWindowFrames:     DefaultHoldWindowFrames,
		HoldToleranceDegrees: DefaultHoldToleranceDegrees,
		Tracking:             tracking.DefaultConfig(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinConfidence <= 0 {
		o.MinConfidence = def.MinConfidence
	}
	if o.SmoothingAlpha <= 0 || o.SmoothingAlpha >= 1 {
		o.SmoothingAlpha = def.SmoothingAlpha
	}
	if o.HoldWindowFrames <= 0 {
		o.HoldWindowFrames = def.HoldWindowFrames
	}
	if o.HoldToleranceDegrees <= 0 {
		o.HoldToleranceDegrees = def.HoldToleranceDegrees
	}
	if o.Tracking.MinConfidence <= 0 {
		o.Tracking.MinConfidence = o.MinConfidence
	}
	return o
}

// Machine is the rep phase state machine for one profile.
type Machine struct {
	profile models.CalibrationProfile
	th      models.Thresholds
	opts    Options

	monitor  *tracking.Monitor
	smoother *Smoother
	recent   *window

	state models.RepCounterState
	// held is the phase to resume once tracking returns.
	held models.Phase
}

// New creates a Machine in the Idle phase. The profile must already be valid.
func New(profile models.CalibrationProfile, opts Options) *Machine {
	opts = opts.withDefaults()
	m := &Machine{
		profile:  profile,
		th:       profile.Thresholds(),
		opts:     opts,
		monitor:  tracking.NewMonitor(opts.Tracking),
		smoother: NewSmoother(opts.SmoothingAlpha),
		recent:   newWindow(opts.HoldWindowFrames),
	}
	m.Reset()
	return m
}

// Profile returns the profile the machine was built with.
func (m *Machine) Profile() models.CalibrationProfile {
	return m.profile
}

// Thresholds returns the normalized endpoints.
func (m *Machine) Thresholds() models.Thresholds {
	return m.th
}

// State returns a copy of the current counter state.
func (m *Machine) State() models.RepCounterState {
	return m.state
}

// Reset zeroes the rep count and returns to Idle.
func (m *Machine) Reset() {
	m.state = models.RepCounterState{
		Phase:        models.PhaseIdle,
		LastFeedback: models.FeedbackCalibrating,
	}
	m.held = models.PhaseIdle
	m.monitor.Reset()
	m.smoother.Reset()
	m.recent.reset()
}

// Step processes one frame.
func (m *Machine) Step(pose models.DetectedPose) models.FrameResult {
	status := m.monitor.Observe(pose, m.profile.Joints)

	if status == models.TrackingLost {
		if m.state.Phase != models.PhaseTrackingLost {
			m.held = m.state.Phase
			m.state.Phase = models.PhaseTrackingLost
		}
		m.state.LastFeedback = models.FeedbackNoDetection
		return m.result(0, status)
	}
	if m.state.Phase == models.PhaseTrackingLost {
		m.state.Phase = m.held
	}

	raw, err := angle.FromPose(pose, m.profile.Joints, m.opts.MinConfidence)
	if err != nil {
		// Unusable frame: the monitor has already counted it, phase stays.
		m.state.LastFeedback = m.feedback(false)
		return m.result(0, status)
	}

	s := m.smoother.Update(raw)
	m.recent.push(s)
	m.state.CurrentAngleDegrees = raw
	m.state.SmoothedAngleDegrees = s

	completed := m.advance(s)
	delta := 0
	if completed {
		m.state.RepCount++
		delta = 1
	}
	m.state.LastFeedback = m.feedback(completed)
	return m.result(delta, status)
}

// advance applies one threshold comparison and reports whether a rep
// completed on this frame.
func (m *Machine) advance(s float64) bool {
	top := m.th.Upper - m.th.Hysteresis
	bottom := m.th.Lower + m.th.Hysteresis

	switch m.state.Phase {
	case models.PhaseIdle:
		if s >= top {
			m.state.Phase = models.PhaseAtTop
		}
	case models.PhaseAtTop:
		if s < top {
			m.state.Phase = models.PhaseDescending
		}
	case models.PhaseDescending:
		if s <= bottom {
			m.state.Phase = models.PhaseAtBottom
		} else if s >= top {
			m.state.Phase = models.PhaseAtTop
		}
	case models.PhaseAtBottom:
		if s > bottom {
			m.state.Phase = models.PhaseAscending
		}
	case models.PhaseAscending:
		if s >= top {
			m.state.Phase = models.PhaseAtTop
			return true
		}
		if s <= bottom {
			m.state.Phase = models.PhaseAtBottom
		}
	}
	return false
}

func (m *Machine) feedback(completed bool) models.MovementFeedback {
	if completed {
		return models.FeedbackRepCompleted
	}
	switch m.state.Phase {
	case models.PhaseDescending:
		return models.FeedbackGoingDown
	case models.PhaseAscending:
		return models.FeedbackGoingUp
	case models.PhaseAtTop:
		if m.holding() {
			return models.FeedbackHoldingTop
		}
	case models.PhaseAtBottom:
		if m.holding() {
			return models.FeedbackHoldingBottom
		}
	case models.PhaseTrackingLost:
		return models.FeedbackNoDetection
	}
	return models.FeedbackCalibrating
}

func (m *Machine) holding() bool {
	spread, ok := m.recent.spread()
	return ok && spread <= m.opts.HoldToleranceDegrees
}

func (m *Machine) result(delta int, status models.TrackingStatus) models.FrameResult {
	return models.FrameResult{
		Phase:                m.state.Phase,
		AngleDegrees:         m.state.CurrentAngleDegrees,
		SmoothedAngleDegrees: m.state.SmoothedAngleDegrees,
		Feedback:             m.state.LastFeedback,
		RepCountDelta:        delta,
		RepCount:             m.state.RepCount,
		Tracking:             status,
		TrackingConfidence:   m.monitor.Confidence(),
	}
}
