// Package teach implements Teach Mode: the guided flow that turns a live
// demonstration of an exercise into a new calibration profile.
//
// The flow is driven entirely by the frame path. Capture windows are measured
// on frame timestamps and evaluated on every call, so nothing here sleeps or
// starts goroutines.
package teach

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/claude/repcounter/internal/angle"
	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/repcount"
)

var (
	// ErrCalibrationSampleRejected means the angle moved too much during a
	// capture window; the same endpoint is retried.
	ErrCalibrationSampleRejected = errors.New("calibration sample rejected")
	// ErrCalibrationDegenerate means the two captured endpoints are too close
	// together to count reps; no profile is produced.
	ErrCalibrationDegenerate = errors.New("calibration degenerate")
	// ErrWrongState is returned for a call that does not apply to the
	// current step of the flow.
	ErrWrongState = errors.New("not valid in current teach state")
	// ErrIncomplete is returned by Result before both endpoints are captured.
	ErrIncomplete = errors.New("calibration not complete")
)

// State is the step of the Teach Mode flow.
type State string

const (
	StateSelectingJoints State = "selecting_joints"
	StateCapturingTop    State = "capturing_top"
	StateCapturingBottom State = "capturing_bottom"
	StateComplete        State = "complete"
	StateFailed          State = "failed"
)

const (
	// NominalFrameInterval stands in for the frame spacing when a sample's
	// timestamp does not move forward.
	NominalFrameInterval = time.Second / 30
	// MinSampleSpacing is the smallest gap between samples taken at face
	// value.
	MinSampleSpacing = 2 * time.Millisecond
	// MaxWindowSamples closes a capture window regardless of elapsed time.
	MaxWindowSamples = 1024
)

// Options tunes the calibrator. Zero values take the defaults.
type Options struct {
	MinConfidence    float64
	SmoothingAlpha   float64
	CaptureWindow    time.Duration
	MaxSpreadDegrees float64
	MinRangeDegrees  float64
}

// DefaultOptions returns the standard Teach Mode settings.
func DefaultOptions() Options {
	return Options{
		MinConfidence:    angle.DefaultMinConfidence,
		SmoothingAlpha:   repcount.DefaultSmoothingAlpha,
		CaptureWindow:    1500 * time.Millisecond,
		MaxSpreadDegrees: 15,
		MinRangeDegrees:  models.MinProfileRangeDegrees,
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
	if o.CaptureWindow <= 0 {
		o.CaptureWindow = def.CaptureWindow
	}
	if o.MaxSpreadDegrees <= 0 {
		o.MaxSpreadDegrees = def.MaxSpreadDegrees
	}
	if o.MinRangeDegrees <= 0 {
		o.MinRangeDegrees = def.MinRangeDegrees
	}
	return o
}

type sample struct {
	at    time.Time
	angle float64
}

// Calibrator walks one exercise through joint selection and the two
// endpoint captures. Not safe for concurrent use.
type Calibrator struct {
	name string
	opts Options

	state    State
	joints   []models.Joint
	armed    bool
	smoother *repcount.Smoother
	samples  []sample

	topMedian    *float64
	bottomMedian *float64
	rejection    error

	profile models.CalibrationProfile
	err     error
	now     func() time.Time
}

// New starts a Teach Mode flow for the named exercise.
func New(name string, opts Options) *Calibrator {
	opts = opts.withDefaults()
	return &Calibrator{
		name:     name,
		opts:     opts,
		state:    StateSelectingJoints,
		smoother: repcount.NewSmoother(opts.SmoothingAlpha),
		now:      time.Now,
	}
}

// Name is the exercise being taught.
func (c *Calibrator) Name() string {
	return c.name
}

// State returns the current step.
func (c *Calibrator) State() State {
	return c.state
}

// SelectJoint adds a joint to the selection. Only three distinct joints are
// accepted; anything beyond that is ignored until ClearJoints.
func (c *Calibrator) SelectJoint(j models.Joint) bool {
	if c.state != StateSelectingJoints || j == "" || len(c.joints) == 3 {
		return false
	}
	if slices.Contains(c.joints, j) {
		return false
	}
	c.joints = append(c.joints, j)
	return true
}

// ClearJoints empties the selection.
func (c *Calibrator) ClearJoints() {
	if c.state == StateSelectingJoints {
		c.joints = nil
	}
}

// Joints returns the current selection in order (A, vertex, C).
func (c *Calibrator) Joints() []models.Joint {
	return slices.Clone(c.joints)
}

func (c *Calibrator) triple() models.JointTriple {
	return models.JointTriple{A: c.joints[0], Vertex: c.joints[1], C: c.joints[2]}
}

// Triple returns the confirmed joint triple. ok is false until
// ConfirmJoints succeeds.
func (c *Calibrator) Triple() (t models.JointTriple, ok bool) {
	if c.state == StateSelectingJoints {
		return models.JointTriple{}, false
	}
	return c.triple(), true
}

// Smoothed returns the latest smoothed angle.
func (c *Calibrator) Smoothed() float64 {
	return c.smoother.Value()
}

// ConfirmJoints locks the selection and moves on to the top capture.
func (c *Calibrator) ConfirmJoints() error {
	if c.state != StateSelectingJoints {
		return fmt.Errorf("confirm joints in %s: %w", c.state, ErrWrongState)
	}
	if len(c.joints) != 3 {
		return fmt.Errorf("need 3 joints, have %d: %w", len(c.joints), ErrWrongState)
	}
	c.state = StateCapturingTop
	c.smoother.Reset()
	return nil
}

// Capture arms the current endpoint: samples are recorded from the next
// frame on.
func (c *Calibrator) Capture() error {
	if c.state != StateCapturingTop && c.state != StateCapturingBottom {
		return fmt.Errorf("capture in %s: %w", c.state, ErrWrongState)
	}
	c.armed = true
	c.samples = c.samples[:0]
	return nil
}

// Observe feeds one pose frame. It returns ErrInsufficientConfidence for an
// unusable frame, ErrCalibrationSampleRejected when a window is discarded,
// and ErrCalibrationDegenerate when the flow fails; all other frames return
// nil.
func (c *Calibrator) Observe(pose models.DetectedPose) error {
	if c.state != StateCapturingTop && c.state != StateCapturingBottom {
		return nil
	}
	raw, err := angle.FromPose(pose, c.triple(), c.opts.MinConfidence)
	if err != nil {
		return err
	}
	smoothed := c.smoother.Update(raw)
	if !c.armed {
		return nil
	}
	at := pose.Timestamp
	if at.IsZero() {
		at = c.now()
	}
	return c.AddSample(at, smoothed)
}

// AddSample records one smoothed angle for the armed endpoint and evaluates
// the window.
func (c *Calibrator) AddSample(at time.Time, deg float64) error {
	if !c.armed || (c.state != StateCapturingTop && c.state != StateCapturingBottom) {
		return fmt.Errorf("sample in %s: %w", c.state, ErrWrongState)
	}
	if n := len(c.samples); n > 0 {
		// Timestamps that repeat, run backwards or arrive in a burst advance
		// by one nominal frame.
		if prev := c.samples[n-1].at; at.Sub(prev) < MinSampleSpacing {
			at = prev.Add(NominalFrameInterval)
		}
	}
	c.samples = append(c.samples, sample{at: at, angle: deg})
	if at.Sub(c.samples[0].at) < c.opts.CaptureWindow && len(c.samples) < MaxWindowSamples {
		return nil
	}

	median, spread := summarize(c.samples)
	c.samples = c.samples[:0]
	if spread > c.opts.MaxSpreadDegrees {
		c.rejection = fmt.Errorf("%s: angle moved %.1f° (max %.1f°): %w",
			c.state, spread, c.opts.MaxSpreadDegrees, ErrCalibrationSampleRejected)
		return c.rejection
	}
	c.rejection = nil

	if c.state == StateCapturingTop {
		c.topMedian = &median
		c.state = StateCapturingBottom
		c.armed = false
		return nil
	}
	c.bottomMedian = &median
	c.armed = false
	return c.derive()
}

// derive builds the profile from the two medians. The larger median is
// always stored as the top angle; IsInverted records that the endpoint the
// user demonstrated as "top" was the smaller raw angle.
func (c *Calibrator) derive() error {
	top, bottom := *c.topMedian, *c.bottomMedian
	if math.Abs(top-bottom) < c.opts.MinRangeDegrees {
		c.state = StateFailed
		c.err = fmt.Errorf("endpoints %.1f° and %.1f° are %.1f° apart (min %.1f°): %w",
			top, bottom, math.Abs(top-bottom), c.opts.MinRangeDegrees, ErrCalibrationDegenerate)
		return c.err
	}

	c.profile = models.CalibrationProfile{
		Name:               c.name,
		DisplayName:        c.name,
		Joints:             c.triple(),
		TopAngleDegrees:    math.Max(top, bottom),
		BottomAngleDegrees: math.Min(top, bottom),
		IsInverted:         top < bottom,
		HysteresisDegrees:  models.DefaultHysteresisDegrees,
		Source:             models.SourceTaught,
	}
	c.state = StateComplete
	return nil
}

// Result returns the derived profile once both endpoints are captured.
func (c *Calibrator) Result() (models.CalibrationProfile, error) {
	switch c.state {
	case StateComplete:
		return c.profile, nil
	case StateFailed:
		return models.CalibrationProfile{}, c.err
	default:
		return models.CalibrationProfile{}, fmt.Errorf("%s: %w", c.state, ErrIncomplete)
	}
}

// Status reports progress for the UI.
func (c *Calibrator) Status() models.CalibrationStatus {
	st := models.CalibrationStatus{
		State:        string(c.state),
		Joints:       c.Joints(),
		Armed:        c.armed,
		Samples:      len(c.samples),
		TopMedian:    c.topMedian,
		BottomMedian: c.bottomMedian,
	}
	if n := len(c.samples); n > 0 {
		elapsed := c.samples[n-1].at.Sub(c.samples[0].at)
		st.Progress = math.Min(1, float64(elapsed)/float64(c.opts.CaptureWindow))
	}
	if c.rejection != nil {
		st.LastRejection = c.rejection.Error()
	}
	if c.err != nil {
		st.Error = c.err.Error()
	}
	return st
}

// summarize returns the median and the max-min spread of the samples.
func summarize(samples []sample) (median, spread float64) {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.angle
	}
	slices.Sort(vals)
	n := len(vals)
	if n%2 == 1 {
		median = vals[n/2]
	} else {
		median = (vals[n/2-1] + vals[n/2]) / 2
	}
	return median, vals[n-1] - vals[0]
}
