// Package session owns the active rep counting or Teach Mode session and
// routes pose frames to it.
//
// Mutating methods on Manager are meant to be called from a single goroutine
// (see Runner). Snapshot and Subscribe are safe from anywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcounter/internal/angle"
	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/repcount"
	"github.com/claude/repcounter/internal/teach"
	"github.com/claude/repcounter/internal/tracking"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrNotTeaching     = errors.New("session is not in teach mode")
	ErrNoActiveSession = errors.New("no active session")
)

// Mode distinguishes counting sessions from Teach Mode.
type Mode string

const (
	ModeCounting Mode = "counting"
	ModeTeaching Mode = "teaching"
)

// Profiles resolves and persists calibration profiles.
type Profiles interface {
	Resolve(ctx context.Context, name string) (models.CalibrationProfile, error)
	Save(ctx context.Context, p models.CalibrationProfile) (models.CalibrationProfile, error)
}

// Options bundles the tuning for both session modes.
type Options struct {
	Counter repcount.Options
	Teach   teach.Options
	// HysteresisDegrees, when positive, replaces the dead-zone of every
	// profile a counting session starts with.
	HysteresisDegrees float64
}

// Handle identifies one session. It stays valid after the session ends so
// Stop can be repeated.
type Handle struct {
	id        string
	mode      Mode
	exercise  string
	startedAt time.Time
	summary   *Summary
}

func (h *Handle) ID() string       { return h.id }
func (h *Handle) Mode() Mode       { return h.mode }
func (h *Handle) Exercise() string { return h.exercise }

// Summary returns the final record once the session has ended, or nil.
func (h *Handle) Summary() *Summary { return h.summary }

// Summary is the final record of a retired session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Exercise  string    `json:"exercise"`
	Mode      Mode      `json:"mode"`
	RepCount  int       `json:"rep_count"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Snapshot is the published view of the current session.
type Snapshot struct {
	SessionID   string                    `json:"session_id,omitempty"`
	Exercise    string                    `json:"exercise,omitempty"`
	Mode        Mode                      `json:"mode,omitempty"`
	Active      bool                      `json:"active"`
	State       models.RepCounterState    `json:"state"`
	Tracking    models.TrackingStatus     `json:"tracking,omitempty"`
	Calibration *models.CalibrationStatus `json:"calibration,omitempty"`
}

type active struct {
	handle  *Handle
	machine *repcount.Machine
	calib   *teach.Calibrator
	monitor *tracking.Monitor
}

func (a *active) repCount() int {
	if a.machine != nil {
		return a.machine.State().RepCount
	}
	return 0
}

// Manager holds at most one active session.
type Manager struct {
	profiles Profiles
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	cur      *active
	last     *Summary
	snapshot atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[int]chan models.RepEvent
	next int
}

// NewManager creates a Manager. profiles may be nil if only Start is used.
func NewManager(p Profiles, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Teach.MinConfidence <= 0 {
		opts.Teach.MinConfidence = angle.DefaultMinConfidence
	}
	m := &Manager{
		profiles: p,
		opts:     opts,
		log:      log,
		now:      time.Now,
		subs:     make(map[int]chan models.RepEvent),
	}
	m.snapshot.Store(&Snapshot{State: models.RepCounterState{Phase: models.PhaseIdle}})
	return m
}

// Active returns the handle of the current session, or nil.
func (m *Manager) Active() *Handle {
	if m.cur == nil {
		return nil
	}
	return m.cur.handle
}

func (m *Manager) newHandle(mode Mode, exercise string) *Handle {
	return &Handle{
		id:        uuid.NewString(),
		mode:      mode,
		exercise:  exercise,
		startedAt: m.now().UTC(),
	}
}

// Start begins counting with profile. Any active session is retired first
// and its summary returned.
func (m *Manager) Start(profile models.CalibrationProfile) (*Handle, *Summary, error) {
	if err := profile.Validate(); err != nil {
		return nil, nil, fmt.Errorf("starting %q: %w", profile.Name, err)
	}
	if m.opts.HysteresisDegrees > 0 {
		profile.HysteresisDegrees = m.opts.HysteresisDegrees
	}
	prev := m.retire()

	h := m.newHandle(ModeCounting, profile.Name)
	m.cur = &active{
		handle:  h,
		machine: repcount.New(profile, m.opts.Counter),
	}
	m.log.Info("session started", "session_id", h.id, "exercise", h.exercise, "mode", h.mode,
		"top", profile.TopAngleDegrees, "bottom", profile.BottomAngleDegrees, "source", profile.Source)
	m.publish(nil)
	return h, prev, nil
}

// StartExercise resolves name and starts counting with it. On
// ErrUnsupportedExercise nothing changes.
func (m *Manager) StartExercise(ctx context.Context, name string) (*Handle, *Summary, error) {
	if m.profiles == nil {
		return nil, nil, fmt.Errorf("resolving %q: %w", name, profiles.ErrUnsupportedExercise)
	}
	p, err := m.profiles.Resolve(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return m.Start(p)
}

// StartTeach begins a Teach Mode session for name.
func (m *Manager) StartTeach(name string) (*Handle, *Summary) {
	prev := m.retire()

	name = profiles.NormalizeName(name)
	h := m.newHandle(ModeTeaching, name)
	m.cur = &active{
		handle:  h,
		calib:   teach.New(name, m.opts.Teach),
		monitor: tracking.NewMonitor(m.opts.Counter.Tracking),
	}
	m.log.Info("session started", "session_id", h.id, "exercise", name, "mode", h.mode)
	m.publish(nil)
	return h, prev
}

func (m *Manager) lookup(h *Handle) (*active, error) {
	if h == nil || m.cur == nil || m.cur.handle != h {
		return nil, ErrSessionClosed
	}
	return m.cur, nil
}

// Calibrator exposes the Teach Mode calibrator of h for joint selection and
// capture.
func (m *Manager) Calibrator(h *Handle) (*teach.Calibrator, error) {
	a, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	if a.calib == nil {
		return nil, ErrNotTeaching
	}
	return a.calib, nil
}

// CommitTeach persists the profile derived by h's calibrator. The session
// stays open.
func (m *Manager) CommitTeach(ctx context.Context, h *Handle) (models.CalibrationProfile, error) {
	c, err := m.Calibrator(h)
	if err != nil {
		return models.CalibrationProfile{}, err
	}
	p, err := c.Result()
	if err != nil {
		return models.CalibrationProfile{}, fmt.Errorf("committing %q: %w", c.Name(), err)
	}
	if m.profiles == nil {
		return models.CalibrationProfile{}, fmt.Errorf("committing %q: no profile store", c.Name())
	}
	saved, err := m.profiles.Save(ctx, p)
	if err != nil {
		return models.CalibrationProfile{}, fmt.Errorf("committing %q: %w", c.Name(), err)
	}
	m.log.Info("teach profile committed", "session_id", h.id, "exercise", saved.Name,
		"top", saved.TopAngleDegrees, "bottom", saved.BottomAngleDegrees, "inverted", saved.IsInverted)
	m.publish(nil)
	return saved, nil
}

// ProcessFrame runs one pose frame through the session identified by h.
func (m *Manager) ProcessFrame(h *Handle, pose models.DetectedPose) (models.FrameResult, error) {
	a, err := m.lookup(h)
	if err != nil {
		return models.FrameResult{}, err
	}
	if a.calib != nil {
		res := m.teachFrame(a, pose)
		m.publish(&res)
		return res, nil
	}

	res := a.machine.Step(pose)
	m.publish(&res)
	if res.RepCountDelta > 0 {
		at := pose.Timestamp
		if at.IsZero() {
			at = m.now()
		}
		m.broadcast(models.RepEvent{
			SessionID: h.id,
			Exercise:  h.exercise,
			RepCount:  res.RepCount,
			At:        at.UTC(),
		})
	}
	return res, nil
}

func (m *Manager) teachFrame(a *active, pose models.DetectedPose) models.FrameResult {
	res := models.FrameResult{
		Phase:    models.PhaseIdle,
		Feedback: models.FeedbackCalibrating,
		Tracking: models.TrackingPresent,
	}
	triple, ok := a.calib.Triple()
	if ok {
		res.Tracking = a.monitor.Observe(pose, triple)
		res.TrackingConfidence = a.monitor.Confidence()
		if raw, err := angle.FromPose(pose, triple, m.opts.Teach.MinConfidence); err == nil {
			res.AngleDegrees = raw
		}

		err := a.calib.Observe(pose)
		switch {
		case errors.Is(err, angle.ErrInsufficientConfidence):
			res.Feedback = models.FeedbackNoDetection
		case errors.Is(err, teach.ErrCalibrationSampleRejected):
			m.log.Info("teach capture rejected", "session_id", a.handle.id, "error", err)
		case errors.Is(err, teach.ErrCalibrationDegenerate):
			m.log.Warn("teach calibration failed", "session_id", a.handle.id, "error", err)
		case err != nil:
			m.log.Debug("teach frame skipped", "session_id", a.handle.id, "error", err)
		}
		res.SmoothedAngleDegrees = a.calib.Smoothed()
	}
	if res.Tracking == models.TrackingLost {
		res.Feedback = models.FeedbackNoDetection
	}
	status := a.calib.Status()
	res.Calibration = &status
	return res
}

// Stop ends the session identified by h and returns its final rep count.
// Repeated calls return the same count. Any in-progress Teach capture is
// discarded.
func (m *Manager) Stop(h *Handle) int {
	if h == nil {
		return 0
	}
	if h.summary == nil {
		if m.cur == nil || m.cur.handle != h {
			return 0
		}
		m.retire()
	}
	return h.summary.RepCount
}

// Last returns the summary of the most recently retired session, or nil.
func (m *Manager) Last() *Summary {
	return m.last
}

// retire ends the active session, if any, and returns its summary.
func (m *Manager) retire() *Summary {
	a := m.cur
	if a == nil {
		return nil
	}
	m.cur = nil
	sum := &Summary{
		SessionID: a.handle.id,
		Exercise:  a.handle.exercise,
		Mode:      a.handle.mode,
		RepCount:  a.repCount(),
		StartedAt: a.handle.startedAt,
		EndedAt:   m.now().UTC(),
	}
	a.handle.summary = sum
	m.last = sum
	m.log.Info("session stopped", "session_id", sum.SessionID, "exercise", sum.Exercise,
		"mode", sum.Mode, "reps", sum.RepCount)

	last := *m.snapshot.Load()
	last.Active = false
	last.Calibration = nil
	m.snapshot.Store(&last)
	return sum
}

func (m *Manager) publish(res *models.FrameResult) {
	a := m.cur
	snap := &Snapshot{
		SessionID: a.handle.id,
		Exercise:  a.handle.exercise,
		Mode:      a.handle.mode,
		Active:    true,
		State:     models.RepCounterState{Phase: models.PhaseIdle},
		Tracking:  models.TrackingPresent,
	}
	if a.machine != nil {
		snap.State = a.machine.State()
	}
	if res != nil {
		snap.Tracking = res.Tracking
		if a.calib != nil {
			snap.State.CurrentAngleDegrees = res.AngleDegrees
			snap.State.SmoothedAngleDegrees = res.SmoothedAngleDegrees
			snap.State.LastFeedback = res.Feedback
		}
	}
	if a.calib != nil {
		st := a.calib.Status()
		snap.Calibration = &st
	}
	m.snapshot.Store(snap)
}

// Snapshot returns the most recently published session state.
func (m *Manager) Snapshot() Snapshot {
	s := *m.snapshot.Load()
	if s.Calibration != nil {
		c := *s.Calibration
		s.Calibration = &c
	}
	return s
}

// Subscribe registers for rep events. Delivery never blocks the frame path:
// when the buffer is full the event is dropped for that subscriber.
func (m *Manager) Subscribe(buffer int) (<-chan models.RepEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.RepEvent, buffer)

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) broadcast(ev models.RepEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Warn("rep event dropped, subscriber full", "subscriber", id, "session_id", ev.SessionID)
		}
	}
}
