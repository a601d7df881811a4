package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/teach"
	"github.com/claude/repcounter/internal/trace"
)

type exerciseRequest struct {
	Exercise string `json:"exercise"`
}

type jointsRequest struct {
	Joints  []models.Joint `json:"joints"`
	Confirm bool           `json:"confirm"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Exercise  string           `json:"exercise"`
	Mode      session.Mode     `json:"mode"`
	Previous  *session.Summary `json:"previous,omitempty"`
}

type commitResponse struct {
	Profile models.CalibrationProfile `json:"profile"`
	Session sessionResponse           `json:"session"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.profiles.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Resolve(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Manager().Snapshot())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	var (
		h    *session.Handle
		prev *session.Summary
		err  error
	)
	ctx := r.Context()
	if derr := s.runner.Do(ctx, func(m *session.Manager) {
		h, prev, err = m.StartExercise(ctx, req.Exercise)
	}); derr != nil {
		err = derr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(h, prev))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var f trace.Frame
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	res, err := s.runner.Submit(r.Context(), f.Pose())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var (
		sum *session.Summary
		err error
	)
	if derr := s.runner.Do(r.Context(), func(m *session.Manager) {
		h := m.Active()
		if h == nil {
			// A repeated stop reports the session it already ended.
			if sum = m.Last(); sum == nil {
				err = session.ErrNoActiveSession
			}
			return
		}
		m.Stop(h)
		sum = h.Summary()
	}); derr != nil {
		err = derr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTeachStart(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if profiles.NormalizeName(req.Exercise) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercise is required"})
		return
	}

	var (
		h    *session.Handle
		prev *session.Summary
	)
	if err := s.runner.Do(r.Context(), func(m *session.Manager) {
		h, prev = m.StartTeach(req.Exercise)
	}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(h, prev))
}

func (s *Server) handleTeachJoints(w http.ResponseWriter, r *http.Request) {
	var req jointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.withCalibrator(w, r, func(c *teach.Calibrator) error {
		c.ClearJoints()
		for _, j := range req.Joints {
			c.SelectJoint(j)
		}
		if req.Confirm {
			return c.ConfirmJoints()
		}
		return nil
	})
}

func (s *Server) handleTeachCapture(w http.ResponseWriter, r *http.Request) {
	s.withCalibrator(w, r, func(c *teach.Calibrator) error {
		return c.Capture()
	})
}

// withCalibrator runs fn against the active teach session and responds with
// the calibrator status.
func (s *Server) withCalibrator(w http.ResponseWriter, r *http.Request, fn func(*teach.Calibrator) error) {
	var (
		status models.CalibrationStatus
		err    error
	)
	if derr := s.runner.Do(r.Context(), func(m *session.Manager) {
		var c *teach.Calibrator
		if c, err = m.Calibrator(m.Active()); err != nil {
			return
		}
		err = fn(c)
		status = c.Status()
	}); derr != nil {
		err = derr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTeachCommit persists the taught profile and immediately starts
// counting with it.
func (s *Server) handleTeachCommit(w http.ResponseWriter, r *http.Request) {
	var (
		resp commitResponse
		err  error
	)
	ctx := r.Context()
	if derr := s.runner.Do(ctx, func(m *session.Manager) {
		var saved models.CalibrationProfile
		if saved, err = m.CommitTeach(ctx, m.Active()); err != nil {
			return
		}
		h, prev, serr := m.Start(saved)
		if serr != nil {
			err = serr
			return
		}
		resp = commitResponse{Profile: saved, Session: newSessionResponse(h, prev)}
	}); derr != nil {
		err = derr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func newSessionResponse(h *session.Handle, prev *session.Summary) sessionResponse {
	return sessionResponse{
		SessionID: h.ID(),
		Exercise:  h.Exercise(),
		Mode:      h.Mode(),
		Previous:  prev,
	}
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, profiles.ErrUnsupportedExercise):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, session.ErrNotTeaching),
		errors.Is(err, teach.ErrWrongState),
		errors.Is(err, teach.ErrIncomplete):
		return http.StatusConflict
	case errors.Is(err, teach.ErrCalibrationDegenerate),
		errors.Is(err, models.ErrDegenerateProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrRunnerStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
