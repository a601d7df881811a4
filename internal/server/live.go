package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; access is gated by tsnet
	},
}

// liveMessage is one push on the live stream: either a state snapshot or a
// completed rep.
type liveMessage struct {
	Type  string            `json:"type"` // "state" or "rep"
	State *session.Snapshot `json:"state,omitempty"`
	Rep   *models.RepEvent  `json:"rep,omitempty"`
}

const liveWriteTimeout = 5 * time.Second

// handleLive streams session snapshots whenever they change, plus every rep
// event, until the client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("live: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := s.runner.Manager().Subscribe(16)
	defer unsubscribe()

	// The client never sends anything meaningful; reading detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("live: websocket read error", "error", err)
				}
				return
			}
		}
	}()

	send := func(msg liveMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug("live: write failed", "error", err)
			return false
		}
		return true
	}

	last := s.runner.Manager().Snapshot()
	if !send(liveMessage{Type: "state", State: &last}) {
		return
	}

	ticker := time.NewTicker(s.livePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !send(liveMessage{Type: "rep", Rep: &ev}) {
				return
			}
		case <-ticker.C:
			snap := s.runner.Manager().Snapshot()
			if sameSnapshot(snap, last) {
				continue
			}
			last = snap
			if !send(liveMessage{Type: "state", State: &snap}) {
				return
			}
		}
	}
}

func sameSnapshot(a, b session.Snapshot) bool {
	if a.SessionID != b.SessionID || a.Active != b.Active || a.State != b.State || a.Tracking != b.Tracking {
		return false
	}
	if (a.Calibration == nil) != (b.Calibration == nil) {
		return false
	}
	if a.Calibration != nil {
		return a.Calibration.State == b.Calibration.State &&
			a.Calibration.Samples == b.Calibration.Samples &&
			a.Calibration.Armed == b.Calibration.Armed
	}
	return true
}
