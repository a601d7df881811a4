package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/repcounter/internal/models"
)

// Pusher replays a recorded trace against a server session.
type Pusher struct {
	client *Client
	log    *slog.Logger
	// Realtime paces frames by their recorded timestamps.
	Realtime bool
	sleep    func(context.Context, time.Duration) error
}

// NewPusher creates a Pusher over client.
func NewPusher(client *Client, log *slog.Logger) *Pusher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Pusher{client: client, log: log, sleep: sleepCtx}
}

// Push starts a session for exercise, sends every frame, and stops the
// session. The server's summary is returned. If a frame fails the session is
// still stopped.
func (p *Pusher) Push(ctx context.Context, exercise string, poses []models.DetectedPose) (Summary, error) {
	s, err := p.client.StartSession(ctx, exercise)
	if err != nil {
		return Summary{}, fmt.Errorf("starting session: %w", err)
	}
	p.log.Info("session started", "session_id", s.SessionID, "exercise", s.Exercise, "frames", len(poses))

	sendErr := p.send(ctx, poses)

	// Stop on a fresh context so a cancelled push still closes the session.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	sum, err := p.client.StopSession(stopCtx)
	if sendErr != nil {
		return sum, sendErr
	}
	if err != nil {
		return Summary{}, fmt.Errorf("stopping session: %w", err)
	}
	p.log.Info("session stopped", "session_id", sum.SessionID, "reps", sum.RepCount)
	return sum, nil
}

func (p *Pusher) send(ctx context.Context, poses []models.DetectedPose) error {
	for i, pose := range poses {
		if p.Realtime && i > 0 {
			if gap := pose.Timestamp.Sub(poses[i-1].Timestamp); gap > 0 {
				if err := p.sleep(ctx, gap); err != nil {
					return err
				}
			}
		}
		res, err := p.client.SendFrame(ctx, pose)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if res.RepCountDelta > 0 {
			p.log.Info("rep", "count", res.RepCount, "frame", i)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
