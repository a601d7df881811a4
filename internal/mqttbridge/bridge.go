// Package mqttbridge connects the session runner to an MQTT broker: pose
// frames arrive on one topic and every completed rep is published on
// another.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/session"
	"github.com/claude/repcounter/internal/trace"
)

// Config names the broker and topics.
type Config struct {
	Broker     string
	ClientID   string
	PoseTopic  string
	EventTopic string
}

// Submitter feeds frames to the active session.
type Submitter interface {
	Submit(ctx context.Context, pose models.DetectedPose) (models.FrameResult, error)
}

// EventSource delivers rep events.
type EventSource interface {
	Subscribe(buffer int) (<-chan models.RepEvent, func())
}

const publishTimeout = 5 * time.Second

// Bridge relays between MQTT and the session runner.
type Bridge struct {
	cfg    Config
	client mqtt.Client
	frames Submitter
	events EventSource
	log    *slog.Logger
	ctx    context.Context
}

// New creates a Bridge with a paho client for cfg. Nothing connects until Run.
func New(cfg Config, frames Submitter, events EventSource, log *slog.Logger) *Bridge {
	b := newBridge(cfg, nil, frames, events, log)
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
		})
	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(cfg Config, client mqtt.Client, frames Submitter, events EventSource, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Bridge{
		cfg:    cfg,
		client: client,
		frames: frames,
		events: events,
		log:    log,
		ctx:    context.Background(),
	}
}

// Run connects, relays until ctx is cancelled, then disconnects.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx = ctx
	events, unsubscribe := b.events.Subscribe(64)
	defer unsubscribe()

	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to mqtt broker %s: %w", b.cfg.Broker, token.Error())
	}
	defer b.client.Disconnect(250)
	b.log.Info("mqtt bridge connected", "broker", b.cfg.Broker,
		"pose_topic", b.cfg.PoseTopic, "event_topic", b.cfg.EventTopic)

	for {
		select {
		case <-ctx.Done():
			b.log.Info("mqtt bridge stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.publish(ev)
		}
	}
}

// onConnect (re)subscribes to the pose topic after every connect.
func (b *Bridge) onConnect(c mqtt.Client) {
	token := c.Subscribe(b.cfg.PoseTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		b.handlePose(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		b.log.Error("mqtt subscribe failed", "topic", b.cfg.PoseTopic, "error", token.Error())
	}
}

func (b *Bridge) handlePose(payload []byte) {
	pose, err := trace.Decode(payload)
	if err != nil {
		b.log.Warn("mqtt: bad pose frame", "topic", b.cfg.PoseTopic, "error", err)
		return
	}
	if _, err := b.frames.Submit(b.ctx, pose); err != nil {
		if errors.Is(err, session.ErrNoActiveSession) || errors.Is(err, session.ErrSessionClosed) {
			b.log.Debug("mqtt: frame without session")
			return
		}
		b.log.Warn("mqtt: frame not processed", "error", err)
	}
}

func (b *Bridge) publish(ev models.RepEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("mqtt: encoding rep event", "error", err)
		return
	}
	token := b.client.Publish(b.cfg.EventTopic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.log.Warn("mqtt: publish timed out", "topic", b.cfg.EventTopic)
		return
	}
	if err := token.Error(); err != nil {
		b.log.Warn("mqtt: publish failed", "topic", b.cfg.EventTopic, "error", err)
	}
}
