package models

import "time"

// Phase is the current segment of a repetition cycle.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseAtTop        Phase = "at_top"
	PhaseDescending   Phase = "descending"
	PhaseAtBottom     Phase = "at_bottom"
	PhaseAscending    Phase = "ascending"
	PhaseTrackingLost Phase = "tracking_lost"
)

// MovementFeedback is the per-frame guidance shown to the user.
type MovementFeedback string

const (
	FeedbackNoDetection   MovementFeedback = "no_detection"
	FeedbackCalibrating   MovementFeedback = "calibrating"
	FeedbackGoingUp       MovementFeedback = "going_up"
	FeedbackGoingDown     MovementFeedback = "going_down"
	FeedbackHoldingTop    MovementFeedback = "holding_top"
	FeedbackHoldingBottom MovementFeedback = "holding_bottom"
	FeedbackRepCompleted  MovementFeedback = "rep_completed"
)

// TrackingStatus is the debounced tracking quality.
type TrackingStatus string

const (
	TrackingPresent TrackingStatus = "present"
	TrackingLost    TrackingStatus = "lost"
)

// RepCounterState is the published state of the active counter.
type RepCounterState struct {
	Phase                Phase            `json:"phase"`
	CurrentAngleDegrees  float64          `json:"current_angle_degrees"`
	SmoothedAngleDegrees float64          `json:"smoothed_angle_degrees"`
	RepCount             int              `json:"rep_count"`
	LastFeedback         MovementFeedback `json:"last_feedback"`
}

// FrameResult is what one processed frame reports back to the caller.
type FrameResult struct {
	Phase                Phase              `json:"phase"`
	AngleDegrees         float64            `json:"angle_degrees"`
	SmoothedAngleDegrees float64            `json:"smoothed_angle_degrees"`
	Feedback             MovementFeedback   `json:"feedback"`
	RepCountDelta        int                `json:"rep_count_delta"`
	RepCount             int                `json:"rep_count"`
	Tracking             TrackingStatus     `json:"tracking"`
	TrackingConfidence   float64            `json:"tracking_confidence"`
	Calibration          *CalibrationStatus `json:"calibration,omitempty"`
}

// CalibrationStatus reports Teach Mode progress on the frame path.
type CalibrationStatus struct {
	State         string   `json:"state"`
	Joints        []Joint  `json:"joints"`
	Armed         bool     `json:"armed"`
	Samples       int      `json:"samples"`
	Progress      float64  `json:"progress"`
	TopMedian     *float64 `json:"top_median,omitempty"`
	BottomMedian  *float64 `json:"bottom_median,omitempty"`
	LastRejection string   `json:"last_rejection,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// RepEvent is pushed to subscribers each time a repetition completes.
type RepEvent struct {
	SessionID string    `json:"session_id"`
	Exercise  string    `json:"exercise"`
	RepCount  int       `json:"rep_count"`
	At        time.Time `json:"at"`
}
