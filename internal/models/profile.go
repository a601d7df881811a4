package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MinProfileRangeDegrees is the smallest usable distance between the two
// endpoints of a profile.
const MinProfileRangeDegrees = 10.0

// DefaultHysteresisDegrees applies when a profile leaves hysteresis unset.
const DefaultHysteresisDegrees = 8.0

// ErrDegenerateProfile is returned for profiles whose endpoints are too close
// together to separate a rep from noise.
var ErrDegenerateProfile = errors.New("degenerate calibration profile")

// ProfileSource tags where a profile came from.
type ProfileSource string

const (
	SourceBuiltIn ProfileSource = "builtin"
	SourceTaught  ProfileSource = "taught"
)

// CalibrationProfile configures rep counting for one exercise.
//
// TopAngleDegrees and BottomAngleDegrees are raw joint angles. IsInverted
// records that the anatomical top of the rep is the smaller raw angle; it is
// presentation metadata only and does not change how reps are counted.
type CalibrationProfile struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	DisplayName        string        `json:"display_name"`
	Joints             JointTriple   `json:"joints"`
	TopAngleDegrees    float64       `json:"top_angle_degrees"`
	BottomAngleDegrees float64       `json:"bottom_angle_degrees"`
	IsInverted         bool          `json:"is_inverted"`
	HysteresisDegrees  float64       `json:"hysteresis_degrees"`
	Source             ProfileSource `json:"source"`
	CreatedAt          time.Time     `json:"created_at,omitzero"`
}

// Validate checks the joint selection and the endpoint separation.
func (p CalibrationProfile) Validate() error {
	if !p.Joints.Valid() {
		return fmt.Errorf("profile %q: joints must be three distinct landmarks", p.Name)
	}
	if r := math.Abs(p.TopAngleDegrees - p.BottomAngleDegrees); r < MinProfileRangeDegrees {
		return fmt.Errorf("profile %q: endpoints %.1f° apart: %w", p.Name, r, ErrDegenerateProfile)
	}
	if p.HysteresisDegrees < 0 {
		return fmt.Errorf("profile %q: negative hysteresis", p.Name)
	}
	return nil
}

// Hysteresis returns the configured dead-zone or the default.
func (p CalibrationProfile) Hysteresis() float64 {
	if p.HysteresisDegrees <= 0 {
		return DefaultHysteresisDegrees
	}
	return p.HysteresisDegrees
}

// Thresholds are the endpoints of a profile after normalization: Upper is
// always the numerically larger angle.
type Thresholds struct {
	Upper      float64
	Lower      float64
	Hysteresis float64
}

// Thresholds resolves the profile into larger/smaller endpoints so the
// counting logic never depends on which end is the anatomical top.
func (p CalibrationProfile) Thresholds() Thresholds {
	upper, lower := p.TopAngleDegrees, p.BottomAngleDegrees
	if upper < lower {
		upper, lower = lower, upper
	}
	return Thresholds{Upper: upper, Lower: lower, Hysteresis: p.Hysteresis()}
}
