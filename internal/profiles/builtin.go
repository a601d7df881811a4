// Package profiles holds the built-in exercise calibration profiles and the
// registry that layers user-taught profiles over them.
package profiles

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/claude/repcounter/internal/models"
)

// ErrUnsupportedExercise means no profile exists for the requested name.
var ErrUnsupportedExercise = errors.New("unsupported exercise")

// NormalizeName lower-cases and trims an exercise name and collapses inner
// whitespace to single spaces.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func builtin(name, display string, a, v, c models.Joint, top, bottom float64, inverted bool) models.CalibrationProfile {
	return models.CalibrationProfile{
		ID:                 "builtin:" + name,
		Name:               name,
		DisplayName:        display,
		Joints:             models.JointTriple{A: a, Vertex: v, C: c},
		TopAngleDegrees:    top,
		BottomAngleDegrees: bottom,
		IsInverted:         inverted,
		HysteresisDegrees:  models.DefaultHysteresisDegrees,
		Source:             models.SourceBuiltIn,
	}
}

// builtinProfiles is keyed by normalized exercise name. The angles are
// hand-tuned starting points; Teach Mode overrides them per installation.
var builtinProfiles = map[string]models.CalibrationProfile{
	"squat": builtin("squat", "Squat",
		models.JointLeftHip, models.JointLeftKnee, models.JointLeftAnkle, 170, 80, false),
	// Curls finish flexed, so the anatomical top is the smaller angle.
	"bicep curl": builtin("bicep curl", "Bicep Curl",
		models.JointLeftShoulder, models.JointLeftElbow, models.JointLeftWrist, 160, 40, true),
	"push-up": builtin("push-up", "Push-Up",
		models.JointLeftShoulder, models.JointLeftElbow, models.JointLeftWrist, 165, 80, false),
	"shoulder press": builtin("shoulder press", "Shoulder Press",
		models.JointLeftShoulder, models.JointLeftElbow, models.JointLeftWrist, 165, 75, false),
	"lunge": builtin("lunge", "Lunge",
		models.JointLeftHip, models.JointLeftKnee, models.JointLeftAnkle, 170, 95, false),
	"deadlift": builtin("deadlift", "Deadlift",
		models.JointLeftShoulder, models.JointLeftHip, models.JointLeftKnee, 170, 95, false),
	"lateral raise": builtin("lateral raise", "Lateral Raise",
		models.JointLeftHip, models.JointLeftShoulder, models.JointLeftElbow, 85, 20, true),
	"tricep extension": builtin("tricep extension", "Tricep Extension",
		models.JointLeftShoulder, models.JointLeftElbow, models.JointLeftWrist, 165, 60, false),
}

// BuiltIn returns the shipped profile for name. Lookup is exact on the
// normalized name.
func BuiltIn(name string) (models.CalibrationProfile, error) {
	key := NormalizeName(name)
	p, ok := builtinProfiles[key]
	if !ok {
		return models.CalibrationProfile{}, fmt.Errorf("%q: %w", name, ErrUnsupportedExercise)
	}
	return p, nil
}

// BuiltInNames returns the normalized names of all shipped profiles, sorted.
func BuiltInNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
