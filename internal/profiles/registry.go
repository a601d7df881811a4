package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcounter/internal/models"
)

// Store is the key-value contract the host application supplies for taught
// profiles.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

const keyPrefix = "profile/"

// record is the persisted form of a taught profile.
type record struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	DisplayName        string             `json:"display_name"`
	Joints             models.JointTriple `json:"joints"`
	TopAngleDegrees    float64            `json:"top_angle_degrees"`
	BottomAngleDegrees float64            `json:"bottom_angle_degrees"`
	IsInverted         bool               `json:"is_inverted"`
	HysteresisDegrees  float64            `json:"hysteresis_degrees"`
	CreatedAt          time.Time          `json:"created_at"`
}

func (r record) profile() models.CalibrationProfile {
	return models.CalibrationProfile{
		ID:                 r.ID,
		Name:               r.Name,
		DisplayName:        r.DisplayName,
		Joints:             r.Joints,
		TopAngleDegrees:    r.TopAngleDegrees,
		BottomAngleDegrees: r.BottomAngleDegrees,
		IsInverted:         r.IsInverted,
		HysteresisDegrees:  r.HysteresisDegrees,
		Source:             models.SourceTaught,
		CreatedAt:          r.CreatedAt,
	}
}

// Registry resolves exercise names to profiles. A taught profile for a name
// takes precedence over the built-in one.
type Registry struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewRegistry creates a Registry over store. A nil store serves built-ins only.
func NewRegistry(store Store, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{store: store, log: log, now: time.Now}
}

// Resolve returns the effective profile for name.
func (r *Registry) Resolve(ctx context.Context, name string) (models.CalibrationProfile, error) {
	key := NormalizeName(name)
	if key == "" {
		return models.CalibrationProfile{}, fmt.Errorf("empty exercise name: %w", ErrUnsupportedExercise)
	}
	if r.store != nil {
		data, ok, err := r.store.Get(ctx, keyPrefix+key)
		if err != nil {
			return models.CalibrationProfile{}, fmt.Errorf("loading taught profile %q: %w", key, err)
		}
		if ok {
			var rec record
			if err := json.Unmarshal(data, &rec); err != nil {
				return models.CalibrationProfile{}, fmt.Errorf("decoding taught profile %q: %w", key, err)
			}
			return rec.profile(), nil
		}
	}
	return BuiltIn(key)
}

// Save validates and persists a taught profile under its normalized name,
// replacing any earlier one. The stored profile is returned with ID,
// creation time and source filled in.
func (r *Registry) Save(ctx context.Context, p models.CalibrationProfile) (models.CalibrationProfile, error) {
	if r.store == nil {
		return models.CalibrationProfile{}, fmt.Errorf("no profile store configured")
	}
	p.Name = NormalizeName(p.Name)
	if p.Name == "" {
		return models.CalibrationProfile{}, fmt.Errorf("taught profile needs an exercise name")
	}
	if err := p.Validate(); err != nil {
		return models.CalibrationProfile{}, err
	}

	rec := record{
		ID:                 uuid.NewString(),
		Name:               p.Name,
		DisplayName:        p.DisplayName,
		Joints:             p.Joints,
		TopAngleDegrees:    p.TopAngleDegrees,
		BottomAngleDegrees: p.BottomAngleDegrees,
		IsInverted:         p.IsInverted,
		HysteresisDegrees:  p.Hysteresis(),
		CreatedAt:          r.now().UTC(),
	}
	if rec.DisplayName == "" {
		rec.DisplayName = p.Name
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return models.CalibrationProfile{}, fmt.Errorf("encoding taught profile: %w", err)
	}
	if err := r.store.Put(ctx, keyPrefix+rec.Name, data); err != nil {
		return models.CalibrationProfile{}, fmt.Errorf("storing taught profile %q: %w", rec.Name, err)
	}

	_, overrides := builtinProfiles[rec.Name]
	r.log.Info("taught profile saved",
		"exercise", rec.Name,
		"id", rec.ID,
		"top", rec.TopAngleDegrees,
		"bottom", rec.BottomAngleDegrees,
		"inverted", rec.IsInverted,
		"overrides_builtin", overrides,
	)
	return rec.profile(), nil
}

// List returns every effective profile, taught ones replacing built-ins of
// the same name, sorted by name.
func (r *Registry) List(ctx context.Context) ([]models.CalibrationProfile, error) {
	byName := make(map[string]models.CalibrationProfile, len(builtinProfiles))
	for name, p := range builtinProfiles {
		byName[name] = p
	}
	if r.store != nil {
		entries, err := r.store.List(ctx, keyPrefix)
		if err != nil {
			return nil, fmt.Errorf("listing taught profiles: %w", err)
		}
		for key, data := range entries {
			var rec record
			if err := json.Unmarshal(data, &rec); err != nil {
				r.log.Warn("skipping unreadable taught profile", "key", key, "error", err)
				continue
			}
			byName[rec.Name] = rec.profile()
		}
	}

	out := make([]models.CalibrationProfile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
