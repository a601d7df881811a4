package profiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claude/repcounter/internal/models"
	"github.com/claude/repcounter/internal/storage"
)

// TestNormalizeName verifies case folding, trimming and whitespace collapse.
func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Squat", "squat"},
		{"  Bicep Curl\t", "bicep curl"},
		{"BICEP   CURL", "bicep curl"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// TestBuiltInLookup verifies exact normalized lookups and the curl
// inversion flag.
func TestBuiltInLookup(t *testing.T) {
	p, err := BuiltIn("  SQUAT ")
	if err != nil {
		t.Fatalf("BuiltIn(squat): %v", err)
	}
	if p.Joints.Vertex != models.JointLeftKnee || p.IsInverted {
		t.Errorf("squat = %+v", p)
	}
	if p.Source != models.SourceBuiltIn {
		t.Errorf("source = %s, want builtin", p.Source)
	}

	curl, err := BuiltIn("Bicep Curl")
	if err != nil {
		t.Fatalf("BuiltIn(bicep curl): %v", err)
	}
	if !curl.IsInverted || curl.Joints.Vertex != models.JointLeftElbow {
		t.Errorf("bicep curl = %+v", curl)
	}
}

// TestBuiltInNoFuzzyMatch verifies near-miss names are rejected.
func TestBuiltInNoFuzzyMatch(t *testing.T) {
	for _, name := range []string{"squats", "curl", "back squat", ""} {
		if _, err := BuiltIn(name); !errors.Is(err, ErrUnsupportedExercise) {
			t.Errorf("BuiltIn(%q) err = %v, want ErrUnsupportedExercise", name, err)
		}
	}
}

// TestBuiltInProfilesAreValid verifies every shipped profile satisfies the
// profile invariants.
func TestBuiltInProfilesAreValid(t *testing.T) {
	for _, name := range BuiltInNames() {
		p, err := BuiltIn(name)
		if err != nil {
			t.Fatalf("BuiltIn(%q): %v", name, err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if p.Name != name {
			t.Errorf("%s: Name = %q", name, p.Name)
		}
	}
}

func taught(name string, top, bottom float64) models.CalibrationProfile {
	return models.CalibrationProfile{
		Name:               name,
		Joints:             models.JointTriple{A: models.JointLeftHip, Vertex: models.JointLeftKnee, C: models.JointLeftAnkle},
		TopAngleDegrees:    top,
		BottomAngleDegrees: bottom,
	}
}

// TestRegistryTaughtOverridesBuiltIn verifies a saved profile replaces the
// shipped one for the same normalized name.
func TestRegistryTaughtOverridesBuiltIn(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(storage.NewMemory(), nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return fixed }

	saved, err := reg.Save(ctx, taught(" Squat ", 175, 70))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" || saved.Source != models.SourceTaught || !saved.CreatedAt.Equal(fixed) {
		t.Errorf("saved = %+v", saved)
	}
	if saved.HysteresisDegrees != models.DefaultHysteresisDegrees {
		t.Errorf("hysteresis = %v, want default", saved.HysteresisDegrees)
	}

	got, err := reg.Resolve(ctx, "SQUAT")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.TopAngleDegrees != 175 || got.BottomAngleDegrees != 70 || got.Source != models.SourceTaught {
		t.Errorf("resolved = %+v, want taught 175/70", got)
	}

	again, err := reg.Save(ctx, taught("squat", 165, 90))
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, _ = reg.Resolve(ctx, "squat")
	if got.ID != again.ID || got.TopAngleDegrees != 165 {
		t.Errorf("later profile did not win: %+v", got)
	}
}

// TestRegistryResolveUnsupported verifies a miss in both sources fails.
func TestRegistryResolveUnsupported(t *testing.T) {
	reg := NewRegistry(storage.NewMemory(), nil)
	if _, err := reg.Resolve(context.Background(), "kettlebell swing"); !errors.Is(err, ErrUnsupportedExercise) {
		t.Errorf("err = %v, want ErrUnsupportedExercise", err)
	}
}

// TestRegistrySaveRejectsDegenerate verifies nothing is persisted for a
// profile with endpoints closer than 10°.
func TestRegistrySaveRejectsDegenerate(t *testing.T) {
	mem := storage.NewMemory()
	reg := NewRegistry(mem, nil)
	_, err := reg.Save(context.Background(), taught("wall sit", 95, 90))
	if !errors.Is(err, models.ErrDegenerateProfile) {
		t.Errorf("err = %v, want ErrDegenerateProfile", err)
	}
	if mem.Len() != 0 {
		t.Errorf("store has %d keys, want 0", mem.Len())
	}
}

// TestRegistryListMergesSources verifies List returns built-ins plus taught
// profiles, with overrides replacing the shipped entry.
func TestRegistryListMergesSources(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(storage.NewMemory(), nil)
	if _, err := reg.Save(ctx, taught("squat", 175, 70)); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Save(ctx, taught("step up", 170, 100)); err != nil {
		t.Fatal(err)
	}

	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != len(BuiltInNames())+1 {
		t.Errorf("len = %d, want %d", len(list), len(BuiltInNames())+1)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Errorf("list not sorted at %d: %q >= %q", i, list[i-1].Name, list[i].Name)
		}
	}
	for _, p := range list {
		if p.Name == "squat" && p.Source != models.SourceTaught {
			t.Errorf("squat source = %s, want taught", p.Source)
		}
	}
}

// TestRegistryWithoutStore verifies built-ins still resolve when no store is
// configured and saving fails cleanly.
func TestRegistryWithoutStore(t *testing.T) {
	reg := NewRegistry(nil, nil)
	if _, err := reg.Resolve(context.Background(), "lunge"); err != nil {
		t.Errorf("Resolve(lunge): %v", err)
	}
	if _, err := reg.Save(context.Background(), taught("lunge", 170, 90)); err == nil {
		t.Error("Save without store: expected error")
	}
}
