package trials_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"opencap/internal/opencapapi"
	"opencap/internal/services"
	"opencap/internal/trials"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func trial(id, name string, offset time.Duration) trials.Trial {
	return trials.Trial{ID: id, Name: name, CreatedAt: base.Add(offset), Kind: trials.Classify(name)}
}

func ids(list []trials.Trial) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.ID)
	}
	return out
}

func sampleSession() []trials.Trial {
	return []trials.Trial{
		trial("c1", "calibration", 0),
		trial("c2", "calibration", time.Minute),
		trial("n1", "neutral", 2*time.Minute),
		trial("d1", "DJ1", 3*time.Minute),
		trial("d2", "C90_L1", 4*time.Minute),
		trial("d3", "dj2", 5*time.Minute),
		trial("d4", "walk", 6*time.Minute),
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]trials.Kind{
		"calibration": trials.KindCalibration,
		"neutral":     trials.KindStatic,
		"Neutral":     trials.KindStatic,
		"C90_L1":      trials.KindDynamic,
		"neutral2":    trials.KindDynamic,
	}
	for name, want := range cases {
		if got := trials.Classify(name); got != want {
			t.Errorf("Classify(%q) = %s, want %s", name, got, want)
		}
	}
}

type fakeSource struct {
	sessions map[string]*opencapapi.Session
	calls    int
}

func (f *fakeSource) Session(_ context.Context, id string) (*opencapapi.Session, error) {
	f.calls++
	s, ok := f.sessions[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "opencapapi", "GET sessions/", "status 404", nil)
	}
	return s, nil
}

func TestResolverMapsNamesToIdentifiers(t *testing.T) {
	source := &fakeSource{sessions: map[string]*opencapapi.Session{
		"S": {ID: "S", Trials: []opencapapi.Trial{
			{ID: "a", Name: "calibration", CreatedAt: base},
			{ID: "b", Name: "C90_L1", CreatedAt: base.Add(time.Minute)},
		}},
	}}
	resolver := trials.NewResolver(source)

	for i := 0; i < 2; i++ {
		mapping, err := resolver.Resolve(context.Background(), "S")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		entry, err := mapping.Lookup("C90_L1")
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if entry.ID != "b" || !entry.Date.Equal(base.Add(time.Minute)) {
			t.Fatalf("unexpected entry %+v", entry)
		}
	}
	if source.calls != 2 {
		t.Fatalf("expected a remote read per resolve, got %d", source.calls)
	}
}

func TestResolverUnknownSessionIsNotFound(t *testing.T) {
	resolver := trials.NewResolver(&fakeSource{})
	if _, err := resolver.Resolve(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLookupMissingNameFails(t *testing.T) {
	mapping := trials.NewMapping("S", sampleSession())
	_, err := mapping.Lookup("C90_R1")
	if !errors.Is(err, trials.ErrTrialNotFound) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	var lookupErr *trials.LookupError
	if !errors.As(err, &lookupErr) || lookupErr.Name != "C90_R1" {
		t.Fatalf("expected *LookupError, got %T", err)
	}
}

func TestMappingLastDuplicateWins(t *testing.T) {
	mapping := trials.NewMapping("S", []trials.Trial{
		trial("old", "C90_L1", 0),
		trial("new", "C90_L1", time.Minute),
	})
	entry, err := mapping.Lookup("C90_L1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry.ID != "new" {
		t.Fatalf("expected later entry, got %s", entry.ID)
	}
}

func TestSelectAutoPicksLatestSingleTrialsAndAllDynamic(t *testing.T) {
	sel, err := trials.Select("S", sampleSession(), trials.Overrides{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Calibration == nil || sel.Calibration.ID != "c2" {
		t.Fatalf("expected latest calibration c2, got %+v", sel.Calibration)
	}
	if sel.Static == nil || sel.Static.ID != "n1" {
		t.Fatalf("expected static n1, got %+v", sel.Static)
	}
	if got := ids(sel.Dynamic); !reflect.DeepEqual(got, []string{"d1", "d2", "d3", "d4"}) {
		t.Fatalf("unexpected dynamic trials %v", got)
	}
	if got := ids(sel.Ordered()); !reflect.DeepEqual(got, []string{"c2", "n1", "d1", "d2", "d3", "d4"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestLatestPickerTieGoesToLaterEntry(t *testing.T) {
	picked, ok := trials.LatestPicker{}.Pick([]trials.Trial{
		trial("first", "calibration", 0),
		trial("second", "calibration", 0),
	})
	if !ok || picked.ID != "second" {
		t.Fatalf("expected second, got %+v", picked)
	}
	if _, ok := (trials.LatestPicker{}).Pick(nil); ok {
		t.Fatal("expected no pick from empty list")
	}
}

func TestSelectUsesCustomPicker(t *testing.T) {
	first := trials.PickerFunc(func(c []trials.Trial) (trials.Trial, bool) {
		if len(c) == 0 {
			return trials.Trial{}, false
		}
		return c[0], true
	})
	sel, err := trials.Policy{Picker: first}.Select("S", sampleSession(), trials.Overrides{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Calibration.ID != "c1" {
		t.Fatalf("expected first calibration, got %s", sel.Calibration.ID)
	}
}

func TestSelectWithoutStaticTrial(t *testing.T) {
	list := []trials.Trial{trial("c1", "calibration", 0), trial("d1", "walk", time.Minute)}
	sel, err := trials.Select("S", list, trials.Overrides{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Static != nil {
		t.Fatalf("expected no static trial, got %+v", sel.Static)
	}
	if sel.Len() != 2 {
		t.Fatalf("expected 2 trials, got %d", sel.Len())
	}
}

func TestSelectWithoutCalibrationFails(t *testing.T) {
	list := []trials.Trial{trial("n1", "neutral", 0)}
	if _, err := trials.Select("S", list, trials.Overrides{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	sel, err := trials.Select("S", list, trials.Overrides{Calibration: trials.Skip()})
	if err != nil {
		t.Fatalf("Select with skipped calibration: %v", err)
	}
	if sel.Calibration != nil {
		t.Fatal("expected calibration to be skipped")
	}
}

func TestSelectSkipDynamic(t *testing.T) {
	sel, err := trials.Select("S", sampleSession(), trials.Overrides{Dynamic: trials.Explicit()})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(sel.Dynamic) != 0 {
		t.Fatalf("expected no dynamic trials, got %v", ids(sel.Dynamic))
	}
}

func TestSelectExplicitDynamicPreservesOrder(t *testing.T) {
	sel, err := trials.Select("S", sampleSession(), trials.Overrides{
		Calibration: trials.Skip(),
		Static:      trials.Skip(),
		Dynamic:     trials.Explicit("walk", "C90_L1", "walk"),
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(sel.Ordered()); !reflect.DeepEqual(got, []string{"d4", "d2"}) {
		t.Fatalf("unexpected selection %v", got)
	}
}

func TestSelectExpandsActivityCodes(t *testing.T) {
	sel, err := trials.Select("S", sampleSession(), trials.Overrides{
		Dynamic: trials.Explicit("dj", "C90_L1"),
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(sel.Dynamic); !reflect.DeepEqual(got, []string{"d1", "d3", "d2"}) {
		t.Fatalf("unexpected expansion %v", got)
	}
}

func TestSelectExactNameBeatsActivityCode(t *testing.T) {
	list := append(sampleSession(), trial("d5", "LS", 7*time.Minute), trial("d6", "LS_2", 8*time.Minute))
	sel, err := trials.Select("S", list, trials.Overrides{Dynamic: trials.Explicit("LS")})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(sel.Dynamic); !reflect.DeepEqual(got, []string{"d5"}) {
		t.Fatalf("expected exact name match, got %v", got)
	}
}

func TestSelectUnknownDynamicNameFails(t *testing.T) {
	_, err := trials.Select("S", sampleSession(), trials.Overrides{Dynamic: trials.Explicit("missing")})
	if !errors.Is(err, trials.ErrTrialNotFound) {
		t.Fatalf("expected ErrTrialNotFound, got %v", err)
	}
	_, err = trials.Select("S", sampleSession(), trials.Overrides{Dynamic: trials.Explicit("TH")})
	if !errors.Is(err, trials.ErrTrialNotFound) {
		t.Fatalf("expected ErrTrialNotFound for unmatched code, got %v", err)
	}
}

func TestSelectExplicitCalibrationByID(t *testing.T) {
	sel, err := trials.Select("S", sampleSession(), trials.Overrides{
		Calibration: trials.Explicit("c1"),
		Static:      trials.Explicit("neutral"),
		Dynamic:     trials.Explicit("neutral", "walk"),
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := ids(sel.Ordered()); !reflect.DeepEqual(got, []string{"c1", "n1", "d4"}) {
		t.Fatalf("unexpected selection %v", got)
	}
	if _, err := trials.Select("S", sampleSession(), trials.Overrides{Calibration: trials.Explicit("nope")}); !errors.Is(err, trials.ErrTrialNotFound) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
}

func TestParseSelector(t *testing.T) {
	cases := []struct {
		raw  string
		want trials.Selector
	}{
		{"", trials.Auto()},
		{"AUTO", trials.Auto()},
		{"skip", trials.Skip()},
		{"None", trials.Auto()},
		{" , ", trials.Skip()},
		{"DJ, C90_L1", trials.Selector{Mode: trials.ModeExplicit, Values: []string{"DJ", "C90_L1"}}},
	}
	for _, tc := range cases {
		if got := trials.ParseSelector(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ParseSelector(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestValidateOverrides(t *testing.T) {
	explicit := trials.Overrides{Dynamic: trials.Explicit("C90_L1")}
	if err := trials.ValidateOverrides(2, explicit); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if err := trials.ValidateOverrides(1, explicit); err != nil {
		t.Fatalf("single session should accept explicit selectors: %v", err)
	}
	skipped := trials.Overrides{Calibration: trials.Skip(), Dynamic: trials.Skip()}
	if err := trials.ValidateOverrides(3, skipped); err != nil {
		t.Fatalf("skip selectors are allowed for many sessions: %v", err)
	}
	multi := trials.Overrides{Static: trials.Explicit("a", "b")}
	if err := trials.ValidateOverrides(1, multi); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected error for two static trials, got %v", err)
	}
}

func TestActivityLookup(t *testing.T) {
	if a, ok := trials.ActivityForCode("c9"); !ok || a.Name != "cut 90" {
		t.Fatalf("unexpected activity %+v %v", a, ok)
	}
	if _, ok := trials.ActivityForCode("XX"); ok {
		t.Fatal("unexpected activity for XX")
	}
	if a, ok := trials.ActivityOf("dc_left"); !ok || a.Code != "DC" {
		t.Fatalf("unexpected activity %+v %v", a, ok)
	}
}

func TestSelectAssignsSlotKind(t *testing.T) {
	list := []trials.Trial{
		trial("c1", "calibration", 0),
		trial("s-old", "neutral_retake", time.Minute),
		trial("cb", "checkerboard", 2*time.Minute),
		trial("d1", "C90_L1", 3*time.Minute),
	}
	if list[1].Kind != trials.KindDynamic {
		t.Fatalf("precondition: neutral_retake classified as %q", list[1].Kind)
	}

	sel, err := trials.Select("S", list, trials.Overrides{
		Calibration: trials.Explicit("checkerboard"),
		Static:      trials.Explicit("s-old"),
		Dynamic:     trials.Explicit("C90_L1"),
	})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Calibration.ID != "cb" || sel.Calibration.Kind != trials.KindCalibration {
		t.Fatalf("calibration slot = %+v", *sel.Calibration)
	}
	if sel.Static.ID != "s-old" || sel.Static.Kind != trials.KindStatic {
		t.Fatalf("static slot = %+v", *sel.Static)
	}
	if len(sel.Dynamic) != 1 || sel.Dynamic[0].Kind != trials.KindDynamic {
		t.Fatalf("dynamic slot = %+v", sel.Dynamic)
	}
	if list[1].Kind != trials.KindDynamic {
		t.Fatal("Select must not modify the input list")
	}
}
