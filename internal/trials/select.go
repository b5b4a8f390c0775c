package trials

import (
	"fmt"

	"opencap/internal/services"
)

// Picker chooses one trial among several candidates of the same kind.
type Picker interface {
	Pick(candidates []Trial) (Trial, bool)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(candidates []Trial) (Trial, bool)

func (f PickerFunc) Pick(candidates []Trial) (Trial, bool) { return f(candidates) }

// LatestPicker picks the most recently created trial. Equal timestamps go to
// the later list entry.
type LatestPicker struct{}

func (LatestPicker) Pick(candidates []Trial) (Trial, bool) {
	if len(candidates) == 0 {
		return Trial{}, false
	}
	best := candidates[0]
	for _, t := range candidates[1:] {
		if !t.CreatedAt.Before(best.CreatedAt) {
			best = t
		}
	}
	return best, true
}

// Selection is the concrete set of trials to process for a session.
type Selection struct {
	Calibration *Trial
	Static      *Trial
	Dynamic     []Trial
}

// Ordered returns the trials in processing order: calibration, static, then
// dynamic trials as selected.
func (s Selection) Ordered() []Trial {
	out := make([]Trial, 0, len(s.Dynamic)+2)
	if s.Calibration != nil {
		out = append(out, *s.Calibration)
	}
	if s.Static != nil {
		out = append(out, *s.Static)
	}
	return append(out, s.Dynamic...)
}

// Len reports the number of selected trials.
func (s Selection) Len() int {
	return len(s.Ordered())
}

// Policy turns a trial list and overrides into a Selection.
type Policy struct {
	Picker Picker
}

// Select applies the default policy.
func Select(sessionID string, list []Trial, o Overrides) (Selection, error) {
	return Policy{}.Select(sessionID, list, o)
}

// Select picks one calibration and one static trial and every dynamic trial
// unless the overrides say otherwise.
func (p Policy) Select(sessionID string, list []Trial, o Overrides) (Selection, error) {
	picker := p.Picker
	if picker == nil {
		picker = LatestPicker{}
	}
	mapping := NewMapping(sessionID, list)
	byID := make(map[string]Trial, len(list))
	for _, t := range list {
		byID[t.ID] = t
	}

	var sel Selection
	var err error
	sel.Calibration, err = selectSingle(KindCalibration, o.Calibration, list, mapping, byID, picker, true)
	if err != nil {
		return Selection{}, err
	}
	sel.Static, err = selectSingle(KindStatic, o.Static, list, mapping, byID, picker, false)
	if err != nil {
		return Selection{}, err
	}
	sel.Dynamic, err = selectDynamic(o.Dynamic, list, mapping, byID)
	if err != nil {
		return Selection{}, err
	}

	seen := map[string]struct{}{}
	for _, t := range []*Trial{sel.Calibration, sel.Static} {
		if t != nil {
			seen[t.ID] = struct{}{}
		}
	}
	sel.Dynamic = dedupe(sel.Dynamic, seen)
	return sel, nil
}

func selectSingle(kind Kind, s Selector, list []Trial, mapping Mapping, byID map[string]Trial, picker Picker, required bool) (*Trial, error) {
	switch s.Mode {
	case ModeSkip:
		return nil, nil
	case ModeExplicit:
		if len(s.Values) != 1 {
			return nil, services.Wrap(services.ErrConfiguration, "trials", "select "+string(kind),
				fmt.Sprintf("expected one trial, got %d", len(s.Values)), nil)
		}
		t, err := resolveValue(s.Values[0], mapping, byID)
		if err != nil {
			return nil, err
		}
		t.Kind = kind
		return &t, nil
	default:
		picked, ok := picker.Pick(ofKind(list, kind))
		if !ok {
			if required {
				return nil, services.Wrap(services.ErrValidation, "trials", "select "+string(kind),
					fmt.Sprintf("session %s has no %s trial", mapping.sessionID, kind), nil)
			}
			return nil, nil
		}
		picked.Kind = kind
		return &picked, nil
	}
}

func selectDynamic(s Selector, list []Trial, mapping Mapping, byID map[string]Trial) ([]Trial, error) {
	switch s.Mode {
	case ModeSkip:
		return nil, nil
	case ModeExplicit:
		var out []Trial
		for _, value := range s.Values {
			if _, err := mapping.Lookup(value); err != nil {
				if activity, ok := ActivityForCode(value); ok {
					matched := expandActivity(activity, list)
					if len(matched) == 0 {
						return nil, &LookupError{SessionID: mapping.sessionID, Name: value}
					}
					out = append(out, matched...)
					continue
				}
			}
			t, err := resolveValue(value, mapping, byID)
			if err != nil {
				return nil, err
			}
			t.Kind = KindDynamic
			out = append(out, t)
		}
		return out, nil
	default:
		return ofKind(list, KindDynamic), nil
	}
}

// resolveValue accepts a trial name or identifier. Names win when a value is
// both.
func resolveValue(value string, mapping Mapping, byID map[string]Trial) (Trial, error) {
	entry, err := mapping.Lookup(value)
	if err == nil {
		return byID[entry.ID], nil
	}
	if t, ok := byID[value]; ok {
		return t, nil
	}
	return Trial{}, err
}

func expandActivity(activity Activity, list []Trial) []Trial {
	var out []Trial
	for _, t := range ofKind(list, KindDynamic) {
		if activity.Matches(t.Name) {
			out = append(out, t)
		}
	}
	return out
}

func dedupe(list []Trial, seen map[string]struct{}) []Trial {
	out := make([]Trial, 0, len(list))
	for _, t := range list {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
