package trials

import (
	"fmt"
	"strings"

	"opencap/internal/services"
)

// Mode is the variant tag of a Selector.
type Mode int

const (
	ModeAuto Mode = iota
	ModeExplicit
	ModeSkip
)

func (m Mode) String() string {
	switch m {
	case ModeExplicit:
		return "explicit"
	case ModeSkip:
		return "skip"
	default:
		return "auto"
	}
}

// Selector chooses the trials of one kind: automatically, from an explicit
// list of values, or not at all.
type Selector struct {
	Mode   Mode
	Values []string
}

func Auto() Selector { return Selector{Mode: ModeAuto} }

func Skip() Selector { return Selector{Mode: ModeSkip} }

// Explicit selects the given values. An empty list is equivalent to Skip.
func Explicit(values ...string) Selector {
	var cleaned []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return Skip()
	}
	return Selector{Mode: ModeExplicit, Values: cleaned}
}

// ParseSelector reads the command-line form: "auto" (or empty or "none"),
// "skip", or a comma separated list of values.
func ParseSelector(raw string) Selector {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "", "auto", "none":
		return Auto()
	case "skip":
		return Skip()
	}
	return Explicit(strings.Split(trimmed, ",")...)
}

func (s Selector) String() string {
	if s.Mode == ModeExplicit {
		return strings.Join(s.Values, ",")
	}
	return s.Mode.String()
}

// Overrides carries the per-kind selectors for a run.
type Overrides struct {
	Calibration Selector
	Static      Selector
	Dynamic     Selector
}

// HasExplicit reports whether any selector names specific trials.
func (o Overrides) HasExplicit() bool {
	return o.Calibration.Mode == ModeExplicit || o.Static.Mode == ModeExplicit || o.Dynamic.Mode == ModeExplicit
}

// ValidateOverrides rejects explicit selectors when more than one session is
// targeted and single-valued selectors carrying several values.
func ValidateOverrides(sessionCount int, o Overrides) error {
	if sessionCount > 1 && o.HasExplicit() {
		return services.Wrap(services.ErrConfiguration, "trials", "validate overrides",
			fmt.Sprintf("explicit trial selectors require exactly one session, got %d", sessionCount), nil)
	}
	single := []struct {
		kind Kind
		sel  Selector
	}{
		{KindCalibration, o.Calibration},
		{KindStatic, o.Static},
	}
	for _, s := range single {
		if s.sel.Mode == ModeExplicit && len(s.sel.Values) != 1 {
			return services.Wrap(services.ErrConfiguration, "trials", "validate overrides",
				fmt.Sprintf("%s selector takes exactly one trial, got %d", s.kind, len(s.sel.Values)), nil)
		}
	}
	return nil
}
