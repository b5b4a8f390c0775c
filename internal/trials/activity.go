package trials

import (
	"strings"

	"golang.org/x/text/cases"
)

// Activity is a motion category recognised by its trial name prefix.
type Activity struct {
	Code string
	Name string
}

// Activities lists the category codes accepted by dynamic selectors.
var Activities = []Activity{
	{Code: "DJ", Name: "drop jump"},
	{Code: "LS", Name: "leg squat"},
	{Code: "DC", Name: "drop cut"},
	{Code: "TH", Name: "triple hop"},
	{Code: "C9", Name: "cut 90"},
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ActivityForCode returns the activity for a category code, ignoring case.
func ActivityForCode(code string) (Activity, bool) {
	folded := fold(code)
	for _, a := range Activities {
		if fold(a.Code) == folded {
			return a, true
		}
	}
	return Activity{}, false
}

// ActivityOf returns the activity whose code prefixes the trial name.
func ActivityOf(name string) (Activity, bool) {
	folded := fold(name)
	for _, a := range Activities {
		if strings.HasPrefix(folded, fold(a.Code)) {
			return a, true
		}
	}
	return Activity{}, false
}

// Matches reports whether a trial name belongs to this activity.
func (a Activity) Matches(name string) bool {
	return strings.HasPrefix(fold(name), fold(a.Code))
}
