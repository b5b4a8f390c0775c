package trials

import (
	"strings"
	"time"

	"opencap/internal/opencapapi"
)

// Kind classifies a trial by its role in a session.
type Kind string

const (
	KindCalibration Kind = "calibration"
	KindStatic      Kind = "static"
	KindDynamic     Kind = "dynamic"
)

// Reserved trial names the web application assigns to non-motion captures.
const (
	CalibrationName = "calibration"
	NeutralName     = "neutral"
)

// Trial is a recorded capture within a session.
type Trial struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Kind      Kind
}

// Classify infers the trial kind from its name.
func Classify(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case CalibrationName:
		return KindCalibration
	case NeutralName:
		return KindStatic
	default:
		return KindDynamic
	}
}

// FromAPI converts the remote trial list, preserving order.
func FromAPI(remote []opencapapi.Trial) []Trial {
	out := make([]Trial, 0, len(remote))
	for _, t := range remote {
		out = append(out, Trial{
			ID:        t.ID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt,
			Kind:      Classify(t.Name),
		})
	}
	return out
}

func ofKind(list []Trial, kind Kind) []Trial {
	var out []Trial
	for _, t := range list {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}
