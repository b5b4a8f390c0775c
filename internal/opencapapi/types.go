package opencapapi

import (
	"encoding/json"
	"time"
)

// Session is the subset of the session record the CLI consumes.
type Session struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Trials []Trial `json:"trials"`
}

// Trial is a single recording within a session.
type Trial struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Results   []Result  `json:"results,omitempty"`
}

// Result is an artifact attached to a trial.
type Result struct {
	ID       int64           `json:"id"`
	Trial    string          `json:"trial,omitempty"`
	Tag      string          `json:"tag"`
	DeviceID string          `json:"device_id,omitempty"`
	Media    string          `json:"media,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// Result tags understood by the web application.
const (
	TagVisualizerJSON = "visualizerTransforms-json"
	TagKinematics     = "ik_results"
	TagMarkerData     = "marker_data"
	TagOpenSimModel   = "opensim_model"
)

// Upload describes one file to attach to a trial.
type Upload struct {
	TrialID  string
	Tag      string
	DeviceID string
	Path     string
	Meta     map[string]any
}
