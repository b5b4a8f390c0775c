package reprocess

import (
	"fmt"
	"strconv"
	"strings"

	"opencap/internal/posedetect"
	"opencap/internal/processing"
	"opencap/internal/services"
	"opencap/internal/trials"
)

// Request describes one batch run.
type Request struct {
	Sessions        []string
	Overrides       trials.Overrides
	Processing      processing.Configuration
	Publish         bool
	ContinueOnError bool
}

// Validate checks the request without touching the network. Explicit trial
// selectors are only accepted for a single session.
func (r Request) Validate() error {
	if len(r.Sessions) == 0 {
		return services.Wrap(services.ErrConfiguration, "reprocess", "validate", "at least one session id is required", nil)
	}
	seen := make(map[string]struct{}, len(r.Sessions))
	for _, id := range r.Sessions {
		if strings.TrimSpace(id) == "" {
			return services.Wrap(services.ErrConfiguration, "reprocess", "validate", "empty session id", nil)
		}
		if _, dup := seen[id]; dup {
			return services.Wrap(services.ErrConfiguration, "reprocess", "validate", fmt.Sprintf("session %s listed twice", id), nil)
		}
		seen[id] = struct{}{}
	}
	if err := trials.ValidateOverrides(len(r.Sessions), r.Overrides); err != nil {
		return err
	}
	if _, err := posedetect.ParseDetector(string(r.Processing.PoseDetector)); err != nil {
		return err
	}
	if _, err := posedetect.ParseResolution(string(r.Processing.Resolution)); err != nil {
		return err
	}
	return nil
}

// settings summarizes the request for the run ledger.
func (r Request) settings() map[string]string {
	return map[string]string{
		"pose_detector":        string(r.Processing.PoseDetector),
		"resolution":           string(r.Processing.Resolution),
		"cameras":              r.Processing.Cameras.String(),
		"calibration":          r.Overrides.Calibration.String(),
		"static":               r.Overrides.Static.String(),
		"dynamic":              r.Overrides.Dynamic.String(),
		"publish":              strconv.FormatBool(r.Publish),
		"delete_local_folder":  strconv.FormatBool(r.Processing.DeleteLocalFolder),
		"generic_folder_names": strconv.FormatBool(r.Processing.GenericFolderNames),
	}
}
