// Package posedetect defines the pose-detector, resolution, and camera
// selection settings handed to the processing entry point.
package posedetect

import (
	"fmt"
	"strings"

	"opencap/internal/services"
)

// Detector names the 2D keypoint model used by the processing engine.
type Detector string

const (
	OpenPose Detector = "OpenPose"
	HRNet    Detector = "hrnet"
)

// ParseDetector accepts detector names case-insensitively and returns the
// canonical spelling.
func ParseDetector(value string) (Detector, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "openpose":
		return OpenPose, nil
	case "hrnet":
		return HRNet, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "pose detector", "", fmt.Sprintf("unsupported value %q (want OpenPose or hrnet)", value), nil)
	}
}

// UsesResolution reports whether the detector honours the resolution setting.
// hrnet has a single fixed input size.
func (d Detector) UsesResolution() bool {
	return d == OpenPose
}

// Resolution selects the OpenPose input size and scale count. Higher tiers
// are more accurate and need more GPU memory.
type Resolution string

const (
	ResolutionDefault       Resolution = "default"        // 1x368
	Resolution1x736         Resolution = "1x736"          // OpenCap default
	Resolution1x736Scales2  Resolution = "1x736_2scales"  // gap 0.75
	Resolution1x1008Scales4 Resolution = "1x1008_4scales" // gap 0.25, ~24GB GPU
)

var resolutions = []Resolution{
	ResolutionDefault,
	Resolution1x736,
	Resolution1x736Scales2,
	Resolution1x1008Scales4,
}

// ParseResolution validates a resolution tier.
func ParseResolution(value string) (Resolution, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, r := range resolutions {
		if string(r) == trimmed {
			return r, nil
		}
	}
	names := make([]string, len(resolutions))
	for i, r := range resolutions {
		names[i] = string(r)
	}
	return "", services.Wrap(services.ErrConfiguration, "resolution", "", fmt.Sprintf("unsupported value %q (want one of %s)", value, strings.Join(names, ", ")), nil)
}

// AllAvailable is the camera selector meaning every camera recorded in the session.
const AllAvailable = "all_available"

// Cameras is either an explicit list of camera names or all available cameras.
type Cameras struct {
	names []string
}

// ParseCameras normalizes a camera list. An empty list or one containing
// AllAvailable selects every camera; mixing AllAvailable with names is rejected.
func ParseCameras(values []string) (Cameras, error) {
	var names []string
	seen := make(map[string]struct{}, len(values))
	all := false
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			name := strings.TrimSpace(part)
			if name == "" {
				continue
			}
			if strings.EqualFold(name, AllAvailable) {
				all = true
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	if all && len(names) > 0 {
		return Cameras{}, services.Wrap(services.ErrConfiguration, "cameras", "", fmt.Sprintf("%s cannot be combined with explicit cameras %v", AllAvailable, names), nil)
	}
	return Cameras{names: names}, nil
}

// All reports whether every available camera is selected.
func (c Cameras) All() bool { return len(c.names) == 0 }

// Names returns a copy of the explicit camera names.
func (c Cameras) Names() []string {
	return append([]string(nil), c.names...)
}

// Args returns the camera list in the form passed to the processing command.
func (c Cameras) Args() []string {
	if c.All() {
		return []string{AllAvailable}
	}
	return c.Names()
}

func (c Cameras) String() string {
	return strings.Join(c.Args(), ",")
}
