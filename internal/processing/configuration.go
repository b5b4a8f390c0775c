package processing

import (
	"opencap/internal/config"
	"opencap/internal/posedetect"
)

// Configuration is the per-run processing settings shared by every trial.
// It is a value type; copies cannot affect each other.
type Configuration struct {
	PoseDetector       posedetect.Detector
	Resolution         posedetect.Resolution
	Cameras            posedetect.Cameras
	DeleteLocalFolder  bool
	GenericFolderNames bool
}

// NewConfiguration validates the processing section of cfg and builds the
// run configuration.
func NewConfiguration(cfg *config.Config) (Configuration, error) {
	detector, err := posedetect.ParseDetector(cfg.Processing.PoseDetector)
	if err != nil {
		return Configuration{}, err
	}
	resolution, err := posedetect.ParseResolution(cfg.Processing.Resolution)
	if err != nil {
		return Configuration{}, err
	}
	cameras, err := posedetect.ParseCameras(cfg.Processing.Cameras)
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		PoseDetector:       detector,
		Resolution:         resolution,
		Cameras:            cameras,
		DeleteLocalFolder:  cfg.Batch.DeleteLocalFolder,
		GenericFolderNames: cfg.Processing.GenericFolderNames,
	}, nil
}

// EffectiveResolution returns the resolution the detector will actually use.
// hrnet ignores the setting, so it reports the default tier.
func (c Configuration) EffectiveResolution() posedetect.Resolution {
	if !c.PoseDetector.UsesResolution() {
		return posedetect.ResolutionDefault
	}
	return c.Resolution
}
