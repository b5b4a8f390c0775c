package config

const (
	defaultConfigPath        = "~/.config/opencap/config.toml"
	defaultDataDir           = "~/.local/share/opencap"
	defaultLogDir            = "~/.local/share/opencap/logs"
	defaultTokenFile         = "~/.config/opencap/token.json"
	defaultAPIBaseURL        = "https://api.opencap.ai/"
	defaultAPITimeoutSeconds = 60
	defaultProcessingCommand = "python"
	defaultPoseDetector      = "hrnet"
	defaultResolution        = "1x736"
	defaultCameras           = "all_available"
	defaultPublishDeviceID   = "all"
	defaultArchivePrefix     = "opencap"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TokenFile:      defaultTokenFile,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Processing: Processing{
			Command:            defaultProcessingCommand,
			Args:               []string{"main.py"},
			PoseDetector:       defaultPoseDetector,
			Resolution:         defaultResolution,
			Cameras:            []string{defaultCameras},
			GenericFolderNames: true,
		},
		Publish: Publish{
			Enabled:         true,
			ReplaceExisting: true,
			DeviceID:        defaultPublishDeviceID,
		},
		Batch: Batch{
			DeleteLocalFolder: false,
			ContinueOnError:   true,
		},
		Archive: Archive{
			Prefix: defaultArchivePrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
