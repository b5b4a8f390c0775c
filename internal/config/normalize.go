package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAPI(); err != nil {
		return err
	}
	if err := c.normalizeProcessing(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizeArchive()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() error {
	if value, ok := os.LookupEnv("OPENCAP_API_URL"); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	if !strings.HasSuffix(c.API.BaseURL, "/") {
		c.API.BaseURL += "/"
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("OPENCAP_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	var err error
	if strings.TrimSpace(c.API.TokenFile) == "" {
		c.API.TokenFile = defaultTokenFile
	}
	if c.API.TokenFile, err = ExpandPath(c.API.TokenFile); err != nil {
		return fmt.Errorf("api.token_file: %w", err)
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultAPITimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeProcessing() error {
	c.Processing.Command = strings.TrimSpace(c.Processing.Command)
	if c.Processing.Command == "" {
		c.Processing.Command = defaultProcessingCommand
	}
	if dir := strings.TrimSpace(c.Processing.WorkingDir); dir != "" {
		expanded, err := ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("processing.working_dir: %w", err)
		}
		c.Processing.WorkingDir = expanded
	}
	c.Processing.PoseDetector = strings.TrimSpace(c.Processing.PoseDetector)
	if c.Processing.PoseDetector == "" {
		c.Processing.PoseDetector = defaultPoseDetector
	}
	c.Processing.Resolution = strings.ToLower(strings.TrimSpace(c.Processing.Resolution))
	if c.Processing.Resolution == "" {
		c.Processing.Resolution = defaultResolution
	}
	if len(c.Processing.Cameras) == 0 {
		c.Processing.Cameras = []string{defaultCameras}
	}
	return nil
}

func (c *Config) normalizePublish() {
	c.Publish.DeviceID = strings.TrimSpace(c.Publish.DeviceID)
	if c.Publish.DeviceID == "" {
		c.Publish.DeviceID = defaultPublishDeviceID
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Region = strings.TrimSpace(c.Archive.Region)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	if value, ok := os.LookupEnv("OPENCAP_ARCHIVE_BUCKET"); ok && c.Archive.Bucket == "" {
		c.Archive.Bucket = strings.TrimSpace(value)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
