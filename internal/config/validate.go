package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"opencap/internal/posedetect"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url must include a host, got %q", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return errors.New("api.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if strings.TrimSpace(c.Processing.Command) == "" {
		return errors.New("processing.command must be set")
	}
	if _, err := posedetect.ParseDetector(c.Processing.PoseDetector); err != nil {
		return fmt.Errorf("processing.pose_detector: %w", err)
	}
	if _, err := posedetect.ParseResolution(c.Processing.Resolution); err != nil {
		return fmt.Errorf("processing.resolution: %w", err)
	}
	if _, err := posedetect.ParseCameras(c.Processing.Cameras); err != nil {
		return fmt.Errorf("processing.cameras: %w", err)
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true (or set OPENCAP_ARCHIVE_BUCKET)")
	}
	return nil
}
