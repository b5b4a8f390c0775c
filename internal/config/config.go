package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains configuration for the OpenCap server.
type API struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TokenFile      string `toml:"token_file"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Processing contains configuration for the external processing entry point
// and the pose estimation settings handed to it.
type Processing struct {
	Command            string   `toml:"command"`
	Args               []string `toml:"args"`
	WorkingDir         string   `toml:"working_dir"`
	PoseDetector       string   `toml:"pose_detector"`
	Resolution         string   `toml:"resolution"`
	Cameras            []string `toml:"cameras"`
	GenericFolderNames bool     `toml:"generic_folder_names"`
}

// Publish contains configuration for uploading results after processing.
type Publish struct {
	Enabled         bool   `toml:"enabled"`
	ReplaceExisting bool   `toml:"replace_existing"`
	DeviceID        string `toml:"device_id"`
}

// Batch contains configuration for batch run behaviour.
type Batch struct {
	DeleteLocalFolder bool `toml:"delete_local_folder"`
	ContinueOnError   bool `toml:"continue_on_error"`
}

// Archive contains configuration for archiving session folders to S3 before
// local deletion.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Bucket  string `toml:"bucket"`
	Prefix  string `toml:"prefix"`
	Region  string `toml:"region"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for opencap.
//
// Configuration sections by subsystem:
//   - Paths: local data and log directories
//   - API: OpenCap server URL and credentials
//   - Processing: external processing command and pose estimation settings
//   - Publish: result upload behaviour
//   - Batch: local retention and failure handling
//   - Archive: optional S3 archive of session folders
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	API        API        `toml:"api"`
	Processing Processing `toml:"processing"`
	Publish    Publish    `toml:"publish"`
	Batch      Batch      `toml:"batch"`
	Archive    Archive    `toml:"archive"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path of ~/.config/opencap/config.toml.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads, normalizes and validates the configuration. An empty path
// searches the default location and then ./opencap.toml. It also returns the
// resolved path and whether a file was found; when none was, defaults apply.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// locate returns the first existing candidate, or the first candidate when
// none exists.
func locate(path string) (string, bool, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{defaultConfigPath, "opencap.toml"}
	}
	fallback := ""
	for _, candidate := range candidates {
		expanded, err := ExpandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if fallback == "" {
			fallback = expanded
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && !info.IsDir():
			return expanded, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return fallback, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// APITimeout returns the per-request timeout for OpenCap API calls.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// LedgerPath returns the location of the run ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// ExpandPath resolves a leading ~ to the home directory and returns an
// absolute, cleaned path. Empty input stays empty.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value[1:], "/"))
	}
	absolute, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
