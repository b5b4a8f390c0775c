// Package config loads, normalizes, and validates opencap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENCAP_API_TOKEN and OPENCAP_API_URL. The Config type centralizes every
// knob the CLI and the reprocessing pipeline need: data directories, API
// credentials, the processing command, pose estimation defaults, publishing,
// and archive settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
