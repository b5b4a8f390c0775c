// Package opencapapi is a small typed client for the OpenCap REST API.
//
// It covers the calls the reprocessing CLI needs: reading sessions and
// trials, uploading results as multipart forms, and deleting results. HTTP
// status codes are mapped onto the services error markers so callers can
// branch with errors.Is.
package opencapapi
