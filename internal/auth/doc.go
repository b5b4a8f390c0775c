// Package auth resolves the API token used to talk to the OpenCap server.
//
// Tokens come from configuration (or OPENCAP_API_TOKEN) first and then from a
// JSON token file written by `opencap token set`. There is no login
// or refresh flow here; a missing token is reported as services.ErrAuth.
package auth
