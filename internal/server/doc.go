// Package server is the HTTP boundary of the file sharing service. It
// verifies bearer credentials, decodes and validates requests, calls the
// access service and maps its error taxonomy to status codes and the
// JSON envelope. /health and /metrics are served without credentials.
package server
