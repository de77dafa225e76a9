// Package middleware provides the gin middleware of the control surface:
// per-client rate limiting and a CORS policy restricted to loopback origins.
package middleware
