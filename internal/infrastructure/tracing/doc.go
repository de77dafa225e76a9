/*
Package tracing tags control API requests with a trace id and logs a span
for each one.

# Usage

	router.Use(tracing.HTTPMiddleware(logger))

	// inside a handler
	traceID := tracing.TraceIDFrom(c.Request.Context())

# Trace Format

An incoming X-Trace-ID header is reused so a caller can correlate its own
logs; otherwise a new req_<ulid> id is generated. The id is echoed in the
response and attached to the request context.
*/
package tracing
