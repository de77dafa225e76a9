// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log collectors
//   - Development: colored console output for a human at the device shell
//
// Components take a *Logger and derive a named child with For, so every line
// carries the emitting component:
//
//	logger := logging.NewDefault()
//	boot := logger.For("bootstrap")
//	boot.Warn("No bundled userland found", zap.Error(err))
package logging
