// Package config provides 12-factor configuration for the x11host supervisor.
//
// Values start from Default, are overlaid by an optional TOML file named by
// X11HOST_CONFIG, and finally by environment variables.
//
// Configuration Sections:
//   - Paths: private root and shared storage root
//   - Bootstrap: bundled archive location
//   - Session: shell, environment and scrollback
//   - Permission: how broad storage access is detected and requested
//   - Native: which native server variant to drive and how
//   - Control: local HTTP control surface
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Paths.PrivateRoot)
package config
