// Package paths provides the on-device directory layout used by the supervisor.
//
// All userland paths hang off a single private root. The bundled archive is
// extracted relative to that root, so an entry named "usr/bin/sh" lands at
// <root>/usr/bin/sh.
//
// # Directory Structure
//
//	<private-root>/
//	  └── usr/
//	      ├── .installed   (bootstrap marker)
//	      ├── bin/         (prepended to PATH for shell sessions)
//	      └── libexec/
//
// # Usage
//
//	layout := paths.NewLayout("/data/data/com.example.x11server/files")
//	marker := layout.Marker()  // <root>/usr/.installed
//	bin := layout.BinDir()     // <root>/usr/bin
package paths
