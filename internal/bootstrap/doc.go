// Package bootstrap extracts the bundled userland archive into the private root.
//
// Extraction happens at most once: a marker file (usr/.installed) is written
// only after every entry has been materialized. If the archive is missing or
// fails to read, the marker is withheld and the next call starts over.
// A partially extracted tree is left in place and simply overwritten.
//
// Supported archive formats are detected from content, not file name:
//   - zip
//   - tar, tar+gzip, tar+zstd
//
// Example Usage:
//
//	b := bootstrap.New(bootstrap.FromFile("assets/termux-root.zip"), layout, bootstrap.Options{})
//	if _, err := b.EnsureExtracted(ctx); err != nil {
//		// non-fatal: retried on next start
//	}
package bootstrap
