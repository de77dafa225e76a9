// Package home resolves the working directory for shell sessions.
//
// The home directory depends on one bit of host state: whether the process
// holds broad access to shared storage. With it, sessions start in the shared
// storage root; without it, in the application's private files directory.
// Losing or gaining the permission while a session runs is detected by the
// session manager, which compares its recorded home against Resolve.
package home
