// Package http implements the local control API.
//
// Lifecycle routes feed events into the coordinator and answer once the
// resulting commands have run. Status routes report the coordinator phase,
// the shell session, the native server state and the permission flag.
package http
