// Package ws is the terminal view: a websocket hub that streams the shell
// session to attached clients.
//
// Shell output is sent as binary frames. Control messages (status lines,
// cursor blink state, errors) are JSON text frames. Clients send JSON
// messages of type "input", "resize" and "ping". When the session is
// replaced the hub reattaches every client to the new one.
package ws
