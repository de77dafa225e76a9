// Package lifecycle sequences host lifecycle events into component calls.
//
// Transition is a pure function from (State, Event) to the next State and
// the ordered Commands to run. Coordinator owns the State, feeds events
// through Transition on a single goroutine and executes the resulting
// commands against the bootstrapper, session manager, native bridge and
// cursor view. Archive extraction runs off the loop so pause and resume
// events arriving during bootstrap are still observed.
package lifecycle
