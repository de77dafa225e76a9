/*
Package resilience provides a circuit breaker that guards repeated attempts at
an operation that keeps failing.

The supervisor uses it around native server relaunches: when the X server
binary crash-loops, resumes stop respawning it until the cooldown expires.

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("native-relaunch", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Execute(func() error {
		return server.launch()
	})
*/
package resilience
