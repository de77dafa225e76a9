package lifecycle

import "fmt"

// Phase is the coarse coordinator state
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseBootstrapping Phase = "bootstrapping"
	PhaseReady         Phase = "ready"
	PhaseDestroyed     Phase = "destroyed"
)

// EventKind identifies a lifecycle event
type EventKind string

const (
	EventCreated           EventKind = "created"
	EventResumed           EventKind = "resumed"
	EventPaused            EventKind = "paused"
	EventDestroyed         EventKind = "destroyed"
	EventRestartRequested  EventKind = "restart_requested"
	EventBootstrapFinished EventKind = "bootstrap_finished"
)

// Event is a lifecycle input. PermissionGranted is only read for Created.
type Event struct {
	Kind              EventKind
	PermissionGranted bool
}

// CommandKind identifies a side effect to execute
type CommandKind string

const (
	CmdRequestPermission CommandKind = "request_permission"
	CmdExtract           CommandKind = "extract"
	CmdCancelExtract     CommandKind = "cancel_extract"
	CmdStartSession      CommandKind = "start_session"
	CmdStopSession       CommandKind = "stop_session"
	CmdReconcileSession  CommandKind = "reconcile_session"
	CmdNativeInit        CommandKind = "native_init"
	CmdNativePause       CommandKind = "native_pause"
	CmdNativeResume      CommandKind = "native_resume"
	CmdNativeRestart     CommandKind = "native_restart"
	CmdNativeShutdown    CommandKind = "native_shutdown"
	CmdCursorBlink       CommandKind = "cursor_blink"
)

// Command is a side effect produced by Transition. On is only meaningful
// for CmdCursorBlink.
type Command struct {
	Kind CommandKind
	On   bool
}

func (c Command) String() string {
	if c.Kind == CmdCursorBlink {
		return fmt.Sprintf("%s(%t)", c.Kind, c.On)
	}
	return string(c.Kind)
}

// State is the coordinator's complete state
type State struct {
	Phase   Phase
	Visible bool
	// StopNativeOnDestroy adds a native shutdown to the destroy sequence
	StopNativeOnDestroy bool
}

func cmd(kind CommandKind) Command { return Command{Kind: kind} }

func blink(on bool) Command { return Command{Kind: CmdCursorBlink, On: on} }

// Transition returns the next state and the commands to execute, in order.
// It has no side effects.
func Transition(s State, e Event) (State, []Command) {
	next, cmds, _ := transition(s, e)
	return next, cmds
}

// transition also reports whether the event was accepted in the current phase
func transition(s State, e Event) (State, []Command, bool) {
	if s.Phase == PhaseDestroyed {
		return s, nil, false
	}

	switch e.Kind {
	case EventResumed:
		s.Visible = true
		if s.Phase != PhaseReady {
			return s, nil, true
		}
		return s, []Command{cmd(CmdNativeResume), cmd(CmdReconcileSession), blink(true)}, true

	case EventPaused:
		s.Visible = false
		if s.Phase != PhaseReady {
			return s, nil, true
		}
		return s, []Command{blink(false), cmd(CmdNativePause)}, true

	case EventDestroyed:
		var cmds []Command
		switch s.Phase {
		case PhaseBootstrapping:
			cmds = append(cmds, cmd(CmdCancelExtract), cmd(CmdStopSession))
		case PhaseReady:
			cmds = append(cmds, cmd(CmdStopSession))
			if s.StopNativeOnDestroy {
				cmds = append(cmds, cmd(CmdNativeShutdown))
			}
		}
		s.Phase = PhaseDestroyed
		s.Visible = false
		return s, cmds, true
	}

	switch s.Phase {
	case PhaseIdle:
		if e.Kind != EventCreated {
			return s, nil, false
		}
		s.Phase = PhaseBootstrapping
		var cmds []Command
		if !e.PermissionGranted {
			cmds = append(cmds, cmd(CmdRequestPermission))
		}
		return s, append(cmds, cmd(CmdExtract)), true

	case PhaseBootstrapping:
		if e.Kind != EventBootstrapFinished {
			return s, nil, false
		}
		s.Phase = PhaseReady
		cmds := []Command{cmd(CmdStartSession), cmd(CmdNativeInit)}
		if s.Visible {
			cmds = append(cmds, cmd(CmdNativeResume), cmd(CmdReconcileSession), blink(true))
		}
		return s, cmds, true

	case PhaseReady:
		if e.Kind != EventRestartRequested {
			return s, nil, false
		}
		return s, []Command{cmd(CmdNativeRestart)}, true
	}

	return s, nil, false
}
