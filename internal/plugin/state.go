package plugin

import "fmt"

// State is the host lifecycle position of a Plugin.
// Transitions: Uninitialized -> Ready -> ShuttingDown -> Stopped. A failed Load
// and an Unload before Load both go straight to Stopped.
type State int32

const (
	Uninitialized State = iota
	Ready
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
