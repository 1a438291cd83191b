package tracker

import (
	"strconv"
	"time"
)

// Sample identifies the process currently holding the foreground.
type Sample struct {
	ProcessID   int
	ProcessName string
	ExePath     string
	WindowTitle string
}

// Key returns the identity used to decide session boundaries. Two samples
// with the same key belong to the same open session.
func (s *Sample) Key() string {
	return strconv.Itoa(s.ProcessID) + ":" + s.ProcessName
}

// Observer supplies the raw foreground signal. The engine never calls OS
// APIs directly; platform implementations live in internal/observer.
type Observer interface {
	// Sample returns the current foreground process, or nil when none is
	// resolvable. A nil sample is a no-op tick, not an error.
	Sample() *Sample

	// Idle returns the elapsed time since the last user input.
	Idle() time.Duration
}
