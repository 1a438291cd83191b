//go:build !windows

package observer

import (
	"time"

	"github.com/rzayevsahil/Monity/internal/tracker"
)

// stubObserver reports no foreground window. Tracking only yields data on
// platforms with a real implementation, but the daemon and its collaborators
// still run everywhere.
type stubObserver struct{}

// New returns the platform observer.
func New() tracker.Observer {
	return &stubObserver{}
}

func (stubObserver) Sample() *tracker.Sample { return nil }

func (stubObserver) Idle() time.Duration { return 0 }
