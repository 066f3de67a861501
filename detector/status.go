package detector

import "time"

// Labels shown by status consumers.
const (
	LabelTap     = "Tap"
	LabelShake   = "Shake"
	LabelReady   = "Ready"
	LabelOffline = "Offline"
)

// Status is a point-in-time copy of the detector output.
type Status struct {
	Shake bool
	Tap   bool
	// LastMotion is the detector time of the most recent accepted tap or
	// confirmed shake; zero means none yet.
	LastMotion time.Duration
}

// Label returns the short display label for a running detector. Tap wins
// over Shake.
func (s Status) Label() string {
	switch {
	case s.Tap:
		return LabelTap
	case s.Shake:
		return LabelShake
	default:
		return LabelReady
	}
}

// EventKind identifies a detector event.
type EventKind int

const (
	EventTap EventKind = iota + 1
	EventShakeConfirmed
	EventShakeEnded
)

func (k EventKind) String() string {
	switch k {
	case EventTap:
		return "tap"
	case EventShakeConfirmed:
		return "shake"
	case EventShakeEnded:
		return "shake-ended"
	default:
		return "unknown"
	}
}

// Event records a discrete gesture transition.
type Event struct {
	Kind EventKind
	At   time.Duration
	// Energy is the delta magnitude for shake events and |Δz| for taps.
	Energy float64
}
