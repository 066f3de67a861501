package detector

import "time"

// ShakePhase is the state of the shake sub-detector.
type ShakePhase int

const (
	ShakeIdle ShakePhase = iota
	ShakeAccumulating
	ShakeConfirmed
	ShakeCooling
)

func (p ShakePhase) String() string {
	switch p {
	case ShakeIdle:
		return "idle"
	case ShakeAccumulating:
		return "accumulating"
	case ShakeConfirmed:
		return "confirmed"
	case ShakeCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// shakeTransition is what a single shake update changed, if anything.
type shakeTransition int

const (
	shakeNone shakeTransition = iota
	shakeStarted
	shakeConfirmed
	shakeEnded
	shakeCleared
	shakeAbandoned
)

// shakeState tracks sustained motion energy.
//
// Cooling keeps Shake visible after the motion itself has stopped. If activity
// resumes while cooling, a new confirmation window starts but the hold from the
// previous shake stays in force until it expires or the new one confirms.
type shakeState struct {
	phase        ShakePhase
	startedAt    time.Duration
	confirmedAt  time.Duration
	lastActivity time.Duration
	holdFrom     time.Duration // start of the display hold
	holding      bool
}

func (s *shakeState) reset() {
	*s = shakeState{}
}

// active reports whether Shake is currently visible.
func (s *shakeState) active() bool {
	return s.phase == ShakeConfirmed || s.holding
}

// update advances the shake state machine by one sample.
func (s *shakeState) update(activity bool, now time.Duration, cfg *Config) shakeTransition {
	tr := shakeNone

	if activity {
		s.lastActivity = now
		switch s.phase {
		case ShakeIdle, ShakeCooling:
			s.phase = ShakeAccumulating
			s.startedAt = now
			tr = shakeStarted
		}
		if s.phase == ShakeAccumulating && now-s.startedAt >= cfg.ShakeMinDuration {
			s.phase = ShakeConfirmed
			s.confirmedAt = now
			s.holding = false
			return shakeConfirmed
		}
	} else if now-s.lastActivity > cfg.ShakeTimeout {
		switch s.phase {
		case ShakeConfirmed:
			s.phase = ShakeCooling
			s.holdFrom = s.lastActivity
			s.holding = true
			tr = shakeEnded
		case ShakeAccumulating:
			if s.holding {
				s.phase = ShakeCooling
			} else {
				s.phase = ShakeIdle
			}
			tr = shakeAbandoned
		}
	}

	if s.holding && now-s.holdFrom >= cfg.ShakeDisplay {
		s.holding = false
		if s.phase == ShakeCooling {
			s.phase = ShakeIdle
		}
		// An end or abandon in the same step is the more useful report.
		if tr == shakeNone {
			tr = shakeCleared
		}
	}
	return tr
}
