package detector

import "time"

// tapState tracks short vertical impulses.
type tapState struct {
	tapped    bool // at least one tap accepted since reset
	lastTap   time.Duration
	displayed bool
}

func (t *tapState) reset() {
	*t = tapState{}
}

// expire clears the displayed tap once its display time has passed. It
// reports whether the flag was cleared.
func (t *tapState) expire(now time.Duration, cfg *Config) bool {
	if t.displayed && now-t.lastTap >= cfg.TapDisplay {
		t.displayed = false
		return true
	}
	return false
}

// update evaluates one |Δz| reading and reports whether a tap was accepted.
func (t *tapState) update(dz float64, now time.Duration, cfg *Config) bool {
	// NaN fails this comparison too.
	if !(dz > cfg.TapThreshold) {
		return false
	}
	if t.tapped && now-t.lastTap <= cfg.TapDebounce {
		return false
	}
	t.tapped = true
	t.lastTap = now
	t.displayed = true
	return true
}

// cancel drops the displayed tap without touching the debounce window.
func (t *tapState) cancel() {
	t.displayed = false
}
