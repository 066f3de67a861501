// Package clock abstracts the parts of package time the sampling loop
// depends on, so tests can control apparent time.
package clock

import "time"

type (
	// Clock reports the current time and creates tickers.
	Clock interface {
		Now() time.Time
		NewTicker(d time.Duration) Ticker
	}

	// Ticker abstracts time.Ticker.
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	realClock struct{}

	realTicker struct {
		*time.Ticker
	}
)

// Real is the process clock. Its readings carry the monotonic clock, so
// differences between them are immune to wall-clock steps.
var Real Clock = realClock{}

// Now indirects time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// NewTicker indirects time.NewTicker.
func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{Ticker: time.NewTicker(d)}
}

// C indirects time.Ticker.C.
func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}
