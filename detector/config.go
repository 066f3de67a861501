package detector

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigInvalid is returned when a Config fails validation.
var ErrConfigInvalid = errors.New("invalid detector config")

// Config holds the thresholds and durations of a Detector. It is fixed once
// the detector is created.
type Config struct {
	// Shake
	ShakeThreshold   float64       // per-sample delta magnitude, g
	ShakeMinDuration time.Duration // continuous activity before confirming
	ShakeTimeout     time.Duration // quiet gap that ends a shake
	ShakeDisplay     time.Duration // minimum visible time after activity ends

	// Tap
	TapThreshold float64       // per-sample |Δz|, g
	TapDebounce  time.Duration // minimum time between accepted taps
	TapDisplay   time.Duration // how long a tap stays reported

	SamplePeriod time.Duration
}

// DefaultConfig returns the reference tuning for a flat-mounted MPU6050
// polled at 20 Hz.
func DefaultConfig() Config {
	return Config{
		ShakeThreshold:   0.18,
		ShakeMinDuration: 500 * time.Millisecond,
		ShakeTimeout:     500 * time.Millisecond,
		ShakeDisplay:     800 * time.Millisecond,
		TapThreshold:     0.2,
		TapDebounce:      180 * time.Millisecond,
		TapDisplay:       800 * time.Millisecond,
		SamplePeriod:     50 * time.Millisecond,
	}
}

// Validate reports the first out-of-range field, wrapped in ErrConfigInvalid.
func (c Config) Validate() error {
	thresholds := []struct {
		name string
		v    float64
	}{
		{"shake threshold", c.ShakeThreshold},
		{"tap threshold", c.TapThreshold},
	}
	for _, t := range thresholds {
		// NaN fails this comparison too.
		if !(t.v > 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrConfigInvalid, t.name, t.v)
		}
	}

	durations := []struct {
		name string
		v    time.Duration
	}{
		{"shake min duration", c.ShakeMinDuration},
		{"shake timeout", c.ShakeTimeout},
		{"shake display", c.ShakeDisplay},
		{"tap debounce", c.TapDebounce},
		{"tap display", c.TapDisplay},
	}
	for _, d := range durations {
		if d.v < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrConfigInvalid, d.name, d.v)
		}
	}

	if c.SamplePeriod <= 0 {
		return fmt.Errorf("%w: sample period must be positive, got %s", ErrConfigInvalid, c.SamplePeriod)
	}
	return nil
}
