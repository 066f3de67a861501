// Package detector turns a periodically sampled acceleration vector into
// debounced tap and shake gestures.
//
// Detection works on the change between consecutive samples rather than on
// absolute values, so a device mounted at an angle behaves like a flat one.
// All timing uses elapsed durations supplied by the caller.
package detector

import (
	"log/slog"
	"math"
	"time"
)

// EventHistory is how many events a Detector keeps.
const EventHistory = 64

// Sample is one accelerometer reading in g.
type Sample struct {
	X, Y, Z float64
}

// Sub returns the per-axis change from prev to s.
func (s Sample) Sub(prev Sample) Sample {
	return Sample{X: s.X - prev.X, Y: s.Y - prev.Y, Z: s.Z - prev.Z}
}

// Finite reports whether every axis is a finite number.
func (s Sample) Finite() bool {
	for _, v := range [3]float64{s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Norm returns the vector magnitude.
func (s Sample) Norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Detector holds the shake and tap state machines. It is not safe for
// concurrent use; one goroutine feeds it samples.
type Detector struct {
	cfg Config
	log *slog.Logger

	prev    Sample
	primed  bool
	shake   shakeState
	tap     tapState
	status  Status
	samples uint64
	energy  float64
	events  *Ring[Event]
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

// New validates cfg and returns an idle Detector.
func New(cfg Config, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:    cfg,
		log:    slog.New(slog.DiscardHandler),
		events: NewRing[Event](EventHistory),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	d.prev = Sample{}
	d.primed = false
	d.shake.reset()
	d.tap.reset()
	d.status = Status{}
	d.samples = 0
	d.energy = 0
	d.events.Reset()
}

// Status returns the output as of the last processed sample.
func (d *Detector) Status() Status {
	return d.status
}

// Phase returns the current shake phase.
func (d *Detector) Phase() ShakePhase {
	return d.shake.phase
}

// SampleCount returns how many samples were processed since the last reset.
func (d *Detector) SampleCount() uint64 {
	return d.samples
}

// LatestEnergy returns the delta magnitude of the last processed sample.
func (d *Detector) LatestEnergy() float64 {
	return d.energy
}

// Events returns the buffered events, oldest first.
func (d *Detector) Events() []Event {
	return d.events.Slice()
}

// EventTotal returns how many events were recorded since the last reset,
// including ones no longer buffered.
func (d *Detector) EventTotal() uint64 {
	return d.events.Total()
}

// EventsSince returns the buffered events recorded after the first total
// events.
func (d *Detector) EventsSince(total uint64) []Event {
	return d.events.Since(total)
}

// Process ingests one sample taken at now and returns the updated status.
// now must not go backwards between calls. A sample with a NaN or infinite
// axis is dropped like a failed read: no transition, and the previous sample
// stays the reference.
func (d *Detector) Process(s Sample, now time.Duration) Status {
	if !s.Finite() {
		d.log.Debug("non-finite sample dropped", "x", s.X, "y", s.Y, "z", s.Z, "at", now)
		return d.status
	}
	d.samples++
	if !d.primed {
		// Nothing to compare against yet.
		d.prev = s
		d.primed = true
		return d.status
	}

	delta := s.Sub(d.prev)
	d.prev = s
	energy := delta.Norm()
	d.energy = energy

	switch d.shake.update(energy > d.cfg.ShakeThreshold, now, &d.cfg) {
	case shakeStarted:
		d.log.Debug("shake activity started", "energy", energy, "at", now)
	case shakeConfirmed:
		d.log.Debug("shake confirmed", "energy", energy, "at", now)
		d.tap.cancel()
		d.status.LastMotion = now
		d.events.Push(Event{Kind: EventShakeConfirmed, At: now, Energy: energy})
	case shakeEnded:
		d.log.Debug("shake activity ended", "last_activity", d.shake.lastActivity, "at", now)
		d.events.Push(Event{Kind: EventShakeEnded, At: d.shake.lastActivity})
	case shakeCleared:
		d.log.Debug("shake display timeout", "at", now)
	case shakeAbandoned:
		d.log.Debug("shake activity abandoned before confirmation", "at", now)
	}

	if d.tap.expire(now, &d.cfg) {
		d.log.Debug("tap display timeout", "at", now)
	}

	// Shake masks tap.
	if !d.shake.active() {
		dz := math.Abs(delta.Z)
		if d.tap.update(dz, now, &d.cfg) {
			d.log.Debug("tap detected", "dz", dz, "at", now)
			d.status.LastMotion = now
			d.events.Push(Event{Kind: EventTap, At: now, Energy: dz})
		}
	}

	d.status.Shake = d.shake.active()
	d.status.Tap = d.tap.displayed
	return d.status
}
