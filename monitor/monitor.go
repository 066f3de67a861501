// Package monitor runs a motion detector against a sample source on a fixed
// tick and publishes consistent status snapshots to readers on other
// goroutines.
package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taigrr/deskmotion/clock"
	"github.com/taigrr/deskmotion/detector"
	"github.com/taigrr/deskmotion/source"
)

// DefaultOfflineAfter is how many consecutive failed reads mark the sensor
// link as down.
const DefaultOfflineAfter = 3

// recentEvents is the size of the event history kept for pollers.
const recentEvents = 32

// ErrNotInitialized is returned by readers while the monitor is not running.
var ErrNotInitialized = errors.New("motion monitor not initialized")

// Event is a detector event with an identity, so pollers can tell events
// they have already seen from new ones.
type Event struct {
	ID uuid.UUID
	detector.Event
}

// Snapshot is everything published after a tick, copied as one unit.
type Snapshot struct {
	detector.Status
	Online  bool
	Samples uint64 // samples processed since Start
	Dropped uint64 // failed reads since Start
	Events  uint64 // events emitted since Start
}

// Label returns the display label, reporting Offline when the link is down.
func (s Snapshot) Label() string {
	if !s.Online {
		return detector.LabelOffline
	}
	return s.Status.Label()
}

// Monitor owns a Detector and the goroutine that feeds it.
type Monitor struct {
	src          source.Source
	det          *detector.Detector
	clock        clock.Clock
	log          *slog.Logger
	offlineAfter int
	onEvent      func(Event)
	onSnapshot   func(Snapshot)

	// Owned by the sampling goroutine.
	epoch    time.Time
	failures int
	seen     uint64

	mu      sync.RWMutex
	running bool
	snap    Snapshot
	recent  *detector.Ring[Event]

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock driving ticks and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger for the monitor and its detector.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithOfflineAfter sets how many consecutive failed reads mark the link
// down. Values below one are ignored.
func WithOfflineAfter(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.offlineAfter = n
		}
	}
}

// WithEventHandler registers fn to receive each new event. It runs on the
// sampling goroutine and must return quickly.
func WithEventHandler(fn func(Event)) Option {
	return func(m *Monitor) {
		m.onEvent = fn
	}
}

// WithSnapshotHandler registers fn to receive the snapshot after every tick,
// including ticks whose read failed. It runs on the sampling goroutine and
// must return quickly.
func WithSnapshotHandler(fn func(Snapshot)) Option {
	return func(m *Monitor) {
		m.onSnapshot = fn
	}
}

// New validates cfg and returns a stopped Monitor reading from src.
func New(src source.Source, cfg detector.Config, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		src:          src,
		clock:        clock.Real,
		log:          slog.New(slog.DiscardHandler),
		offlineAfter: DefaultOfflineAfter,
		recent:       detector.NewRing[Event](recentEvents),
	}
	for _, opt := range opts {
		opt(m)
	}
	det, err := detector.New(cfg, detector.WithLogger(m.log))
	if err != nil {
		return nil, err
	}
	m.det = det
	return m, nil
}

// Start resets the detector and starts sampling. Starting a running
// monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.done != nil {
		select {
		case <-m.done:
			// The parent context ended the previous run.
			m.cancel()
		default:
			m.log.Warn("motion monitor already running")
			return nil
		}
	}

	m.det.Reset()
	m.failures = 0
	m.seen = 0
	m.epoch = m.clock.Now()

	m.mu.Lock()
	m.snap = Snapshot{}
	m.recent.Reset()
	m.running = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	ticker := m.clock.NewTicker(m.det.Config().SamplePeriod)

	go m.run(ctx, ticker, m.done)

	m.log.Info("motion monitor started", "period", m.det.Config().SamplePeriod)
	return nil
}

// Stop stops sampling and waits for the sampling goroutine to exit. The
// source stays open so the monitor can be started again.
func (m *Monitor) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stopLocked()
	return nil
}

func (m *Monitor) stopLocked() {
	if m.done == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
	m.log.Info("motion monitor stopped")
}

// Close stops sampling, then closes the source if it is an io.Closer.
func (m *Monitor) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stopLocked()
	return source.Close(m.src)
}

func (m *Monitor) run(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		m.step(ctx)
	}
}

// step performs one tick: read, detect, publish.
func (m *Monitor) step(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, m.det.Config().SamplePeriod)
	s, err := m.src.ReadSample(readCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.dropped(err)
		return
	}
	now := m.clock.Now().Sub(m.epoch)
	m.failures = 0

	st := m.det.Process(s, now)

	var events []Event
	if total := m.det.EventTotal(); total != m.seen {
		for _, ev := range m.det.EventsSince(m.seen) {
			events = append(events, Event{ID: uuid.New(), Event: ev})
		}
		m.seen = total
	}

	m.mu.Lock()
	if !m.snap.Online {
		m.log.Info("sensor link up")
	}
	m.snap.Status = st
	m.snap.Online = true
	m.snap.Samples++
	m.snap.Events += uint64(len(events))
	for _, ev := range events {
		m.recent.Push(ev)
	}
	snap := m.snap
	m.mu.Unlock()

	for _, ev := range events {
		m.log.Info("motion event", "kind", ev.Kind, "at", ev.At, "energy", ev.Energy, "id", ev.ID)
		if m.onEvent != nil {
			m.onEvent(ev)
		}
	}
	if m.onSnapshot != nil {
		m.onSnapshot(snap)
	}
}

// dropped records a failed read. Detector state is left alone; the next
// successful read is compared against true elapsed time.
func (m *Monitor) dropped(err error) {
	m.failures++
	if !errors.Is(err, source.ErrNoSample) {
		m.log.Debug("sample read failed", "error", err, "consecutive", m.failures)
	}

	m.mu.Lock()
	m.snap.Dropped++
	if m.snap.Online && m.failures >= m.offlineAfter {
		m.snap.Online = false
		m.log.Warn("sensor link down", "error", err, "consecutive", m.failures)
	}
	snap := m.snap
	m.mu.Unlock()

	if m.onSnapshot != nil {
		m.onSnapshot(snap)
	}
}

// Snapshot returns the latest published snapshot.
func (m *Monitor) Snapshot() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return Snapshot{}, ErrNotInitialized
	}
	return m.snap, nil
}

// Status returns the motion status as of the last processed sample.
func (m *Monitor) Status() (detector.Status, error) {
	snap, err := m.Snapshot()
	return snap.Status, err
}

// Label returns "Tap", "Shake", "Ready" or "Offline".
func (m *Monitor) Label() (string, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return "", err
	}
	return snap.Label(), nil
}

// WriteLabel copies the label into buf, truncating it to fit, and returns
// the number of bytes written. No terminator is written.
func (m *Monitor) WriteLabel(buf []byte) (int, error) {
	label, err := m.Label()
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, io.ErrShortBuffer
	}
	return copy(buf, label), nil
}

// IsShaking reports whether a shake is visible; false when not running.
func (m *Monitor) IsShaking() bool {
	snap, err := m.Snapshot()
	return err == nil && snap.Shake
}

// IsTapped reports whether a tap is visible; false when not running.
func (m *Monitor) IsTapped() bool {
	snap, err := m.Snapshot()
	return err == nil && snap.Tap
}

// Recent returns the most recent events, oldest first.
func (m *Monitor) Recent() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recent.Slice()
}
