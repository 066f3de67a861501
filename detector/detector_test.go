package detector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New(DefaultConfig())
	require.NoError(t, err)
	return d
}

// shaker produces samples whose X alternates between 0 and amp, so every
// call after the first has a delta magnitude of amp.
type shaker struct {
	amp float64
	x   float64
}

func (s *shaker) next() Sample {
	if s.x == 0 {
		s.x = s.amp
	} else {
		s.x = 0
	}
	return Sample{X: s.x, Z: 1}
}

// hold repeats the current position.
func (s *shaker) hold() Sample {
	return Sample{X: s.x, Z: 1}
}

func countEvents(d *Detector, kind EventKind) int {
	n := 0
	for _, ev := range d.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestShakeScenario(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)

	sh := &shaker{amp: 0.25}
	// First active tick is 50ms; confirmation lands 500ms later.
	for i := 1; i <= 11; i++ {
		now := time.Duration(i) * 50 * ms
		st := d.Process(sh.next(), now)
		if i < 11 {
			require.False(t, st.Shake, "tick %d", i)
			require.Equal(t, ShakeAccumulating, d.Phase())
		} else {
			require.True(t, st.Shake, "tick %d", i)
			require.Equal(t, ShakeConfirmed, d.Phase())
			require.Equal(t, 550*ms, st.LastMotion)
		}
	}

	// Activity stops; the flag stays up for the display time measured from
	// the last active tick at 550ms.
	for now := 600 * ms; now <= 1300*ms; now += 50 * ms {
		st := d.Process(sh.hold(), now)
		require.True(t, st.Shake, "at %s", now)
		require.Equal(t, LabelShake, st.Label())
	}
	st := d.Process(sh.hold(), 1350*ms)
	require.False(t, st.Shake)
	require.Equal(t, ShakeIdle, d.Phase())
	require.Equal(t, LabelReady, st.Label())

	require.Equal(t, 1, countEvents(d, EventShakeConfirmed))
	require.Equal(t, 1, countEvents(d, EventShakeEnded))
}

func TestShakeCoolingBeforeDisplayExpires(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.25}
	for i := 1; i <= 11; i++ {
		d.Process(sh.next(), time.Duration(i)*50*ms)
	}

	d.Process(sh.hold(), 1050*ms)
	require.Equal(t, ShakeConfirmed, d.Phase(), "gap equal to timeout is not enough")

	st := d.Process(sh.hold(), 1100*ms)
	require.Equal(t, ShakeCooling, d.Phase())
	require.True(t, st.Shake)
}

func TestShakeConfirmsOnElapsedTimeNotTicks(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.3}

	// Irregular tick spacing, every gap inside the activity timeout.
	for _, now := range []time.Duration{50 * ms, 130 * ms, 300 * ms, 549 * ms} {
		require.False(t, d.Process(sh.next(), now).Shake, "at %s", now)
	}
	require.True(t, d.Process(sh.next(), 550*ms).Shake)
}

func TestShakeBelowThresholdNeverFires(t *testing.T) {
	d := newTestDetector(t)
	// Energy is about 0.112g each tick and |Δz| is 0.05g.
	x, z := 0.0, 1.0
	for i := range 400 {
		if i%2 == 0 {
			x, z = 0.1, 1.05
		} else {
			x, z = 0, 1.0
		}
		st := d.Process(Sample{X: x, Z: z}, time.Duration(i)*50*ms)
		require.False(t, st.Shake)
		require.False(t, st.Tap)
	}
	require.Empty(t, d.Events())
}

func TestShakeFlickerKeepsConfirmationTimer(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.25}

	var confirmedAt time.Duration
	for i := 1; i <= 20; i++ {
		now := time.Duration(i) * 50 * ms
		s := sh.hold()
		if i%3 != 0 {
			s = sh.next()
		}
		if d.Process(s, now).Shake {
			confirmedAt = now
			break
		}
	}
	require.Equal(t, 550*ms, confirmedAt)
}

func TestShakeTimeoutRestartsAccumulation(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.25}

	for i := 1; i <= 6; i++ {
		d.Process(sh.next(), time.Duration(i)*50*ms)
	}
	require.Equal(t, ShakeAccumulating, d.Phase())

	d.Process(sh.hold(), 800*ms)
	require.Equal(t, ShakeAccumulating, d.Phase(), "gap of 500ms is within the timeout")
	st := d.Process(sh.hold(), 850*ms)
	require.Equal(t, ShakeIdle, d.Phase())
	require.False(t, st.Shake, "an unconfirmed shake is never shown")

	// A fresh burst needs the full duration again.
	for now := 900 * ms; now < 1400*ms; now += 50 * ms {
		require.False(t, d.Process(sh.next(), now).Shake, "at %s", now)
	}
	require.True(t, d.Process(sh.next(), 1400*ms).Shake)
}

func TestShakeResumedDuringCoolingKeepsHold(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.25}
	for i := 1; i <= 11; i++ {
		d.Process(sh.next(), time.Duration(i)*50*ms)
	}
	d.Process(sh.hold(), 1100*ms)
	require.Equal(t, ShakeCooling, d.Phase())

	st := d.Process(sh.next(), 1150*ms)
	require.Equal(t, ShakeAccumulating, d.Phase())
	require.True(t, st.Shake)

	// Hold started at 550ms and lasts 800ms.
	st = d.Process(sh.next(), 1350*ms)
	require.False(t, st.Shake)
	require.Equal(t, ShakeAccumulating, d.Phase())
}

func TestTapScenario(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)

	st := d.Process(Sample{Z: 1.3}, 50*ms)
	require.True(t, st.Tap)
	require.Equal(t, 50*ms, st.LastMotion)
	require.Equal(t, LabelTap, st.Label())

	// Return swing and a second spike 100ms after the first fall inside the
	// debounce window.
	d.Process(Sample{Z: 1.0}, 100*ms)
	d.Process(Sample{Z: 1.3}, 150*ms)
	d.Process(Sample{Z: 1.0}, 200*ms)
	require.Equal(t, 1, countEvents(d, EventTap))
	require.Equal(t, 50*ms, d.Status().LastMotion)

	// 200ms after the first spike is outside the window.
	st = d.Process(Sample{Z: 1.3}, 250*ms)
	require.True(t, st.Tap)
	require.Equal(t, 2, countEvents(d, EventTap))
	require.Equal(t, 250*ms, st.LastMotion)
	require.False(t, st.Shake)
}

func TestTapDisplayExpires(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	require.True(t, d.Process(Sample{Z: 1.3}, 50*ms).Tap)
	d.Process(Sample{Z: 1.0}, 100*ms)

	for now := 150 * ms; now < 850*ms; now += 50 * ms {
		require.True(t, d.Process(Sample{Z: 1.0}, now).Tap, "at %s", now)
	}
	st := d.Process(Sample{Z: 1.0}, 850*ms)
	require.False(t, st.Tap)
	require.False(t, st.Shake)
	require.Equal(t, 50*ms, st.LastMotion, "last motion survives the display timeout")
}

func TestTapDebounceAcrossManyTicks(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)

	z := 1.0
	for now := 10 * ms; now <= 190*ms; now += 10 * ms {
		if z == 1.0 {
			z = 1.3
		} else {
			z = 1.0
		}
		d.Process(Sample{Z: z}, now)
	}
	require.Equal(t, 1, countEvents(d, EventTap))
}

func TestShakeMasksTap(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	sh := &shaker{amp: 0.25}
	for i := 1; i <= 11; i++ {
		d.Process(sh.next(), time.Duration(i)*50*ms)
	}
	require.True(t, d.Status().Shake)

	st := d.Process(Sample{X: sh.x, Z: 1.5}, 600*ms)
	require.False(t, st.Tap)
	d.Process(Sample{X: sh.x, Z: 1.0}, 650*ms)

	// Still visible while cooling.
	d.Process(sh.hold(), 1200*ms)
	require.Equal(t, ShakeCooling, d.Phase())
	st = d.Process(Sample{X: sh.x, Z: 1.5}, 1250*ms)
	require.True(t, st.Shake)
	require.False(t, st.Tap)
	require.Zero(t, countEvents(d, EventTap))
}

func TestShakeConfirmationClearsTap(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	require.True(t, d.Process(Sample{Z: 1.3}, 50*ms).Tap)
	d.Process(Sample{Z: 1.0}, 100*ms)

	sh := &shaker{amp: 0.25}
	var st Status
	for now := 150 * ms; now <= 550*ms; now += 50 * ms {
		st = d.Process(sh.next(), now)
	}
	require.True(t, st.Shake)
	require.False(t, st.Tap)
	require.Equal(t, LabelShake, st.Label())
}

func TestFlatStreamNeverProducesEvents(t *testing.T) {
	d := newTestDetector(t)
	for i := range 500 {
		st := d.Process(Sample{X: 0.02, Y: -0.7, Z: 0.7}, time.Duration(i)*50*ms)
		require.Equal(t, Status{}, st)
	}
	require.Empty(t, d.Events())
	require.EqualValues(t, 500, d.SampleCount())
}

func TestFirstSampleOnlyPrimes(t *testing.T) {
	d := newTestDetector(t)
	st := d.Process(Sample{X: 3, Y: 3, Z: 5}, 0)
	require.Equal(t, Status{}, st)
	require.Equal(t, ShakeIdle, d.Phase())
	require.Zero(t, d.LatestEnergy())

	st = d.Process(Sample{X: 3, Y: 3, Z: 5}, 50*ms)
	require.Equal(t, Status{}, st)
}

func TestReset(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	d.Process(Sample{Z: 1.3}, 50*ms)
	require.True(t, d.Status().Tap)

	d.Reset()
	require.Equal(t, Status{}, d.Status())
	require.Empty(t, d.Events())
	require.Zero(t, d.SampleCount())

	// The first sample after a reset primes again instead of diffing
	// against the old one.
	require.False(t, d.Process(Sample{Z: 5}, 0).Tap)
}

func TestZeroMinDurationConfirmsOnFirstActiveTick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShakeMinDuration = 0
	d, err := New(cfg)
	require.NoError(t, err)

	d.Process(Sample{Z: 1}, 0)
	require.True(t, d.Process(Sample{X: 0.5, Z: 1}, 50*ms).Shake)
}

func TestNonFiniteSampleIsDropped(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)

	for i, s := range []Sample{{Z: math.NaN()}, {X: math.Inf(1), Z: 1}, {Y: math.Inf(-1), Z: 1}} {
		st := d.Process(s, time.Duration(i+1)*50*ms)
		require.False(t, st.Tap)
		require.False(t, st.Shake)
	}
	require.EqualValues(t, 1, d.SampleCount())
	require.Zero(t, d.LatestEnergy())

	// The reference is still the last finite sample.
	require.False(t, d.Process(Sample{Z: 1}, 200*ms).Tap)
	require.True(t, d.Process(Sample{Z: 1.3}, 250*ms).Tap)
	require.Equal(t, 1, countEvents(d, EventTap))
}

func TestTapRejectsNaNDelta(t *testing.T) {
	cfg := DefaultConfig()
	var tap tapState
	require.False(t, tap.update(math.NaN(), 50*ms, &cfg))
	require.False(t, tap.displayed)
	require.True(t, tap.update(0.3, 50*ms, &cfg))
}

func TestEventsSince(t *testing.T) {
	d := newTestDetector(t)
	d.Process(Sample{Z: 1}, 0)
	d.Process(Sample{Z: 1.3}, 50*ms)
	require.EqualValues(t, 1, d.EventTotal())

	d.Process(Sample{Z: 1.0}, 100*ms)
	d.Process(Sample{Z: 1.3}, 300*ms)
	require.EqualValues(t, 2, d.EventTotal())
	since := d.EventsSince(1)
	require.Len(t, since, 1)
	require.Equal(t, 300*ms, since[0].At)

	// Callers get a copy.
	evs := d.Events()
	evs[0].Kind = EventShakeEnded
	require.Equal(t, EventTap, d.Events()[0].Kind)
}
