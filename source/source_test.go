package source

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taigrr/deskmotion/detector"
	"github.com/taigrr/deskmotion/shm"
)

type fakeRing struct {
	samples []shm.Sample
	closed  bool
}

func (f *fakeRing) ReadNew(lastTotal uint64, _ float64) ([]shm.Sample, uint64) {
	total := uint64(len(f.samples))
	if lastTotal >= total {
		return nil, total
	}
	return f.samples[lastTotal:], total
}

func (f *fakeRing) Close() error {
	f.closed = true
	return nil
}

func TestRingReturnsNewest(t *testing.T) {
	fr := &fakeRing{}
	r := NewRing(fr, shm.AccelScale)
	ctx := context.Background()

	_, err := r.ReadSample(ctx)
	require.ErrorIs(t, err, ErrNoSample)

	fr.samples = append(fr.samples, shm.Sample{Z: 1}, shm.Sample{X: 0.2, Z: 1})
	s, err := r.ReadSample(ctx)
	require.NoError(t, err)
	require.Equal(t, detector.Sample{X: 0.2, Z: 1}, s)

	_, err = r.ReadSample(ctx)
	require.ErrorIs(t, err, ErrNoSample, "no new data since the last read")

	require.NoError(t, r.Close())
	require.True(t, fr.closed)
}

func TestRingProducerRestart(t *testing.T) {
	fr := &fakeRing{samples: []shm.Sample{{Z: 1}, {Z: 1}, {Z: 1}}}
	r := NewRing(fr, shm.AccelScale)
	_, err := r.ReadSample(context.Background())
	require.NoError(t, err)

	fr.samples = []shm.Sample{{Y: 0.5}}
	s, err := r.ReadSample(context.Background())
	require.NoError(t, err)
	require.Equal(t, detector.Sample{Y: 0.5}, s)
}

func TestRingHonorsContext(t *testing.T) {
	r := NewRing(&fakeRing{}, shm.AccelScale)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ReadSample(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want detector.Sample
		ok   bool
	}{
		{"0.01 -0.02 0.98", detector.Sample{X: 0.01, Y: -0.02, Z: 0.98}, true},
		{"0.5,0.25,1", detector.Sample{X: 0.5, Y: 0.25, Z: 1}, true},
		{"1;\t2; 3", detector.Sample{X: 1, Y: 2, Z: 3}, true},
		{"1 2", detector.Sample{}, false},
		{"1 2 x", detector.Sample{}, false},
		{"nan 0 1", detector.Sample{}, false},
		{"0 Inf 1", detector.Sample{}, false},
		{"0 0 -Infinity", detector.Sample{}, false},
	}
	for _, tt := range tests {
		got, err := ParseLine(tt.line)
		if !tt.ok {
			require.ErrorIs(t, err, ErrBadLine, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		require.Equal(t, tt.want, got)
	}
}

func TestLinesKeepsLatest(t *testing.T) {
	pr, pw := io.Pipe()
	l := NewLines(pr)
	ctx := context.Background()

	_, err := l.ReadSample(ctx)
	require.ErrorIs(t, err, ErrNoSample)

	_, err = io.WriteString(pw, "# header\n0 0 1\nbad line\n0.1 0 1\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return l.Malformed() == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		s, err := l.ReadSample(ctx)
		return err == nil && s == detector.Sample{X: 0.1, Z: 1}
	}, time.Second, 5*time.Millisecond)

	_, err = l.ReadSample(ctx)
	require.ErrorIs(t, err, ErrNoSample)

	require.NoError(t, pw.Close())
	require.Eventually(t, func() bool {
		_, err := l.ReadSample(ctx)
		return errors.Is(err, io.EOF)
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())
}

func TestFunc(t *testing.T) {
	var src Source = Func(func(context.Context) (detector.Sample, error) {
		return detector.Sample{Z: 1}, nil
	})
	s, err := src.ReadSample(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, s.Z)
}
