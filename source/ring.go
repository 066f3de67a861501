package source

import (
	"context"
	"io"

	"github.com/taigrr/deskmotion/detector"
	"github.com/taigrr/deskmotion/shm"
)

// RingReader is the read side of a shared memory sample ring.
type RingReader interface {
	ReadNew(lastTotal uint64, scale float64) ([]shm.Sample, uint64)
}

// Ring reads the newest sample from a shared memory ring written by a
// sensor daemon. Producers usually run faster than the monitor ticks, so
// everything but the latest sample is skipped.
type Ring struct {
	r     RingReader
	scale float64
	last  uint64
}

// NewRing wraps r. Samples already in the ring when the first read happens
// are ignored except for the newest one.
func NewRing(r RingReader, scale float64) *Ring {
	return &Ring{r: r, scale: scale}
}

// ReadSample implements Source.
func (s *Ring) ReadSample(ctx context.Context) (detector.Sample, error) {
	if err := ctx.Err(); err != nil {
		return detector.Sample{}, err
	}
	samples, total := s.r.ReadNew(s.last, s.scale)
	if total < s.last {
		// Producer restarted and the counter went back to zero.
		samples, total = s.r.ReadNew(0, s.scale)
	}
	s.last = total
	if len(samples) == 0 {
		return detector.Sample{}, ErrNoSample
	}
	v := samples[len(samples)-1]
	return detector.Sample{X: v.X, Y: v.Y, Z: v.Z}, nil
}

// Close closes the underlying ring if it is closable.
func (s *Ring) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
