// Package source provides accelerometer sample sources for the motion
// monitor.
package source

import (
	"context"
	"errors"
	"io"

	"github.com/taigrr/deskmotion/detector"
)

// ErrNoSample is returned when a source has nothing new this tick. The
// monitor treats it like any other transient read failure.
var ErrNoSample = errors.New("no new sample")

// Source yields one acceleration sample per call. Implementations must not
// block past ctx.
type Source interface {
	ReadSample(ctx context.Context) (detector.Sample, error)
}

// Func adapts a function to the Source interface.
type Func func(ctx context.Context) (detector.Sample, error)

// ReadSample calls f(ctx).
func (f Func) ReadSample(ctx context.Context) (detector.Sample, error) {
	return f(ctx)
}

// Close closes s if it holds resources.
func Close(s Source) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
