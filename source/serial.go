package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"

	"github.com/taigrr/deskmotion/detector"
)

// ErrBadLine is returned by ParseLine for malformed input.
var ErrBadLine = errors.New("malformed sample line")

// ParseLine parses "x y z" or "x,y,z" (g units) as printed by a
// microcontroller bridging the accelerometer.
func ParseLine(line string) (detector.Sample, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if len(fields) != 3 {
		return detector.Sample{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return detector.Sample{}, fmt.Errorf("%w: %q: %w", ErrBadLine, line, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return detector.Sample{}, fmt.Errorf("%w: %q: non-finite value", ErrBadLine, line)
		}
		v[i] = x
	}
	return detector.Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Lines reads newline-delimited samples from a stream in the background
// and hands out the most recent one.
type Lines struct {
	rc io.ReadCloser

	mu     sync.Mutex
	latest detector.Sample
	fresh  bool
	err    error
	bad    uint64

	done chan struct{}
}

// NewLines starts reading from rc. Close stops the reader.
func NewLines(rc io.ReadCloser) *Lines {
	l := &Lines{rc: rc, done: make(chan struct{})}
	go l.run()
	return l
}

func (l *Lines) run() {
	defer close(l.done)
	sc := bufio.NewScanner(l.rc)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := ParseLine(line)
		l.mu.Lock()
		if err != nil {
			l.bad++
		} else {
			l.latest = s
			l.fresh = true
		}
		l.mu.Unlock()
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

// ReadSample implements Source. It returns ErrNoSample when no complete
// line arrived since the previous call.
func (l *Lines) ReadSample(ctx context.Context) (detector.Sample, error) {
	if err := ctx.Err(); err != nil {
		return detector.Sample{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fresh {
		l.fresh = false
		return l.latest, nil
	}
	if l.err != nil {
		return detector.Sample{}, fmt.Errorf("sample stream closed: %w", l.err)
	}
	return detector.Sample{}, ErrNoSample
}

// Malformed returns how many lines failed to parse.
func (l *Lines) Malformed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bad
}

// Close closes the stream and waits for the reader to exit.
func (l *Lines) Close() error {
	err := l.rc.Close()
	<-l.done
	return err
}

// OpenSerial opens a serial port streaming sample lines.
func OpenSerial(name string, baud int) (*Lines, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", name, err)
	}
	return NewLines(&portReader{port: port}), nil
}

// portReader retries the empty reads a serial port reports each time its
// read timeout expires without data, until the port is closed.
type portReader struct {
	port   *serial.Port
	closed atomic.Bool
}

func (r *portReader) Read(b []byte) (int, error) {
	for {
		n, err := r.port.Read(b)
		if n == 0 && errors.Is(err, io.EOF) && !r.closed.Load() {
			continue
		}
		return n, err
	}
}

func (r *portReader) Close() error {
	r.closed.Store(true)
	return r.port.Close()
}
