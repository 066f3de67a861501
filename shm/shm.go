//go:build darwin || linux

package shm

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RingBuffer is the read side of a shared memory ring of raw Q16 samples
// written by an external sensor daemon.
type RingBuffer struct {
	buf  []byte
	name string
	fd   int
}

// OpenRing opens an existing POSIX shared memory ring buffer (read-only).
func OpenRing(name string) (*RingBuffer, error) {
	buf, fd, err := open(name, SHMSize)
	if err != nil {
		return nil, err
	}
	return &RingBuffer{buf: buf, name: name, fd: fd}, nil
}

// ReadNew reads new samples since lastTotal, scaling by the given factor.
// Returns the samples and the new total.
func (r *RingBuffer) ReadNew(lastTotal uint64, scale float64) ([]Sample, uint64) {
	total := binary.LittleEndian.Uint64(r.buf[4:12])
	nNew := int64(total) - int64(lastTotal)
	if nNew <= 0 {
		return nil, total
	}
	if nNew > RingCap {
		nNew = RingCap
	}

	idx := binary.LittleEndian.Uint32(r.buf[0:4])
	start := (int64(idx) - nNew + RingCap) % RingCap
	samples := make([]Sample, nNew)

	for i := range nNew {
		pos := (start + i) % RingCap
		off := SHMHeader + int(pos)*RingEntry
		x := int32(binary.LittleEndian.Uint32(r.buf[off:]))
		y := int32(binary.LittleEndian.Uint32(r.buf[off+4:]))
		z := int32(binary.LittleEndian.Uint32(r.buf[off+8:]))
		samples[i] = Sample{
			X: float64(x) / scale,
			Y: float64(y) / scale,
			Z: float64(z) / scale,
		}
	}

	return samples, total
}

// Close unmaps and closes the shared memory (does not unlink).
func (r *RingBuffer) Close() error {
	if err := unix.Munmap(r.buf); err != nil {
		return err
	}
	return unix.Close(r.fd)
}

// Snapshot is a shared memory region holding only the latest value. Writes
// are guarded by a sequence counter that is odd while a write is in
// progress, so readers never return a half-written payload.
type Snapshot struct {
	buf  []byte
	name string
	fd   int
	size int
}

// CreateSnapshot creates a new POSIX shared memory snapshot region.
func CreateSnapshot(name string, size int) (*Snapshot, error) {
	buf, fd, err := create(name, size)
	if err != nil {
		return nil, err
	}
	return &Snapshot{buf: buf, name: name, fd: fd, size: size}, nil
}

// OpenSnapshot opens an existing shared memory snapshot region (read-only).
func OpenSnapshot(name string, size int) (*Snapshot, error) {
	buf, fd, err := open(name, size)
	if err != nil {
		return nil, err
	}
	return &Snapshot{buf: buf, name: name, fd: fd, size: size}, nil
}

// readRetries bounds how long Read waits out a concurrent write.
const readRetries = 1000

// seq points at the sequence counter. mmap regions are page aligned.
func (s *Snapshot) seq() *uint32 {
	return (*uint32)(unsafe.Pointer(&s.buf[0]))
}

// Write stores payload. Only one process may write a snapshot.
func (s *Snapshot) Write(payload []byte) {
	seq := s.seq()
	atomic.AddUint32(seq, 1)
	copy(s.buf[SnapHeader:], payload)
	atomic.AddUint32(seq, 1)
}

// Read returns a consistent copy of the payload if the snapshot changed
// since lastSeq. It returns a nil payload when nothing changed.
func (s *Snapshot) Read(lastSeq uint32, payloadLen int) ([]byte, uint32) {
	seq := s.seq()
	payload := make([]byte, payloadLen)
	for range readRetries {
		before := atomic.LoadUint32(seq)
		if before == lastSeq {
			return nil, before
		}
		if before%2 == 1 {
			runtime.Gosched()
			continue
		}
		copy(payload, s.buf[SnapHeader:SnapHeader+payloadLen])
		if atomic.LoadUint32(seq) == before {
			return payload, before
		}
	}
	// The writer is stuck mid-write; report no change.
	return nil, lastSeq
}

// WriteStatus encodes and stores a Status.
func (s *Snapshot) WriteStatus(st Status) {
	s.Write(EncodeStatus(st))
}

// ReadStatus returns the stored Status if it changed since lastSeq.
func (s *Snapshot) ReadStatus(lastSeq uint32) (Status, uint32, bool) {
	payload, seq := s.Read(lastSeq, StatusLen)
	if payload == nil {
		return Status{}, seq, false
	}
	st, err := DecodeStatus(payload)
	if err != nil {
		return Status{}, seq, false
	}
	return st, seq, true
}

// Close unmaps and closes the snapshot shared memory.
func (s *Snapshot) Close() error {
	if err := unix.Munmap(s.buf); err != nil {
		return err
	}
	return unix.Close(s.fd)
}

// Unlink removes the named shared memory segment.
func (s *Snapshot) Unlink() error {
	return shmUnlink(s.name)
}

func create(name string, size int) ([]byte, int, error) {
	// Unlink any stale segment first.
	_ = shmUnlink(name)

	fd, err := shmOpen(name, unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return nil, -1, fmt.Errorf("shm_open %s: %w", name, err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, -1, fmt.Errorf("ftruncate %s: %w", name, err)
	}

	buf, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, -1, fmt.Errorf("mmap %s: %w", name, err)
	}

	clear(buf)
	return buf, fd, nil
}

func open(name string, size int) ([]byte, int, error) {
	fd, err := shmOpen(name, unix.O_RDONLY, 0)
	if err != nil {
		return nil, -1, fmt.Errorf("shm_open %s: %w", name, err)
	}

	buf, err := unix.Mmap(fd, 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, -1, fmt.Errorf("mmap %s: %w", name, err)
	}
	return buf, fd, nil
}
