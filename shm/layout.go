// Package shm provides POSIX shared memory ring buffers and snapshot regions
// shared between the motion daemon, sensor producers and status consumers.
//
// The accelerometer ring keeps the layout used by sensord, so its rings can
// be read directly.
package shm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Ring buffer and snapshot constants.
const (
	RingCap    = 8000
	RingEntry  = 12 // 3x int32: x, y, z
	SHMHeader  = 16 // [0..3] write_idx u32, [4..11] total u64, [12..15] restarts u32
	SHMSize    = SHMHeader + RingCap*RingEntry
	SnapHeader = 8 // [0..3] sequence u32, [4..7] pad

	AccelScale = 65536.0 // Q16 raw -> g

	NameAccel  = "vib_detect_shm"
	NameStatus = "deskmotion_status"

	// StatusLen is the encoded size of a Status payload.
	StatusLen  = 32
	StatusSize = SnapHeader + StatusLen
)

// Status flag bits.
const (
	flagShake = 1 << iota
	flagTap
	flagOnline
)

// ErrShortPayload is returned when a payload is smaller than its layout.
var ErrShortPayload = errors.New("shm: short payload")

// Sample holds a 3-axis reading scaled to real units (g).
type Sample struct {
	X, Y, Z float64
}

// Status is the motion status published for other processes.
type Status struct {
	Shake      bool
	Tap        bool
	Online     bool
	LastMotion time.Duration
	Samples    uint64
	Events     uint64
}

// EncodeStatus packs s into its little-endian wire layout:
//
//	[0..3] flags u32, [4..7] pad, [8..15] last motion ns i64,
//	[16..23] samples u64, [24..31] events u64
func EncodeStatus(s Status) []byte {
	buf := make([]byte, StatusLen)
	var flags uint32
	if s.Shake {
		flags |= flagShake
	}
	if s.Tap {
		flags |= flagTap
	}
	if s.Online {
		flags |= flagOnline
	}
	binary.LittleEndian.PutUint32(buf[0:4], flags)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(s.LastMotion))
	binary.LittleEndian.PutUint64(buf[16:24], s.Samples)
	binary.LittleEndian.PutUint64(buf[24:32], s.Events)
	return buf
}

// DecodeStatus unpacks a payload written by EncodeStatus.
func DecodeStatus(buf []byte) (Status, error) {
	if len(buf) < StatusLen {
		return Status{}, fmt.Errorf("%w: status needs %d bytes, got %d", ErrShortPayload, StatusLen, len(buf))
	}
	flags := binary.LittleEndian.Uint32(buf[0:4])
	return Status{
		Shake:      flags&flagShake != 0,
		Tap:        flags&flagTap != 0,
		Online:     flags&flagOnline != 0,
		LastMotion: time.Duration(binary.LittleEndian.Uint64(buf[8:16])),
		Samples:    binary.LittleEndian.Uint64(buf[16:24]),
		Events:     binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}
