//go:build linux

package imu

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

// Bus is a Linux i2c-dev adapter such as /dev/i2c-1. It satisfies
// drivers.I2C.
type Bus struct {
	mu   sync.Mutex
	fd   int
	path string
	addr uint16
	set  bool
}

var _ drivers.I2C = (*Bus)(nil)

// OpenBus opens an i2c-dev character device.
func OpenBus(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Bus{fd: fd, path: path}, nil
}

// Tx writes w then reads len(r) bytes from the device at addr. The two
// halves are separate transfers, which register-addressed sensors accept.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(b.fd, i2cSlave, int(addr)); err != nil {
			return fmt.Errorf("%s: selecting %#02x: %w", b.path, addr, err)
		}
		b.addr, b.set = addr, true
	}
	if len(w) > 0 {
		if _, err := unix.Write(b.fd, w); err != nil {
			return fmt.Errorf("%s: write to %#02x: %w", b.path, addr, err)
		}
	}
	if len(r) > 0 {
		n, err := unix.Read(b.fd, r)
		if err != nil {
			return fmt.Errorf("%s: read from %#02x: %w", b.path, addr, err)
		}
		if n != len(r) {
			return fmt.Errorf("%s: short read from %#02x: %d of %d bytes", b.path, addr, n, len(r))
		}
	}
	return nil
}

// ReadRegister reads buf from register reg.
func (b *Bus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

// WriteRegister writes buf to register reg.
func (b *Bus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

// Close closes the device file.
func (b *Bus) Close() error {
	return unix.Close(b.fd)
}
