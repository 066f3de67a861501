// Package imu reads the MPU6050 accelerometer over I2C.
package imu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/taigrr/deskmotion/detector"
)

// MPU6050 I2C addresses. AD0 high selects the alternate address, which
// keeps the sensor clear of a DS3231 RTC sharing the bus.
const (
	AddressLow  = 0x68
	AddressHigh = 0x69
)

// Registers used by the driver.
const (
	regSampleRateDiv = 0x19
	regConfig        = 0x1A
	regAccelConfig   = 0x1C
	regAccelXOutH    = 0x3B
	regPowerMgmt1    = 0x6B
	regWhoAmI        = 0x75

	whoAmIValue = 0x68
)

// Range is the accelerometer full-scale range.
type Range uint8

const (
	Range2G Range = iota
	Range4G
	Range8G
	Range16G
)

// lsbPerG returns the sensitivity for r.
func (r Range) lsbPerG() float64 {
	return 16384.0 / float64(int(1)<<r)
}

// ErrNotFound is returned when the device does not identify as an MPU6050.
var ErrNotFound = errors.New("mpu6050 not found")

// MPU6050 is an accelerometer on an I2C bus.
type MPU6050 struct {
	bus     drivers.I2C
	address uint16
	rng     Range
	buf     [6]byte
}

// NewMPU6050 returns a device handle without touching the bus.
func NewMPU6050(bus drivers.I2C, address uint16) *MPU6050 {
	return &MPU6050{bus: bus, address: address, rng: Range4G}
}

// Configure checks the device identity, wakes it and sets the accelerometer
// range. The digital low-pass filter is set to about 44 Hz, comfortably
// above a 20 Hz polling rate.
func (m *MPU6050) Configure(rng Range) error {
	var id [1]byte
	if err := m.bus.Tx(m.address, []byte{regWhoAmI}, id[:]); err != nil {
		return fmt.Errorf("reading WHO_AM_I: %w", err)
	}
	// Some clones report other IDs in the upper bits.
	if id[0]&0x7E != whoAmIValue {
		return fmt.Errorf("%w: WHO_AM_I=%#02x at %#02x", ErrNotFound, id[0], m.address)
	}

	writes := [][2]byte{
		{regPowerMgmt1, 0x01}, // wake, PLL with X gyro reference
		{regConfig, 0x03},
		{regSampleRateDiv, 0x09},
		{regAccelConfig, byte(rng) << 3},
	}
	for _, w := range writes {
		if err := m.bus.Tx(m.address, w[:], nil); err != nil {
			return fmt.Errorf("writing register %#02x: %w", w[0], err)
		}
	}
	m.rng = rng
	return nil
}

// Acceleration reads the three axes in g.
func (m *MPU6050) Acceleration() (x, y, z float64, err error) {
	if err := m.bus.Tx(m.address, []byte{regAccelXOutH}, m.buf[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("reading acceleration: %w", err)
	}
	scale := m.rng.lsbPerG()
	x = float64(int16(binary.BigEndian.Uint16(m.buf[0:2]))) / scale
	y = float64(int16(binary.BigEndian.Uint16(m.buf[2:4]))) / scale
	z = float64(int16(binary.BigEndian.Uint16(m.buf[4:6]))) / scale
	return x, y, z, nil
}

// ReadSample implements source.Source.
func (m *MPU6050) ReadSample(ctx context.Context) (detector.Sample, error) {
	if err := ctx.Err(); err != nil {
		return detector.Sample{}, err
	}
	x, y, z, err := m.Acceleration()
	if err != nil {
		return detector.Sample{}, err
	}
	return detector.Sample{X: x, Y: y, Z: z}, nil
}

// Sleep puts the device into low-power sleep.
func (m *MPU6050) Sleep() error {
	return m.bus.Tx(m.address, []byte{regPowerMgmt1, 0x40}, nil)
}
