package main

import (
	"fmt"
	"log/slog"

	"github.com/taigrr/deskmotion/config"
	"github.com/taigrr/deskmotion/imu"
	"github.com/taigrr/deskmotion/source"
)

// mpuSource puts the sensor to sleep and releases the bus on Close.
type mpuSource struct {
	*imu.MPU6050
	bus *imu.Bus
}

func (s mpuSource) Close() error {
	s.Sleep()
	return s.bus.Close()
}

func openMPU6050(s config.Source, log *slog.Logger) (source.Source, error) {
	rng, err := s.Range()
	if err != nil {
		return nil, err
	}
	bus, err := imu.OpenBus(s.I2CBus)
	if err != nil {
		return nil, err
	}
	dev := imu.NewMPU6050(bus, s.Address)
	if err := dev.Configure(rng); err != nil {
		bus.Close()
		return nil, fmt.Errorf("configuring mpu6050 at %#02x on %s: %w", s.Address, s.I2CBus, err)
	}
	log.Info("mpu6050 ready", "bus", s.I2CBus, "address", fmt.Sprintf("%#02x", s.Address), "range_g", s.RangeG)
	return mpuSource{MPU6050: dev, bus: bus}, nil
}
