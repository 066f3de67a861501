//go:build !linux

package main

import (
	"errors"
	"log/slog"

	"github.com/taigrr/deskmotion/config"
	"github.com/taigrr/deskmotion/source"
)

func openMPU6050(config.Source, *slog.Logger) (source.Source, error) {
	return nil, errors.New("the mpu6050 source needs Linux i2c-dev")
}
