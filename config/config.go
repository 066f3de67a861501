// Package config loads motiond settings from YAML or TOML files.
//
// Unset keys keep their defaults, so a file only needs the values it
// changes. Durations are Go duration strings such as "180ms".
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/taigrr/deskmotion/detector"
	"github.com/taigrr/deskmotion/imu"
	"github.com/taigrr/deskmotion/monitor"
	"github.com/taigrr/deskmotion/shm"
)

// Source kinds.
const (
	SourceRing    = "ring"
	SourceMPU6050 = "mpu6050"
	SourceSerial  = "serial"
)

var (
	// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
	ErrUnknownFormat = errors.New("unknown config format")
	// ErrInvalid is returned for settings outside the detector config.
	ErrInvalid = errors.New("invalid config")
)

// Duration is a time.Duration written as a string in config files.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.New("duration must be a scalar")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// Detector mirrors detector.Config.
type Detector struct {
	ShakeThreshold   float64  `yaml:"shake_threshold" toml:"shake_threshold"`
	ShakeMinDuration Duration `yaml:"shake_min_duration" toml:"shake_min_duration"`
	ShakeTimeout     Duration `yaml:"shake_timeout" toml:"shake_timeout"`
	ShakeDisplay     Duration `yaml:"shake_display" toml:"shake_display"`
	TapThreshold     float64  `yaml:"tap_threshold" toml:"tap_threshold"`
	TapDebounce      Duration `yaml:"tap_debounce" toml:"tap_debounce"`
	TapDisplay       Duration `yaml:"tap_display" toml:"tap_display"`
	SamplePeriod     Duration `yaml:"sample_period" toml:"sample_period"`
}

// Source selects and configures the sample source.
type Source struct {
	Kind string `yaml:"kind" toml:"kind"`

	// Ring is the shared memory ring written by an external producer.
	Ring string `yaml:"ring" toml:"ring"`

	I2CBus  string `yaml:"i2c_bus" toml:"i2c_bus"`
	Address uint16 `yaml:"address" toml:"address"`
	RangeG  int    `yaml:"range_g" toml:"range_g"`

	SerialPort string `yaml:"serial_port" toml:"serial_port"`
	Baud       int    `yaml:"baud" toml:"baud"`
}

// File is the full motiond configuration.
type File struct {
	Detector     Detector `yaml:"detector" toml:"detector"`
	Source       Source   `yaml:"source" toml:"source"`
	OfflineAfter int      `yaml:"offline_after" toml:"offline_after"`
	// Status is the shared memory name the status snapshot is published to.
	Status string `yaml:"status" toml:"status"`
}

// Default returns the built-in configuration.
func Default() File {
	c := detector.DefaultConfig()
	return File{
		Detector: Detector{
			ShakeThreshold:   c.ShakeThreshold,
			ShakeMinDuration: Duration(c.ShakeMinDuration),
			ShakeTimeout:     Duration(c.ShakeTimeout),
			ShakeDisplay:     Duration(c.ShakeDisplay),
			TapThreshold:     c.TapThreshold,
			TapDebounce:      Duration(c.TapDebounce),
			TapDisplay:       Duration(c.TapDisplay),
			SamplePeriod:     Duration(c.SamplePeriod),
		},
		Source: Source{
			Kind:       SourceRing,
			Ring:       shm.NameAccel,
			I2CBus:     "/dev/i2c-1",
			Address:    imu.AddressLow,
			RangeG:     4,
			SerialPort: "/dev/ttyUSB0",
			Baud:       115200,
		},
		OfflineAfter: monitor.DefaultOfflineAfter,
		Status:       shm.NameStatus,
	}
}

// Load reads path on top of the defaults. The format follows the file
// extension.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "toml", with or
// without a leading dot) on top of the defaults and validates the result.
func Parse(data []byte, format string) (File, error) {
	f := Default()
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, err
		}
	case "toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return File{}, err
		}
	default:
		return File{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// DetectorConfig converts the detector section.
func (f File) DetectorConfig() detector.Config {
	d := f.Detector
	return detector.Config{
		ShakeThreshold:   d.ShakeThreshold,
		ShakeMinDuration: time.Duration(d.ShakeMinDuration),
		ShakeTimeout:     time.Duration(d.ShakeTimeout),
		ShakeDisplay:     time.Duration(d.ShakeDisplay),
		TapThreshold:     d.TapThreshold,
		TapDebounce:      time.Duration(d.TapDebounce),
		TapDisplay:       time.Duration(d.TapDisplay),
		SamplePeriod:     time.Duration(d.SamplePeriod),
	}
}

// Range returns the MPU6050 full-scale range for RangeG.
func (s Source) Range() (imu.Range, error) {
	switch s.RangeG {
	case 2:
		return imu.Range2G, nil
	case 4:
		return imu.Range4G, nil
	case 8:
		return imu.Range8G, nil
	case 16:
		return imu.Range16G, nil
	}
	return 0, fmt.Errorf("%w: range_g %d is not one of 2, 4, 8, 16", ErrInvalid, s.RangeG)
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.DetectorConfig().Validate(); err != nil {
		return err
	}
	if f.OfflineAfter < 1 {
		return fmt.Errorf("%w: offline_after must be at least 1", ErrInvalid)
	}
	if f.Status == "" {
		return fmt.Errorf("%w: status name is empty", ErrInvalid)
	}
	switch f.Source.Kind {
	case SourceRing:
		if f.Source.Ring == "" {
			return fmt.Errorf("%w: ring name is empty", ErrInvalid)
		}
	case SourceMPU6050:
		if f.Source.I2CBus == "" {
			return fmt.Errorf("%w: i2c_bus is empty", ErrInvalid)
		}
		if _, err := f.Source.Range(); err != nil {
			return err
		}
	case SourceSerial:
		if f.Source.SerialPort == "" || f.Source.Baud <= 0 {
			return fmt.Errorf("%w: serial source needs a port and a positive baud rate", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalid, f.Source.Kind)
	}
	return nil
}
