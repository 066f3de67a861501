// motiond watches an accelerometer for taps and shakes and publishes the
// motion status to POSIX shared memory for motiondash or other readers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/taigrr/deskmotion/config"
	"github.com/taigrr/deskmotion/monitor"
	"github.com/taigrr/deskmotion/shm"
	"github.com/taigrr/deskmotion/source"
)

var version = "dev"

type options struct {
	configPath string
	source     string
	ring       string
	i2cBus     string
	address    uint16
	serialPort string
	baud       int
	status     string
	verbose    bool
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:   "motiond",
		Short: "Tap and shake detection daemon",
		Long: `motiond samples an accelerometer at a fixed rate, detects taps and
shakes, and publishes the motion status to shared memory for motiondash
or other programs.

Samples come from one of:
  ring     the shared memory ring written by sensord
  mpu6050  an MPU6050 on a Linux i2c-dev bus
  serial   "x y z" lines in g from a microcontroller

Flags override values from --config.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &opts)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file")
	flags.StringVar(&opts.source, "source", config.SourceRing, "sample source: ring, mpu6050 or serial")
	flags.StringVar(&opts.ring, "ring", shm.NameAccel, "shared memory ring to read")
	flags.StringVar(&opts.i2cBus, "i2c-bus", "/dev/i2c-1", "i2c-dev device for the mpu6050 source")
	flags.Uint16Var(&opts.address, "address", 0x68, "MPU6050 I2C address")
	flags.StringVar(&opts.serialPort, "port", "/dev/ttyUSB0", "serial port for the serial source")
	flags.IntVar(&opts.baud, "baud", 115200, "serial baud rate")
	flags.StringVar(&opts.status, "status", shm.NameStatus, "shared memory name for the published status")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log detector transitions")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts *options) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	src, err := openSource(cfg.Source, log)
	if err != nil {
		return err
	}

	snap, err := shm.CreateSnapshot(cfg.Status, shm.StatusSize)
	if err != nil {
		source.Close(src)
		return fmt.Errorf("creating status shm: %w", err)
	}
	defer snap.Close()
	defer snap.Unlink()

	mon, err := monitor.New(src, cfg.DetectorConfig(),
		monitor.WithLogger(log),
		monitor.WithOfflineAfter(cfg.OfflineAfter),
		monitor.WithSnapshotHandler(func(s monitor.Snapshot) {
			snap.WriteStatus(shm.Status{
				Shake:      s.Shake,
				Tap:        s.Tap,
				Online:     s.Online,
				LastMotion: s.LastMotion,
				Samples:    s.Samples,
				Events:     s.Events,
			})
		}),
	)
	if err != nil {
		source.Close(src)
		return err
	}
	// Stops the loop before the snapshot is unmapped.
	defer mon.Close()

	if err := mon.Start(ctx); err != nil {
		return err
	}
	log.Info("motiond running", "source", cfg.Source.Kind, "status", cfg.Status, "period", cfg.DetectorConfig().SamplePeriod)

	<-ctx.Done()
	if snap, err := mon.Snapshot(); err == nil {
		log.Info("motiond stopping", "samples", snap.Samples, "dropped", snap.Dropped, "events", snap.Events)
	}
	return nil
}

// loadConfig reads --config if given and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *options) (config.File, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.File{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source.Kind = opts.source
	}
	if flags.Changed("ring") {
		cfg.Source.Ring = opts.ring
	}
	if flags.Changed("i2c-bus") {
		cfg.Source.I2CBus = opts.i2cBus
	}
	if flags.Changed("address") {
		cfg.Source.Address = opts.address
	}
	if flags.Changed("port") {
		cfg.Source.SerialPort = opts.serialPort
	}
	if flags.Changed("baud") {
		cfg.Source.Baud = opts.baud
	}
	if flags.Changed("status") {
		cfg.Status = opts.status
	}
	return cfg, cfg.Validate()
}

func openSource(s config.Source, log *slog.Logger) (source.Source, error) {
	switch s.Kind {
	case config.SourceRing:
		r, err := shm.OpenRing(s.Ring)
		if err != nil {
			return nil, fmt.Errorf("opening accel shm %s (is sensord running?): %w", s.Ring, err)
		}
		return source.NewRing(r, shm.AccelScale), nil
	case config.SourceSerial:
		l, err := source.OpenSerial(s.SerialPort, s.Baud)
		if err != nil {
			return nil, err
		}
		log.Info("reading serial samples", "port", s.SerialPort, "baud", s.Baud)
		return l, nil
	case config.SourceMPU6050:
		return openMPU6050(s, log)
	}
	return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalid, s.Kind)
}
