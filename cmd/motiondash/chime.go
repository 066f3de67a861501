package main

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
)

const (
	chimeRate     = beep.SampleRate(44100)
	chimeCooldown = 150 * time.Millisecond
)

type tone struct {
	freq float64
	dur  time.Duration
}

var tones = map[string]tone{
	"tap":   {freq: 1320, dur: 60 * time.Millisecond},
	"shake": {freq: 440, dur: 250 * time.Millisecond},
}

// chime plays a short sine tone per motion kind.
type chime struct {
	mu       sync.Mutex
	lastPlay time.Time
}

func newChime() (*chime, error) {
	if err := speaker.Init(chimeRate, chimeRate.N(time.Second/20)); err != nil {
		return nil, err
	}
	return &chime{}, nil
}

func (c *chime) play(kind string) {
	t, ok := tones[kind]
	if !ok {
		return
	}

	c.mu.Lock()
	now := time.Now()
	if now.Sub(c.lastPlay) < chimeCooldown {
		c.mu.Unlock()
		return
	}
	c.lastPlay = now
	c.mu.Unlock()

	sine, err := generators.SineTone(chimeRate, t.freq)
	if err != nil {
		return
	}
	quiet := &effects.Volume{Streamer: beep.Take(chimeRate.N(t.dur), sine), Base: 2, Volume: -2}
	speaker.Play(quiet)
}

func (c *chime) Close() {
	speaker.Close()
}
