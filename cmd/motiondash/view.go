package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/taigrr/deskmotion/detector"
	"github.com/taigrr/deskmotion/shm"
)

// ANSI escape codes.
const (
	rst     = "\033[0m"
	bold    = "\033[1m"
	dim     = "\033[2m"
	red     = "\033[31m"
	grn     = "\033[32m"
	yel     = "\033[33m"
	cyn     = "\033[36m"
	bred    = "\033[91m"
	bwht    = "\033[97m"
	hideCur = "\033[?25l"
	showCur = "\033[?25h"
	altOn   = "\033[?1049h"
	altOff  = "\033[?1049l"
	clear   = "\033[2J\033[H"

	width  = 60
	blocks = " ▁▂▃▄▅▆▇█"
)

const (
	traceStep  = 100 * time.Millisecond
	traceLen   = 300 // 30s
	staleAfter = 2 * time.Second
	logLen     = 5
)

// Trace levels.
const (
	levelTap   = 0.5
	levelShake = 1.0
)

type logEntry struct {
	at   time.Time
	kind string
}

// view tracks what the dashboard has observed of the published status.
type view struct {
	start time.Time

	st         shm.Status
	have       bool
	lastUpdate time.Time
	lastMotion time.Time

	trace     *detector.Ring[float64]
	lastTrace time.Time

	rate        float64
	rateAt      time.Time
	rateSamples uint64

	log *detector.Ring[logEntry]
}

func newView(now time.Time) *view {
	return &view{
		start:  now,
		trace:  detector.NewRing[float64](traceLen),
		rateAt: now,
		log:    detector.NewRing[logEntry](logLen),
	}
}

// observe records a newly published status. It returns "tap" or "shake"
// when the status carries a motion the view has not seen yet.
func (v *view) observe(st shm.Status, now time.Time) string {
	prev, had := v.st, v.have
	v.st, v.have = st, true
	v.lastUpdate = now

	if had && st.Samples < prev.Samples {
		// motiond restarted.
		v.rateSamples = 0
	}
	if st.LastMotion == 0 || (had && st.LastMotion == prev.LastMotion) {
		return ""
	}
	if !had {
		// Motion from before the dashboard started.
		return ""
	}

	kind := "shake"
	if st.Tap {
		kind = "tap"
	}
	v.lastMotion = now
	v.log.Push(logEntry{at: now, kind: kind})
	return kind
}

// tick advances the activity trace and the sample rate.
func (v *view) tick(now time.Time) {
	if span := traceLen * traceStep; !v.lastTrace.IsZero() && now.Sub(v.lastTrace) > span {
		v.lastTrace = now.Add(-span)
	}
	for v.lastTrace.IsZero() || now.Sub(v.lastTrace) >= traceStep {
		level := 0.0
		if v.have && !v.stale(now) {
			switch {
			case v.st.Shake:
				level = levelShake
			case v.st.Tap:
				level = levelTap
			}
		}
		v.trace.Push(level)
		if v.lastTrace.IsZero() {
			v.lastTrace = now
			break
		}
		v.lastTrace = v.lastTrace.Add(traceStep)
	}

	if dt := now.Sub(v.rateAt); dt >= time.Second {
		if v.have && v.st.Samples >= v.rateSamples && v.rateSamples > 0 {
			v.rate = float64(v.st.Samples-v.rateSamples) / dt.Seconds()
		} else {
			v.rate = 0
		}
		v.rateSamples = v.st.Samples
		v.rateAt = now
	}
}

func (v *view) stale(now time.Time) bool {
	return now.Sub(v.lastUpdate) > staleAfter
}

// label is the status label, or Offline when motiond stopped publishing.
func (v *view) label(now time.Time) string {
	if !v.have || v.stale(now) || !v.st.Online {
		return detector.LabelOffline
	}
	return detector.Status{Shake: v.st.Shake, Tap: v.st.Tap}.Label()
}

func (v *view) render(now time.Time) string {
	var b strings.Builder
	gw := width - 4

	line := func(content string) {
		vl := visLen(content)
		pad := max(0, width-vl)
		fmt.Fprintf(&b, "%s│%s%s%s│%s\n", dim, rst, content, strings.Repeat(" ", pad), rst)
	}
	sep := func(label string) {
		if label != "" {
			rest := width - visLen(label) - 1
			fmt.Fprintf(&b, "%s├─%s%s┤%s\n", dim, label, strings.Repeat("─", rest), rst)
		} else {
			fmt.Fprintf(&b, "%s├%s┤%s\n", dim, strings.Repeat("─", width), rst)
		}
	}

	// Header
	title := " DESK MOTION "
	topBar := strings.Repeat("─", width-len(title)-1)
	fmt.Fprintf(&b, "%s┌─%s%s%s%s%s┐%s\n", dim, rst, bwht, title, rst, dim+topBar, rst)

	elapsed := now.Sub(v.start).Seconds()
	line(fmt.Sprintf(" %s%7.1fs%s  %10d smp  %s%.0f%s Hz  Ev:%d",
		dim, elapsed, rst, v.st.Samples, bwht, v.rate, rst, v.st.Events))

	// Status
	sep(" Status ")
	label := v.label(now)
	line(fmt.Sprintf("  %s%s%-8s%s  %s  %s", labelColor(label), bold, label, rst,
		flag("shake", v.have && v.st.Shake), flag("tap", v.have && v.st.Tap)))
	switch {
	case !v.have:
		line(fmt.Sprintf("  %swaiting for motiond...%s", dim, rst))
	case v.stale(now):
		line(fmt.Sprintf("  %sno update for %s%s", dim, now.Sub(v.lastUpdate).Truncate(time.Second), rst))
	case !v.lastMotion.IsZero():
		line(fmt.Sprintf("  last motion %s%s ago%s  %s(t=%s)%s", bwht, age(now.Sub(v.lastMotion)), rst,
			dim, v.st.LastMotion.Truncate(time.Millisecond), rst))
	default:
		line(fmt.Sprintf("  %sno motion yet%s", dim, rst))
	}

	// Activity
	sep(" Activity 30s ")
	line(fmt.Sprintf("  %s%s%s", yel, sparkline(downsample(v.trace.Slice(), gw), gw, levelShake), rst))
	line(fmt.Sprintf("  %s█ shake  ▄ tap%s", dim, rst))

	// Events
	sep(" Events ")
	evts := v.log.Slice()
	for i := len(evts) - 1; i >= 0; i-- {
		ev := evts[i]
		col := cyn
		if ev.kind == "shake" {
			col = bred
		}
		line(fmt.Sprintf(" %s%s%s %s%-6s%s", dim, ev.at.Format("15:04:05.000"), rst, col, ev.kind, rst))
	}
	for range logLen - len(evts) {
		line("")
	}

	// Footer
	sep("")
	line(fmt.Sprintf(" %sctrl+c to quit%s", dim, rst))
	fmt.Fprintf(&b, "%s└%s┘%s\n", dim, strings.Repeat("─", width), rst)

	return b.String()
}

func labelColor(label string) string {
	switch label {
	case detector.LabelTap:
		return cyn
	case detector.LabelShake:
		return bred
	case detector.LabelReady:
		return grn
	default:
		return red
	}
}

func flag(name string, on bool) string {
	if on {
		return bwht + "[x] " + name + rst
	}
	return dim + "[ ] " + name + rst
}

func age(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}

func sparkline(data []float64, width int, ceil float64) string {
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	d := data
	if len(d) < width {
		pad := make([]float64, width-len(d))
		d = append(pad, d...)
	} else if len(d) > width {
		d = d[len(d)-width:]
	}
	if ceil <= 0 {
		for _, v := range d {
			if math.Abs(v) > ceil {
				ceil = math.Abs(v)
			}
		}
	}
	if ceil <= 0 {
		ceil = 1
	}
	blk := []rune(blocks)
	var b strings.Builder
	for _, v := range d {
		frac := math.Min(1, math.Abs(v)/ceil)
		idx := min(8, int(frac*8))
		b.WriteRune(blk[idx])
	}
	return b.String()
}

// downsample keeps the peak of each bucket so short taps stay visible.
func downsample(data []float64, width int) []float64 {
	n := len(data)
	if n <= width {
		return data
	}
	step := float64(n) / float64(width)
	out := make([]float64, width)
	for c := range width {
		si := int(float64(c) * step)
		ei := int(float64(c+1) * step)
		mx := data[si]
		for j := si + 1; j < ei && j < n; j++ {
			if data[j] > mx {
				mx = data[j]
			}
		}
		out[c] = mx
	}
	return out
}

func visLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\033' {
			inEsc = true
			continue
		}
		if inEsc {
			if r == 'm' {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
