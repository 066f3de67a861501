// motiondash is a terminal dashboard that reads the motion status published
// by motiond and shows the current label, recent activity and counters.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/deskmotion/shm"
)

var version = "dev"

func main() {
	var (
		status string
		chime  bool
	)
	cmd := &cobra.Command{
		Use:   "motiondash",
		Short: "Live tap and shake dashboard",
		Long: `motiondash reads the motion status from shared memory (created by
motiond) and displays a live terminal dashboard with the current label,
tap and shake flags, an activity trace and sample counters.

Use --chime to play a short tone on every tap and shake.

Run motiond first in another terminal.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), status, chime)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&status, "status", shm.NameStatus, "shared memory name of the status snapshot")
	cmd.Flags().BoolVar(&chime, "chime", false, "play a tone on taps and shakes")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, withChime bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	snap, err := shm.OpenSnapshot(name, shm.StatusSize)
	if err != nil {
		return fmt.Errorf("opening status shm (is motiond running?): %w", err)
	}
	defer snap.Close()

	var ch *chime
	if withChime {
		if ch, err = newChime(); err != nil {
			return fmt.Errorf("initializing audio: %w", err)
		}
		defer ch.Close()
	}

	v := newView(time.Now())
	var lastSeq uint32
	lastDraw := time.Time{}

	fmt.Print(altOn + hideCur)
	defer fmt.Print(showCur + altOff + "\n")

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		now := time.Now()
		st, seq, changed := snap.ReadStatus(lastSeq)
		lastSeq = seq
		if changed {
			if kind := v.observe(st, now); kind != "" && ch != nil {
				ch.play(kind)
			}
		}
		v.tick(now)

		// Draw at ~10 FPS
		if now.Sub(lastDraw) >= 100*time.Millisecond {
			fmt.Print(clear + v.render(now))
			lastDraw = now
		}
	}
}
