package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	start := time.Unix(0, 0)
	f := NewFake(start)
	tk := f.NewTicker(50 * time.Millisecond)

	f.Advance(49 * time.Millisecond)
	require.Empty(t, tk.C())

	f.Advance(time.Millisecond)
	select {
	case at := <-tk.C():
		require.Equal(t, start.Add(50*time.Millisecond), at)
	default:
		t.Fatal("expected a tick")
	}
}

func TestFakeTickerDropsUnreadTicks(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(10 * time.Millisecond)

	f.Advance(100 * time.Millisecond)
	require.Len(t, tk.C(), 1)
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(10 * time.Millisecond)
	tk.Stop()
	f.Advance(time.Second)
	require.Empty(t, tk.C())
}

func TestFakeNowSubtracts(t *testing.T) {
	f := NewFake(time.Unix(100, 0))
	t0 := f.Now()
	f.Advance(1500 * time.Millisecond)
	require.Equal(t, 1500*time.Millisecond, f.Now().Sub(t0))
}
