package shm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusCodec(t *testing.T) {
	in := Status{
		Tap:        true,
		Online:     true,
		LastMotion: 1250 * time.Millisecond,
		Samples:    42,
		Events:     3,
	}
	buf := EncodeStatus(in)
	require.Len(t, buf, StatusLen)

	out, err := DecodeStatus(buf)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeStatusShort(t *testing.T) {
	_, err := DecodeStatus(make([]byte, StatusLen-1))
	require.ErrorIs(t, err, ErrShortPayload)
}
