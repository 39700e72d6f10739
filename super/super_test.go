package super

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutOrdering(t *testing.T) {
	sb := MkSuperblock(4096, 200)
	require.Less(t, SuperBlock, sb.LogStart)
	require.Less(t, sb.LogStart, sb.InodeStart)
	require.Less(t, sb.InodeStart, sb.BmapStart)
	require.Less(t, sb.BmapStart, sb.IbmapStart)
	require.Less(t, sb.IbmapStart, sb.DataStart)
	require.Less(t, sb.DataStart, sb.Size)
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	sb := MkSuperblock(8192, 500)
	got := Decode(sb.Encode())
	require.Equal(t, sb, got)
}

func TestBadMagicPanics(t *testing.T) {
	sb := MkSuperblock(4096, 200)
	b := sb.Encode()
	b[0] = 0
	require.Panics(t, func() { Decode(b) })
}
