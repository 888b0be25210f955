package ring_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nextui/musicplayer/internal/ring"
)

func TestBufferBasicWriteRead(t *testing.T) {
	b := ring.New(4)

	frame := func(l, r int16) []int16 { return []int16{l, r} }

	require.Equal(t, 1, b.TryWrite(frame(1, -1)))
	require.Equal(t, 1, b.Count())

	out := make([]int16, 2)
	require.Equal(t, 1, b.TryRead(out))
	require.Equal(t, int16(1), out[0])
	require.Equal(t, int16(-1), out[1])
	require.Equal(t, 0, b.Count())
}

func TestBufferTryWriteBoundedByFreeSpace(t *testing.T) {
	b := ring.New(2)

	in := make([]int16, 8) // 4 frames into a 2-frame buffer
	require.Equal(t, 2, b.TryWrite(in))
	require.Equal(t, 0, b.Free())
}

func TestBufferTryReadNeverBlocksOnShortSupply(t *testing.T) {
	b := ring.New(8)

	out := make([]int16, 20)
	require.Equal(t, 0, b.TryRead(out))
}

func TestBufferClearResetsCursorsAndCount(t *testing.T) {
	b := ring.New(4)
	b.TryWrite(make([]int16, 4))
	b.Clear()

	require.Equal(t, 0, b.Count())
	require.Equal(t, 4, b.Free())
}

// TestBufferInvariants checks that after any sequence of write(n)/read(m)
// operations, 0 <= count <= capacity, and no frame is read twice or
// skipped (verified by tagging each written frame with a monotonically
// increasing sequence number in its left channel).
func TestBufferInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 64).Draw(rt, "capacity")
		b := ring.New(capacity)

		var nextWriteSeq, nextWantSeq int32

		ops := rapid.IntRange(1, 200).Draw(rt, "ops")
		for range ops {
			if rapid.Bool().Draw(rt, "isWrite") {
				n := rapid.IntRange(0, capacity+2).Draw(rt, "writeFrames")
				in := make([]int16, n*2)

				for i := range n {
					in[i*2] = int16(nextWriteSeq)
					nextWriteSeq++
				}

				written := b.TryWrite(in)
				if written < n {
					// frames that didn't fit must not have been "produced"
					nextWriteSeq -= int32(n - written)
				}
			} else {
				n := rapid.IntRange(0, capacity+2).Draw(rt, "readFrames")
				out := make([]int16, n*2)
				got := b.TryRead(out)

				for i := range got {
					require.Equal(rt, nextWantSeq, int32(out[i*2]), "frame read out of order or skipped")
					nextWantSeq++
				}
			}

			count := b.Count()
			require.GreaterOrEqual(rt, count, 0)
			require.LessOrEqual(rt, count, capacity)
		}
	})
}
