package resample_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nextui/musicplayer/internal/resample"
)

func sineWave(frames, rate int, freqHz float64) []int16 {
	out := make([]int16, frames*2)
	for i := range frames {
		v := int16(math.Sin(2*math.Pi*freqHz*float64(i)/float64(rate)) * 16000)
		out[i*2] = v
		out[i*2+1] = v
	}

	return out
}

func TestResamplerIdentityWhenRatesMatch(t *testing.T) {
	r := resample.New(48000, 48000)
	in := sineWave(100, 48000, 440)

	out := r.Process(in, true, nil)
	require.Equal(t, in, out)
}

func TestResamplerProducesOutput(t *testing.T) {
	r := resample.New(44100, 48000)
	in := sineWave(4096, 44100, 440)

	out := r.Process(in, true, nil)
	require.NotEmpty(t, out)

	// Upsampling should yield roughly dstRate/srcRate as many frames.
	expected := float64(len(in)) / 2 * 48000 / 44100
	got := float64(len(out)) / 2
	require.InDelta(t, expected, got, expected*0.1)
}

// TestResamplerContinuity checks that splitting an input into two chunks
// and resampling them in sequence (is_last=false then true) produces,
// within quantisation noise, the same length as resampling the whole
// input at once with is_last=true.
func TestResamplerContinuity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		srcRate := rapid.SampledFrom([]int{44100, 22050, 48000}).Draw(rt, "srcRate")
		dstRate := rapid.SampledFrom([]int{48000, 44100}).Draw(rt, "dstRate")

		totalFrames := rapid.IntRange(512, 4096).Draw(rt, "totalFrames")
		splitAt := rapid.IntRange(1, totalFrames-1).Draw(rt, "splitAt")

		full := sineWave(totalFrames, srcRate, 220)

		whole := resample.New(srcRate, dstRate)
		wholeOut := whole.Process(full, true, nil)

		split := resample.New(srcRate, dstRate)
		part1 := split.Process(full[:splitAt*2], false, nil)
		part2 := split.Process(full[splitAt*2:], true, part1)

		// Allow a bounded length discrepancy from the kernel's edge handling;
		// the two paths must agree closely, not bit-for-bit, since the split
		// path loses a little context at the join relative to the monolithic
		// call.
		diff := len(wholeOut) - len(part2)
		if diff < 0 {
			diff = -diff
		}

		require.LessOrEqual(rt, diff, 64)
	})
}
