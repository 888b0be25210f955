package dsp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextui/musicplayer/internal/dsp"
)

func TestApplyVolumeCurveSkipsNearUnity(t *testing.T) {
	samples := []int16{1000, -1000}
	dsp.ApplyVolumeCurve(samples, 0.995)
	require.Equal(t, []int16{1000, -1000}, samples)
}

func TestApplyVolumeCurveScalesDown(t *testing.T) {
	samples := []int16{10000, -10000}
	dsp.ApplyVolumeCurve(samples, 0.5)
	require.Less(t, samples[0], int16(10000))
	require.Greater(t, samples[1], int16(-10000))
}

func TestBiquadOffIsNoop(t *testing.T) {
	b := dsp.NewBiquad(48000)
	samples := []int16{1234, -1234, 5678, -5678}
	want := append([]int16(nil), samples...)

	b.ProcessStereo(samples)
	require.Equal(t, want, samples)
}

func TestBiquadAttenuatesDC(t *testing.T) {
	b := dsp.NewBiquad(48000)
	b.SetCutoff(dsp.BassFilter150)

	samples := make([]int16, 2000)
	for i := range samples {
		samples[i] = 10000 // constant DC-like signal on both channels
	}

	b.ProcessStereo(samples)

	// A high-pass filter driven with a constant input should settle toward
	// zero well before the buffer ends.
	tail := samples[len(samples)-20:]
	for _, s := range tail {
		require.Less(t, abs16(s), int16(500))
	}
}

func TestSoftLimitOffIsNoop(t *testing.T) {
	samples := []int16{32000, -32000}
	want := append([]int16(nil), samples...)
	dsp.SoftLimit(samples, dsp.LimiterOff)
	require.Equal(t, want, samples)
}

func TestSoftLimitNeverExceedsFullScale(t *testing.T) {
	samples := []int16{32767, -32768, 0, 20000}
	dsp.SoftLimit(samples, dsp.LimiterTight)

	for _, s := range samples {
		require.LessOrEqual(t, s, int16(32767))
		require.GreaterOrEqual(t, s, int16(-32768))
	}
}

func TestSoftLimitPassesThroughBelowThreshold(t *testing.T) {
	samples := []int16{100, -100}
	want := append([]int16(nil), samples...)
	dsp.SoftLimit(samples, dsp.LimiterTight)
	require.Equal(t, want, samples)
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}

	return v
}
