// Package dsp implements the speaker-only processing chain applied to the
// audio callback's output buffer just before hand-off to the device: a
// logarithmic volume curve, a 2nd-order Butterworth high-pass filter and a
// soft limiter. It is hand-written exact-formula DSP math with
// no corresponding library in the retrieval pack; grounded on
// original_source/workspace/all/musicplayer/player.c's BiquadState /
// speaker_hpf_process / apply_volume_curve / speaker_soft_limit.
package dsp

import "math"

// BassFilterHz enumerates the allowed high-pass cutoff settings,
// modeled as a named type rather than a bare integer so
// that coefficient recomputation only happens on an actual enum change.
type BassFilterHz int

// Allowed bass filter cutoffs, mirroring original_source settings.c's
// bass_filter_values[] = {0, 80, 100, 120, 150, 200}.
const (
	BassFilterOff BassFilterHz = 0
	BassFilter80  BassFilterHz = 80
	BassFilter100 BassFilterHz = 100
	BassFilter120 BassFilterHz = 120
	BassFilter150 BassFilterHz = 150
	BassFilter200 BassFilterHz = 200
)

// LimiterThreshold enumerates the allowed soft-limiter thresholds,
// mirroring the original firmware's
// soft_limiter_thresholds[] = {0.0, 0.7, 0.6, 0.5} indexed by soft_limiter
// setting {0,1,2,3}.
type LimiterThreshold int

const (
	LimiterOff    LimiterThreshold = iota // no limiting
	LimiterLoose                          // threshold 0.7
	LimiterMedium                         // threshold 0.6
	LimiterTight                          // threshold 0.5
)

// thresholdValue maps a LimiterThreshold enum to its float64 threshold T.
func (t LimiterThreshold) thresholdValue() (value float64, enabled bool) {
	switch t {
	case LimiterLoose:
		return 0.7, true
	case LimiterMedium:
		return 0.6, true
	case LimiterTight:
		return 0.5, true
	default:
		return 0, false
	}
}

// volumeUnityEpsilon: skip the volume multiply entirely when within this
// distance of unity gain, matching the original's micro-optimisation.
const volumeUnityEpsilon = 0.01

// ApplyVolumeCurve maps a linear 0..1 volume knob position to the
// perceptual x^0.4 curve and scales sample in place. Volumes within
// ±volumeUnityEpsilon of 1.0 are passed through unscaled.
func ApplyVolumeCurve(samples []int16, linearVolume float64) {
	if math.Abs(linearVolume-1.0) <= volumeUnityEpsilon {
		return
	}

	gain := math.Pow(linearVolume, 0.4)

	for i, s := range samples {
		v := float64(s) * gain
		samples[i] = clampInt16(v)
	}
}

// Biquad is a 2nd-order IIR filter in Direct Form II Transposed, used here
// as a high-pass filter. State persists between audio callbacks; SetCutoff
// with an unchanged cutoff is a no-op, and a changed cutoff recomputes the
// coefficients and resets the filter state.
type Biquad struct {
	sampleRate float64
	cutoff     BassFilterHz

	b0, b1, b2 float64
	a1, a2     float64

	// Per-channel state (left, right).
	z1 [2]float64
	z2 [2]float64
}

// NewBiquad constructs a high-pass Biquad for the given sample rate, with
// filtering disabled (BassFilterOff) until SetCutoff is called.
func NewBiquad(sampleRate int) *Biquad {
	b := &Biquad{sampleRate: float64(sampleRate)}
	b.SetCutoff(BassFilterOff)

	return b
}

// Enabled reports whether the filter is configured to do anything.
func (b *Biquad) Enabled() bool {
	return b.cutoff != BassFilterOff
}

// SetCutoff recomputes the Butterworth high-pass coefficients for the given
// cutoff, if it differs from the currently configured one. Filter state
// (z1/z2) is left untouched across a no-op call; it is only reset when the
// cutoff actually changes, matching the original's "recomputed only when
// cutoff changes" contract.
func (b *Biquad) SetCutoff(cutoff BassFilterHz) {
	if cutoff == b.cutoff && b.b0 != 0 {
		return
	}

	b.cutoff = cutoff

	if cutoff == BassFilterOff {
		b.b0, b.b1, b.b2, b.a1, b.a2 = 1, 0, 0, 0, 0
		b.z1, b.z2 = [2]float64{}, [2]float64{}

		return
	}

	omega := 2 * math.Pi * float64(cutoff) / b.sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	// Q = 1/sqrt(2) gives a maximally flat (Butterworth) response.
	alpha := sinOmega / math.Sqrt2

	a0 := 1 + alpha
	b0 := (1 + cosOmega) / 2 / a0
	b1 := -(1 + cosOmega) / a0
	b2 := (1 + cosOmega) / 2 / a0
	a1 := -2 * cosOmega / a0
	a2 := (1 - alpha) / a0

	b.b0, b.b1, b.b2, b.a1, b.a2 = b0, b1, b2, a1, a2
	b.z1, b.z2 = [2]float64{}, [2]float64{}
}

// ProcessStereo high-pass filters an interleaved stereo int16 buffer in
// place. A no-op when the filter is disabled.
func (b *Biquad) ProcessStereo(samples []int16) {
	if !b.Enabled() {
		return
	}

	frames := len(samples) / 2
	for i := range frames {
		for ch := range 2 {
			x := float64(samples[i*2+ch])

			y := b.b0*x + b.z1[ch]
			b.z1[ch] = b.b1*x - b.a1*y + b.z2[ch]
			b.z2[ch] = b.b2*x - b.a2*y

			samples[i*2+ch] = clampInt16(y)
		}
	}
}

// SoftLimit applies an asymptotic soft-knee limiter: pass-through below the
// threshold, compressed toward but never reaching full scale above it.
// Disabled entirely (no-op) when threshold is LimiterOff.
func SoftLimit(samples []int16, threshold LimiterThreshold) {
	t, enabled := threshold.thresholdValue()
	if !enabled {
		return
	}

	full := 32767.0

	for i, s := range samples {
		x := float64(s) / full
		ax := math.Abs(x)

		if ax <= t {
			continue
		}

		sign := 1.0
		if x < 0 {
			sign = -1.0
		}

		compressed := t + (1-t)*(ax-t)/((ax-t)+(1-t))
		samples[i] = clampInt16(sign * compressed * full)
	}
}

// clampInt16 rounds and saturates a float64 sample to the int16 range.
func clampInt16(v float64) int16 {
	switch {
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	default:
		return int16(math.Round(v))
	}
}
