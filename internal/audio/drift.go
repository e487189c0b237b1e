package audio

import (
	"math"

	"github.com/zsiec/duet/media"
)

const (
	// NoSyncThreshold is the clock difference beyond which no correction is
	// attempted and the running average is reset.
	NoSyncThreshold = 10.0
	// DiffAvgCount is the number of measurements before correcting.
	DiffAvgCount = 20
	// SampleCorrectionPercentMax bounds the size change of one chunk.
	SampleCorrectionPercentMax = 10
	// DeviceBufferSamples is the device callback size in sample frames.
	DeviceBufferSamples = 1024
)

// DriftCorrector stretches or shrinks audio chunks so the audio clock
// converges on the master clock. It keeps an exponentially weighted
// average of recent differences and only acts once the average is
// consistently off.
type DriftCorrector struct {
	coef       float64
	threshold  float64
	sampleRate int
	frameBytes int

	cum   float64
	count int
}

// NewDriftCorrector returns a corrector for chunks in format f.
func NewDriftCorrector(f media.AudioFormat) *DriftCorrector {
	d := &DriftCorrector{
		coef:       math.Exp(math.Log(0.01) / DiffAvgCount),
		sampleRate: f.SampleRate,
		frameBytes: f.FrameBytes(),
	}
	if f.SampleRate > 0 {
		d.threshold = 2.0 * DeviceBufferSamples / float64(f.SampleRate)
	}
	return d
}

// Reset clears the running average.
func (d *DriftCorrector) Reset() {
	d.cum = 0
	d.count = 0
}

// Average returns the current weighted average difference, valid once
// enough samples have been collected.
func (d *DriftCorrector) Average() (float64, bool) {
	if d.count < DiffAvgCount {
		return 0, false
	}
	return d.cum * (1 - d.coef), true
}

// Correct feeds diff (audio clock minus master clock, seconds) and returns
// the chunk resized to compensate. Growing repeats the last sample frame;
// shrinking truncates. The result never differs from len(samples) by more
// than SampleCorrectionPercentMax percent.
func (d *DriftCorrector) Correct(samples []byte, diff float64) []byte {
	if math.Abs(diff) >= NoSyncThreshold || math.IsNaN(diff) {
		d.Reset()
		return samples
	}

	d.cum = diff + d.coef*d.cum
	if d.count < DiffAvgCount {
		d.count++
		return samples
	}

	avg := d.cum * (1 - d.coef)
	if math.Abs(avg) < d.threshold {
		return samples
	}

	size := len(samples)
	n := d.frameBytes
	if n <= 0 || size < n {
		return samples
	}

	wanted := size + int(diff*float64(d.sampleRate))*n
	minSize := int(math.Ceil(float64(size) * (100 - SampleCorrectionPercentMax) / 100))
	maxSize := int(float64(size) * (100 + SampleCorrectionPercentMax) / 100)
	if wanted < minSize {
		wanted = minSize
	} else if wanted > maxSize {
		wanted = maxSize
	}
	// Round toward the original size so alignment never crosses the clamp.
	if wanted < size {
		wanted += (n - wanted%n) % n
	} else {
		wanted -= wanted % n
	}

	switch {
	case wanted < size:
		return samples[:wanted]
	case wanted > size:
		last := samples[size-n : size]
		out := make([]byte, size, wanted)
		copy(out, samples)
		for len(out) < wanted {
			out = append(out, last...)
		}
		return out
	}
	return samples
}

// halve shortens a chunk to half its length on a frame boundary.
func halve(samples []byte, frameBytes int) []byte {
	n := len(samples) / 2
	if frameBytes > 0 {
		n -= n % frameBytes
	}
	return samples[:n]
}
