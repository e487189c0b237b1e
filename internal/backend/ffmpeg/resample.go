package ffmpeg

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// resampler converts decoded audio to interleaved signed 16-bit samples at
// the device rate and channel count.
type resampler struct {
	swr    *astiav.SoftwareResampleContext
	layout astiav.ChannelLayout
	rate   int
}

func layoutFor(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	}
	return astiav.ChannelLayout{}, fmt.Errorf("%d output channels not supported", channels)
}

func newResampler(out media.AudioFormat) (*resampler, error) {
	layout, err := layoutFor(out.Channels)
	if err != nil {
		return nil, err
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, fmt.Errorf("%w: resample context", backend.ErrAllocFailed)
	}
	return &resampler{swr: swr, layout: layout, rate: out.SampleRate}, nil
}

// Resample returns the converted samples of f. libswresample sizes the
// output frame and configures itself from the first input.
func (r *resampler) Resample(f *media.RawFrame) ([]byte, error) {
	src, ok := f.Native.(*astiav.Frame)
	if !ok || src == nil {
		return nil, fmt.Errorf("%w: not a decoded frame", backend.ErrConversion)
	}

	dst := astiav.AllocFrame()
	defer dst.Free()
	dst.SetSampleFormat(astiav.SampleFormatS16)
	dst.SetChannelLayout(r.layout)
	dst.SetSampleRate(r.rate)

	if err := r.swr.ConvertFrame(src, dst); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	if dst.NbSamples() == 0 {
		return nil, nil
	}
	b, err := dst.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrConversion, err)
	}
	return b, nil
}

// Close frees the resample context.
func (r *resampler) Close() error {
	if r.swr != nil {
		r.swr.Free()
		r.swr = nil
	}
	return nil
}
