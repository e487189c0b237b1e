package ffmpeg

import (
	"fmt"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// Codecs builds libavcodec decoders, libswscale converters and
// libswresample resamplers. It works with streams from this package's
// Container and with streams that only carry a codec name.
type Codecs struct{}

var _ backend.Codecs = Codecs{}

// NewDecoder opens a decoder for s.
func (Codecs) NewDecoder(s media.StreamInfo) (backend.Decoder, error) {
	d, err := newDecoder(s)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %w", backend.ErrUnsupportedCodec, err)
	}
	return d, nil
}

// NewPictureConverter returns an RGBA converter. The scale context is set
// up on the first frame, once the decoder reports the pixel format.
func (Codecs) NewPictureConverter(media.StreamInfo) (backend.PictureConverter, error) {
	return &converter{}, nil
}

// NewResampler returns a resampler producing out.
func (Codecs) NewResampler(_ media.StreamInfo, out media.AudioFormat) (backend.Resampler, error) {
	r, err := newResampler(out)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %w", backend.ErrUnsupportedCodec, err)
	}
	return r, nil
}
