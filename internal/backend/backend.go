// Package backend declares the contracts between the playback core and the
// libraries that open containers, run codecs, convert pixels, resample
// audio, and drive the display. Implementations live in subpackages.
package backend

import (
	"image"

	"github.com/zsiec/duet/media"
)

// Container is an opened media file.
type Container interface {
	Streams() []media.StreamInfo
	// ReadPacket returns the next packet in file order, or io.EOF.
	ReadPacket() (*media.Packet, error)
	// Seek repositions to ts (in the stream's time base). With backward set
	// the container lands on the nearest keyframe at or before ts.
	Seek(stream int, ts int64, backward bool) error
	Close() error
}

// Opener opens a container by path.
type Opener func(path string) (Container, error)

// Decoder turns packets into raw frames. Ownership of the returned frames
// passes to the caller.
type Decoder interface {
	Decode(pkt *media.Packet) ([]*media.RawFrame, error)
	// Flush discards buffered codec state after a seek.
	Flush() error
	Close() error
}

// PictureConverter converts decoded pictures to RGBA.
type PictureConverter interface {
	Convert(f *media.RawFrame) (*media.Picture, error)
	Close() error
}

// Resampler converts decoded audio to the device format.
type Resampler interface {
	Resample(f *media.RawFrame) ([]byte, error)
	Close() error
}

// Codecs builds the per-stream processing objects for a container.
type Codecs interface {
	NewDecoder(s media.StreamInfo) (Decoder, error)
	NewPictureConverter(s media.StreamInfo) (PictureConverter, error)
	NewResampler(s media.StreamInfo, out media.AudioFormat) (Resampler, error)
}

// Surface is a display-side texture sized for one picture.
type Surface interface {
	Size() (w, h int)
}

// Screen is the display. All methods except Post must be called on the
// display goroutine; Post schedules fn to run there.
type Screen interface {
	Post(fn func())
	Allocate(w, h int) (Surface, error)
	Release(s Surface)
	Upload(s Surface, p *media.Picture) error
	Draw(s Surface, dst image.Rectangle)
	Clear()
	Present()
	Size() (w, h int)
}
