// Package media defines the data that flows through a duet playback
// instance: compressed packets from the container, decoded frames from the
// codecs, and converted pictures waiting for the display.
package media

import "math"

// Soft byte budgets for the per-stream packet queues. The demuxer stops
// reading while either queue is above its cap.
const (
	MaxAudioQueueSize = 5 * 16 * 1024
	MaxVideoQueueSize = 5 * 256 * 1024
)

// NoPTS marks an absent timestamp on packets and frames.
const NoPTS int64 = math.MinInt64

// MediaType identifies the kind of elementary stream.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaVideo
	MediaAudio
)

func (t MediaType) String() string {
	switch t {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Rational is a time base or frame rate expressed as Num/Den.
type Rational struct {
	Num int
	Den int
}

// Float returns Num/Den, or 0 when the denominator is zero.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds converts a timestamp in this time base to seconds.
func (r Rational) Seconds(ts int64) float64 {
	return float64(ts) * r.Float()
}

// FromSeconds converts seconds to a timestamp in this time base.
func (r Rational) FromSeconds(s float64) int64 {
	if r.Num == 0 {
		return 0
	}
	return int64(s * float64(r.Den) / float64(r.Num))
}

// StreamInfo describes one elementary stream of an opened container.
// Params carries backend-specific codec parameters and is only interpreted
// by the backend that produced it.
type StreamInfo struct {
	Index      int
	Type       MediaType
	Codec      string
	TimeBase   Rational
	FrameRate  Rational
	Width      int
	Height     int
	SampleRate int
	Channels   int
	Params     any
}

// Packet is one compressed unit read from the container. A packet owns its
// payload; the queue and decoders never share it with the demuxer.
type Packet struct {
	Data        []byte
	StreamIndex int
	PTS         int64
	DTS         int64
	Keyframe    bool
}

// Size is the payload length counted against the queue byte budget. Flush
// markers carry no media and count as zero.
func (p *Packet) Size() int {
	if p.IsFlush() {
		return 0
	}
	return len(p.Data)
}

var flushData = []byte("FLUSH")

// FlushPacket returns a marker that tells a decoder to discard its internal
// state. Markers are recognized by payload identity, never by timestamp.
func FlushPacket() *Packet {
	return &Packet{Data: flushData, StreamIndex: -1, PTS: NoPTS, DTS: NoPTS}
}

// IsFlush reports whether p is a flush marker.
func (p *Packet) IsFlush() bool {
	return p != nil && len(p.Data) == len(flushData) && len(p.Data) > 0 && &p.Data[0] == &flushData[0]
}

// RawFrame is a decoded picture or block of audio samples. Exactly one stage
// owns a RawFrame at a time; the owner calls Free when done with it.
type RawFrame struct {
	Type       MediaType
	PTS        int64
	Width      int
	Height     int
	Samples    int
	RepeatPict int

	// Native is the backend frame handle.
	Native  any
	release func()
}

// NewRawFrame wraps a backend frame. release is called once by Free.
func NewRawFrame(t MediaType, native any, release func()) *RawFrame {
	return &RawFrame{Type: t, PTS: NoPTS, Native: native, release: release}
}

// Free releases the backend handle. Calling Free more than once is a no-op.
func (f *RawFrame) Free() {
	if f == nil || f.release == nil {
		return
	}
	f.release()
	f.release = nil
	f.Native = nil
}

// Picture is a frame converted to the display pixel format (RGBA, 4 bytes
// per pixel) and stamped with its presentation time in seconds.
type Picture struct {
	Pix    []byte
	Stride int
	Width  int
	Height int
	PTS    float64
}

// NewPicture allocates an RGBA picture of the given size.
func NewPicture(w, h int) *Picture {
	return &Picture{Pix: make([]byte, w*h*4), Stride: w * 4, Width: w, Height: h}
}

// AudioFormat is the fixed output format of the audio device: signed 16-bit
// little-endian interleaved samples.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// FrameBytes is the size of one sample frame (all channels).
func (f AudioFormat) FrameBytes() int {
	return 2 * f.Channels
}

// BytesPerSecond is the byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.FrameBytes()
}
