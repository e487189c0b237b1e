package player

import (
	"errors"
	"image"
	"io"
	"sync"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

const (
	videoIdx = 0
	audioIdx = 1
)

var (
	videoStream = media.StreamInfo{
		Index: videoIdx, Type: media.MediaVideo, Codec: "h264",
		TimeBase: media.Rational{Num: 1, Den: 90000}, FrameRate: media.Rational{Num: 25, Den: 1},
		Width: 4, Height: 2,
	}
	audioStream = media.StreamInfo{
		Index: audioIdx, Type: media.MediaAudio, Codec: "aac",
		TimeBase: media.Rational{Num: 1, Den: 90000}, SampleRate: 48000, Channels: 2,
	}
)

type seekCall struct {
	stream   int
	ts       int64
	backward bool
}

// fakeContainer serves a fixed packet list, then io.EOF or readErr.
type fakeContainer struct {
	mu      sync.Mutex
	streams []media.StreamInfo
	pkts    []*media.Packet
	pos     int
	reads   int
	readErr error
	seekErr error
	seeks   []seekCall
	closed  bool
}

func (c *fakeContainer) Streams() []media.StreamInfo { return c.streams }

func (c *fakeContainer) ReadPacket() (*media.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos < len(c.pkts) {
		p := c.pkts[c.pos]
		c.pos++
		c.reads++
		return &media.Packet{Data: append([]byte(nil), p.Data...), StreamIndex: p.StreamIndex, PTS: p.PTS, DTS: p.DTS}, nil
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	return nil, io.EOF
}

// Seek records the call and jumps to the end so no packets follow.
func (c *fakeContainer) Seek(stream int, ts int64, backward bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeks = append(c.seeks, seekCall{stream, ts, backward})
	if c.seekErr != nil {
		return c.seekErr
	}
	c.pos = len(c.pkts)
	return nil
}

func (c *fakeContainer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeContainer) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeContainer) seekCalls() []seekCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]seekCall(nil), c.seeks...)
}

func opener(c *fakeContainer) backend.Opener {
	return func(string) (backend.Container, error) { return c, nil }
}

// packets interleaves n video and n audio packets of the given sizes.
func packets(n, videoSize, audioSize int) []*media.Packet {
	var out []*media.Packet
	for k := 0; k < n; k++ {
		pts := int64(k) * 3600
		out = append(out,
			&media.Packet{Data: make([]byte, videoSize), StreamIndex: videoIdx, PTS: pts, DTS: pts},
			&media.Packet{Data: make([]byte, audioSize), StreamIndex: audioIdx, PTS: pts, DTS: pts},
		)
	}
	return out
}

type passDecoder struct{ typ media.MediaType }

func (d passDecoder) Decode(pkt *media.Packet) ([]*media.RawFrame, error) {
	f := media.NewRawFrame(d.typ, pkt.Data, func() {})
	f.PTS = pkt.PTS
	f.Width, f.Height = 4, 2
	return []*media.RawFrame{f}, nil
}
func (passDecoder) Flush() error { return nil }
func (passDecoder) Close() error { return nil }

type passConverter struct{}

func (passConverter) Convert(f *media.RawFrame) (*media.Picture, error) {
	return media.NewPicture(f.Width, f.Height), nil
}
func (passConverter) Close() error { return nil }

type passResampler struct{}

func (passResampler) Resample(f *media.RawFrame) ([]byte, error) {
	return append([]byte(nil), f.Native.([]byte)...), nil
}
func (passResampler) Close() error { return nil }

type fakeCodecs struct{ unsupported string }

func (c fakeCodecs) NewDecoder(s media.StreamInfo) (backend.Decoder, error) {
	if s.Codec == c.unsupported {
		return nil, errors.New("no decoder")
	}
	return passDecoder{typ: s.Type}, nil
}

func (fakeCodecs) NewPictureConverter(media.StreamInfo) (backend.PictureConverter, error) {
	return passConverter{}, nil
}

func (fakeCodecs) NewResampler(media.StreamInfo, media.AudioFormat) (backend.Resampler, error) {
	return passResampler{}, nil
}

type fakeSurface struct{ w, h int }

func (s fakeSurface) Size() (int, int) { return s.w, s.h }

type fakeScreen struct{}

func (fakeScreen) Post(fn func()) { go fn() }
func (fakeScreen) Allocate(w, h int) (backend.Surface, error) { return fakeSurface{w, h}, nil }
func (fakeScreen) Release(backend.Surface) {}
func (fakeScreen) Upload(backend.Surface, *media.Picture) error { return nil }
func (fakeScreen) Draw(backend.Surface, image.Rectangle) {}
func (fakeScreen) Clear() {}
func (fakeScreen) Present() {}
func (fakeScreen) Size() (int, int) { return 640, 480 }
