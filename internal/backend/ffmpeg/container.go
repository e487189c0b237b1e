package ffmpeg

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// Container is a file opened by libavformat.
type Container struct {
	c       *astikit.Closer
	fc      *astiav.FormatContext
	pkt     *astiav.Packet
	streams []media.StreamInfo
}

var _ backend.Container = (*Container)(nil)

// Open opens path with libavformat and reads its stream information. It
// satisfies backend.Opener.
func Open(path string) (backend.Container, error) {
	c := &Container{c: astikit.NewCloser()}
	if err := c.open(path); err != nil {
		c.c.Close()
		return nil, fmt.Errorf("ffmpeg: %w: %w", backend.ErrOpenFailed, err)
	}
	return c, nil
}

func (c *Container) open(path string) error {
	if c.fc = astiav.AllocFormatContext(); c.fc == nil {
		return errors.New("allocating format context failed")
	}
	c.c.Add(c.fc.Free)

	if err := c.fc.OpenInput(path, nil, nil); err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	c.c.Add(c.fc.CloseInput)

	if err := c.fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("finding stream info: %w", err)
	}

	c.pkt = astiav.AllocPacket()
	c.c.Add(c.pkt.Free)

	for _, s := range c.fc.Streams() {
		c.streams = append(c.streams, streamInfo(s))
	}
	return nil
}

func streamInfo(s *astiav.Stream) media.StreamInfo {
	cp := s.CodecParameters()
	info := media.StreamInfo{
		Index:    s.Index(),
		Codec:    cp.CodecID().Name(),
		TimeBase: rational(s.TimeBase()),
		Params:   cp,
	}
	switch cp.MediaType() {
	case astiav.MediaTypeVideo:
		info.Type = media.MediaVideo
		info.Width, info.Height = cp.Width(), cp.Height()
		info.FrameRate = rational(s.AvgFrameRate())
		if info.FrameRate.Num == 0 {
			info.FrameRate = rational(s.RFrameRate())
		}
	case astiav.MediaTypeAudio:
		info.Type = media.MediaAudio
		info.SampleRate = cp.SampleRate()
		info.Channels = cp.ChannelLayout().Channels()
	}
	return info
}

// Streams returns every stream of the file in container order.
func (c *Container) Streams() []media.StreamInfo { return c.streams }

// ReadPacket reads the next packet and copies its payload out of FFmpeg's
// buffer.
func (c *Container) ReadPacket() (*media.Packet, error) {
	if err := c.fc.ReadFrame(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("ffmpeg: reading frame: %w", err)
	}
	defer c.pkt.Unref()

	data := c.pkt.Data()
	if data == nil {
		return nil, fmt.Errorf("ffmpeg: %w: empty payload", backend.ErrPacketCopy)
	}
	return &media.Packet{
		Data:        append([]byte(nil), data...),
		StreamIndex: c.pkt.StreamIndex(),
		PTS:         fromAV(c.pkt.Pts()),
		DTS:         fromAV(c.pkt.Dts()),
		Keyframe:    c.pkt.Flags().Has(astiav.PacketFlagKey),
	}, nil
}

// Seek repositions the file on stream near ts.
func (c *Container) Seek(stream int, ts int64, backward bool) error {
	var flags astiav.SeekFlags
	if backward {
		flags = astiav.NewSeekFlags(astiav.SeekFlagBackward)
	}
	if err := c.fc.SeekFrame(stream, ts, flags); err != nil {
		return fmt.Errorf("ffmpeg: %w: %w", backend.ErrSeekFailed, err)
	}
	return nil
}

// Close releases the format context.
func (c *Container) Close() error {
	return c.c.Close()
}
