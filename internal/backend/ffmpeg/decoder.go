package ffmpeg

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// decoder wraps one libavcodec decoding context. Flush rebuilds the
// context, which drops every buffered reference frame.
type decoder struct {
	codec  *astiav.Codec
	params *astiav.CodecParameters
	typ    media.MediaType
	cc     *astiav.CodecContext
	pkt    *astiav.Packet
}

func newDecoder(s media.StreamInfo) (*decoder, error) {
	d := &decoder{typ: s.Type}
	if cp, ok := s.Params.(*astiav.CodecParameters); ok && cp != nil {
		d.params = cp
		d.codec = astiav.FindDecoder(cp.CodecID())
	} else if s.Codec != "" {
		d.codec = astiav.FindDecoderByName(s.Codec)
	}
	if d.codec == nil {
		return nil, fmt.Errorf("no decoder for %q", s.Codec)
	}
	if err := d.openContext(); err != nil {
		return nil, err
	}
	d.pkt = astiav.AllocPacket()
	return d, nil
}

func (d *decoder) openContext() error {
	cc := astiav.AllocCodecContext(d.codec)
	if cc == nil {
		return fmt.Errorf("%w: codec context", backend.ErrAllocFailed)
	}
	if d.params != nil {
		if err := d.params.ToCodecContext(cc); err != nil {
			cc.Free()
			return fmt.Errorf("copying codec parameters: %w", err)
		}
	}
	if err := cc.Open(d.codec, nil); err != nil {
		cc.Free()
		return fmt.Errorf("opening codec %s: %w", d.codec.Name(), err)
	}
	d.cc = cc
	return nil
}

// Decode sends pkt to the codec and returns every frame it produced.
func (d *decoder) Decode(pkt *media.Packet) ([]*media.RawFrame, error) {
	if err := d.pkt.FromData(pkt.Data); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrPacketCopy, err)
	}
	defer d.pkt.Unref()
	d.pkt.SetPts(toAV(pkt.PTS))
	d.pkt.SetDts(toAV(pkt.DTS))
	if pkt.Keyframe {
		d.pkt.SetFlags(d.pkt.Flags().Add(astiav.PacketFlagKey))
	}

	if err := d.cc.SendPacket(d.pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, fmt.Errorf("%w: %w", backend.ErrDecode, err)
	}

	var frames []*media.RawFrame
	for {
		f := astiav.AllocFrame()
		if err := d.cc.ReceiveFrame(f); err != nil {
			f.Free()
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return frames, nil
			}
			return frames, fmt.Errorf("%w: %w", backend.ErrDecode, err)
		}
		frames = append(frames, d.wrap(f))
	}
}

func (d *decoder) wrap(f *astiav.Frame) *media.RawFrame {
	rf := media.NewRawFrame(d.typ, f, f.Free)
	rf.PTS = fromAV(f.Pts())
	switch d.typ {
	case media.MediaVideo:
		rf.Width, rf.Height = f.Width(), f.Height()
	case media.MediaAudio:
		rf.Samples = f.NbSamples()
	}
	return rf
}

// Flush discards the codec's buffered state.
func (d *decoder) Flush() error {
	old := d.cc
	if err := d.openContext(); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrDecode, err)
	}
	old.Free()
	return nil
}

// Close frees the codec context.
func (d *decoder) Close() error {
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	return nil
}
