// Package tsfile opens MPEG transport stream files without cgo. It pairs
// with any codec backend that can decode a stream from its codec name
// alone, since transport streams carry their codec configuration in band.
package tsfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/mpegts"
	"github.com/zsiec/duet/media"
)

const (
	// probeUnits bounds how far Open reads looking for each stream's first
	// access unit.
	probeUnits = 4096
	// seekWindow is how far one bisection probe reads before giving up on
	// finding a timestamp.
	seekWindow = 2 << 20
	readBuffer = 256 << 10
)

var timeBase = media.Rational{Num: 1, Den: mpegts.ClockRate}

// Container is an opened transport stream file.
type Container struct {
	f       *os.File
	size    int64
	dmx     *mpegts.Demuxer
	streams []media.StreamInfo
	byPID   map[uint16]int
	pids    []uint16
	pending []*mpegts.Unit
}

var _ backend.Container = (*Container)(nil)

// Open opens path and probes its streams. It satisfies backend.Opener.
func Open(path string) (backend.Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tsfile: %w: %w", backend.ErrOpenFailed, err)
	}
	c, err := newContainer(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func newContainer(f *os.File) (*Container, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("tsfile: %w: %w", backend.ErrOpenFailed, err)
	}
	pktSize, err := detectPacketSize(f)
	if err != nil {
		return nil, err
	}
	c := &Container{
		f:     f,
		size:  st.Size() / int64(pktSize) * int64(pktSize),
		dmx:   mpegts.NewDemuxer(nil, mpegts.DemuxerOptPacketSize(pktSize)),
		byPID: make(map[uint16]int),
	}
	if err := c.reposition(0); err != nil {
		return nil, err
	}
	if err := c.probe(); err != nil {
		return nil, err
	}
	return c, nil
}

// detectPacketSize tells plain 188-byte packets from 192-byte M2TS ones by
// looking for two consecutive sync bytes.
func detectPacketSize(f *os.File) (int, error) {
	buf := make([]byte, 2*192)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("tsfile: %w: %w", backend.ErrOpenFailed, err)
	}
	buf = buf[:n]
	switch {
	case len(buf) > 188 && buf[0] == 0x47 && buf[188] == 0x47:
		return 188, nil
	case len(buf) > 196 && buf[4] == 0x47 && buf[196] == 0x47:
		return 192, nil
	case len(buf) >= 188 && buf[0] == 0x47:
		return 188, nil
	}
	return 0, fmt.Errorf("tsfile: %w: not a transport stream", backend.ErrOpenFailed)
}

func (c *Container) reposition(off int64) error {
	if _, err := c.f.Seek(off, io.SeekStart); err != nil {
		return err
	}
	c.dmx.Reset(bufio.NewReaderSize(c.f, readBuffer))
	c.pending = nil
	return nil
}

// probe reads until every stream of the program map produced a unit, then
// keeps those units queued for ReadPacket.
func (c *Container) probe() error {
	seen := make(map[uint16]*mpegts.Unit)
	var units []*mpegts.Unit
	for len(units) < probeUnits {
		u, err := c.dmx.NextUnit()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("tsfile: %w: %w", backend.ErrOpenFailed, err)
		}
		units = append(units, u)
		if _, ok := seen[u.PID]; !ok {
			seen[u.PID] = u
		}
		if es := c.dmx.Streams(); es != nil && len(seen) >= len(es) {
			break
		}
	}

	for _, es := range c.dmx.Streams() {
		info, ok := streamInfo(es, seen[es.PID])
		if !ok {
			continue
		}
		info.Index = len(c.streams)
		c.byPID[es.PID] = info.Index
		c.pids = append(c.pids, es.PID)
		c.streams = append(c.streams, info)
	}
	if len(c.streams) == 0 {
		return fmt.Errorf("tsfile: %w: no playable stream", backend.ErrOpenFailed)
	}
	c.pending = units
	return nil
}

func streamInfo(es mpegts.ElementaryStream, first *mpegts.Unit) (media.StreamInfo, bool) {
	name := mpegts.CodecName(es.StreamType)
	if name == "" {
		return media.StreamInfo{}, false
	}
	info := media.StreamInfo{Codec: name, TimeBase: timeBase}
	switch {
	case mpegts.IsVideo(es.StreamType):
		info.Type = media.MediaVideo
	case mpegts.IsAudio(es.StreamType):
		info.Type = media.MediaAudio
		if es.StreamType == mpegts.StreamTypeAAC && first != nil {
			info.SampleRate, info.Channels, _ = mpegts.ProbeADTS(first.Data)
		}
	default:
		return media.StreamInfo{}, false
	}
	return info, true
}

// Streams returns the playable streams of the first program.
func (c *Container) Streams() []media.StreamInfo { return c.streams }

// ReadPacket returns the next access unit of a playable stream.
func (c *Container) ReadPacket() (*media.Packet, error) {
	for {
		u, err := c.next()
		if err != nil {
			return nil, err
		}
		idx, ok := c.byPID[u.PID]
		if !ok {
			continue
		}
		return &media.Packet{
			Data:        u.Data,
			StreamIndex: idx,
			PTS:         timestamp(u.PTS),
			DTS:         timestamp(u.DTS),
			Keyframe:    u.RandomAccess,
		}, nil
	}
}

func (c *Container) next() (*mpegts.Unit, error) {
	if len(c.pending) > 0 {
		u := c.pending[0]
		c.pending = c.pending[1:]
		return u, nil
	}
	u, err := c.dmx.NextUnit()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tsfile: read: %w", err)
	}
	return u, err
}

func timestamp(ts int64) int64 {
	if ts == mpegts.NoTimestamp {
		return media.NoPTS
	}
	return ts
}

// Close closes the file.
func (c *Container) Close() error {
	return c.f.Close()
}
