package tsfile

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

const (
	videoPID  = 0x100
	audioPID  = 0x101
	pmtPID    = 0x1000
	startPTS  = 126000
	frameTick = 3600 // 25 fps at 90 kHz
)

var (
	idr   = []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84}
	slice = []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9A, 0x02}
	adts  = []byte{0xFF, 0xF1, 0x4C, 0x80, 0x01, 0x3F, 0xFC, 0x21}
)

func crcMPEG(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

type tsBuilder struct {
	out []byte
	cc  map[uint16]byte
}

func (b *tsBuilder) packet(pid uint16, payload []byte) {
	pkt := make([]byte, 188)
	pkt[0] = 0x47
	pkt[1] = 0x40 | byte(pid>>8)&0x1F
	pkt[2] = byte(pid)
	cc := b.cc[pid]
	b.cc[pid] = (cc + 1) & 0x0F
	room := 184 - len(payload)
	pkt[3] = 0x10 | cc
	if room > 0 {
		pkt[3] |= 0x20
		pkt[4] = byte(room - 1)
		for i := 6; i < 4+room; i++ {
			pkt[i] = 0xFF
		}
	}
	copy(pkt[4+room:], payload)
	b.out = append(b.out, pkt...)
}

func (b *tsBuilder) section(pid uint16, sec []byte) {
	sec = binary.BigEndian.AppendUint32(sec, crcMPEG(sec))
	b.packet(pid, append([]byte{0x00}, sec...))
}

func (b *tsBuilder) pes(pid uint16, streamID byte, pts int64, data []byte) {
	length := 8 + len(data)
	if streamID == 0xE0 {
		length = 0
	}
	p := []byte{0x00, 0x00, 0x01, streamID, byte(length >> 8), byte(length), 0x80, 0x80, 0x05,
		0x21 | byte(pts>>29&0x0E), byte(pts >> 22), byte(pts>>14&0xFE) | 0x01, byte(pts >> 7), byte(pts<<1&0xFE) | 0x01}
	b.packet(pid, append(p, data...))
}

// writeTS writes seconds of 25 fps H.264 and AAC with one keyframe per
// second and returns the path.
func writeTS(t *testing.T, seconds int) string {
	t.Helper()
	b := &tsBuilder{cc: make(map[uint16]byte)}
	b.section(0, []byte{0x00, 0xB0, 13, 0x00, 0x01, 0xC1, 0x00, 0x00, 0x00, 0x01, 0xE0 | pmtPID>>8, pmtPID & 0xFF})
	b.section(pmtPID, []byte{0x02, 0xB0, 23, 0x00, 0x01, 0xC1, 0x00, 0x00, 0xE1, 0x00, 0xF0, 0x00,
		0x1B, 0xE0 | videoPID>>8, videoPID & 0xFF, 0xF0, 0x00,
		0x0F, 0xE0 | audioPID>>8, audioPID & 0xFF, 0xF0, 0x00,
	})
	for i := 0; i < seconds*25; i++ {
		pts := int64(startPTS + i*frameTick)
		au := slice
		if i%25 == 0 {
			au = idr
		}
		b.pes(videoPID, 0xE0, pts, au)
		b.pes(audioPID, 0xC0, pts, adts)
	}

	path := filepath.Join(t.TempDir(), "clip.ts")
	if err := os.WriteFile(path, b.out, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func openTS(t *testing.T, seconds int) backend.Container {
	t.Helper()
	c, err := Open(writeTS(t, seconds))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func nextVideo(t *testing.T, c backend.Container) *media.Packet {
	t.Helper()
	for {
		pkt, err := c.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if pkt.StreamIndex == 0 {
			return pkt
		}
	}
}

func TestOpenProbesStreams(t *testing.T) {
	t.Parallel()

	c := openTS(t, 1)
	streams := c.Streams()
	if len(streams) != 2 {
		t.Fatalf("streams: got %d, want 2", len(streams))
	}
	v, a := streams[0], streams[1]
	if v.Type != media.MediaVideo || v.Codec != "h264" || v.Index != 0 {
		t.Errorf("video stream: got %+v", v)
	}
	if a.Type != media.MediaAudio || a.Codec != "aac" || a.Index != 1 {
		t.Errorf("audio stream: got %+v", a)
	}
	if a.SampleRate != 48000 || a.Channels != 2 {
		t.Errorf("audio format: got %d Hz %d ch, want 48000 Hz 2 ch", a.SampleRate, a.Channels)
	}
	if v.TimeBase != (media.Rational{Num: 1, Den: 90000}) {
		t.Errorf("time base: got %v, want 1/90000", v.TimeBase)
	}
}

func TestReadPacketReturnsEveryUnit(t *testing.T) {
	t.Parallel()

	c := openTS(t, 2)
	var video, audio, keys int
	for {
		pkt, err := c.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		switch pkt.StreamIndex {
		case 0:
			if video == 0 && (pkt.PTS != startPTS || !pkt.Keyframe) {
				t.Errorf("first video packet: pts %d key %v", pkt.PTS, pkt.Keyframe)
			}
			video++
			if pkt.Keyframe {
				keys++
			}
		case 1:
			audio++
		}
	}
	if video != 50 || audio != 50 {
		t.Errorf("packets: got %d video %d audio, want 50 each", video, audio)
	}
	if keys != 2 {
		t.Errorf("keyframes: got %d, want 2", keys)
	}
}

func TestSeek(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   int64
		backward bool
		want     int64
	}{
		{"backward lands on earlier keyframe", startPTS + 315000, true, startPTS + 270000},
		{"forward lands on later keyframe", startPTS + 315000, false, startPTS + 360000},
		{"exact keyframe", startPTS + 180000, true, startPTS + 180000},
		{"before start", 0, true, startPTS},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := openTS(t, 6)
			if err := c.Seek(0, tt.target, tt.backward); err != nil {
				t.Fatalf("Seek: %v", err)
			}
			pkt := nextVideo(t, c)
			if pkt.PTS != tt.want || !pkt.Keyframe {
				t.Errorf("after seek: pts %d key %v, want pts %d keyframe", pkt.PTS, pkt.Keyframe, tt.want)
			}
		})
	}
}

func TestSeekPastEnd(t *testing.T) {
	t.Parallel()

	c := openTS(t, 2)
	err := c.Seek(0, startPTS+100*90000, false)
	if !errors.Is(err, backend.ErrSeekFailed) {
		t.Errorf("Seek: got %v, want ErrSeekFailed", err)
	}
	if err := c.Seek(7, 0, true); !errors.Is(err, backend.ErrSeekFailed) {
		t.Errorf("Seek unknown stream: got %v, want ErrSeekFailed", err)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.ts")
	if err := os.WriteFile(junk, []byte("definitely not a transport stream, just text padding it out"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{junk, filepath.Join(dir, "missing.ts")} {
		if _, err := Open(path); !errors.Is(err, backend.ErrOpenFailed) {
			t.Errorf("Open(%s): got %v, want ErrOpenFailed", filepath.Base(path), err)
		}
	}
}
