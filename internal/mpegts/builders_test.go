package mpegts

import (
	"bytes"
	"encoding/binary"
)

func makePacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = syncByte
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	if pusi {
		buf[1] |= 0x40
	}
	// Pad short payloads with an adaptation field so the packet carries
	// exactly the given bytes.
	if room := packetSize - 4 - len(payload); room > 0 {
		buf[3] = 0x30 | cc&0x0F
		buf[4] = byte(room - 1)
		if room > 1 {
			buf[5] = 0x00
			for i := 6; i < 4+room; i++ {
				buf[i] = 0xFF
			}
		}
		copy(buf[4+room:], payload)
		return buf
	}
	buf[3] = 0x10 | cc&0x0F
	copy(buf[4:], payload)
	return buf
}

func makeRandomAccessPacket(pid uint16, cc uint8, payload []byte) []byte {
	buf := makePacket(pid, cc, true, payload)
	if buf[3]&0x20 != 0 && buf[4] > 0 {
		buf[5] |= 0x40
	}
	return buf
}

func encodeTimestamp(marker byte, v int64) []byte {
	return []byte{
		marker<<4 | byte(v>>29&0x0E) | 0x01,
		byte(v >> 22),
		byte(v>>14&0xFE) | 0x01,
		byte(v >> 7),
		byte(v<<1&0xFE) | 0x01,
	}
}

func buildPES(streamID byte, pts, dts int64, data []byte) []byte {
	var opt []byte
	var ind byte
	switch {
	case pts != NoTimestamp && dts != NoTimestamp:
		ind = 3
		opt = append(encodeTimestamp(0x03, pts), encodeTimestamp(0x01, dts)...)
	case pts != NoTimestamp:
		ind = 2
		opt = encodeTimestamp(0x02, pts)
	}

	length := 3 + len(opt) + len(data)
	if streamID&0xF0 == 0xE0 {
		length = 0
	}
	buf := []byte{0x00, 0x00, 0x01, streamID, byte(length >> 8), byte(length), 0x80, ind << 6, byte(len(opt))}
	buf = append(buf, opt...)
	return append(buf, data...)
}

func withPointer(section []byte) []byte {
	return append([]byte{0x00}, section...)
}

func sealSection(data []byte) []byte {
	return binary.BigEndian.AppendUint32(data, crc32MPEG(data))
}

// buildPAT maps program numbers to PMT PIDs, in the order given.
func buildPAT(entries ...[2]uint16) []byte {
	length := 5 + 4*len(entries) + 4
	data := []byte{tableIDPAT, 0xB0 | byte(length>>8)&0x0F, byte(length), 0x00, 0x01, 0xC1, 0x00, 0x00}
	for _, e := range entries {
		num, pid := e[0], e[1]
		data = append(data, byte(num>>8), byte(num), 0xE0|byte(pid>>8)&0x1F, byte(pid))
	}
	return sealSection(data)
}

func buildPMT(streams []ElementaryStream) []byte {
	length := 9 + 5*len(streams) + 4
	data := []byte{tableIDPMT, 0xB0 | byte(length>>8)&0x0F, byte(length), 0x00, 0x01, 0xC1, 0x00, 0x00, 0xE1, 0x00, 0xF0, 0x00}
	for _, s := range streams {
		data = append(data, s.StreamType, 0xE0|byte(s.PID>>8)&0x1F, byte(s.PID), 0xF0, 0x00)
	}
	return sealSection(data)
}

// tsWriter lays out a transport stream with per-PID continuity counters.
type tsWriter struct {
	buf bytes.Buffer
	cc  map[uint16]uint8
}

func newTSWriter() *tsWriter { return &tsWriter{cc: make(map[uint16]uint8)} }

func (w *tsWriter) next(pid uint16) uint8 {
	cc := w.cc[pid]
	w.cc[pid] = (cc + 1) & 0x0F
	return cc
}

func (w *tsWriter) tables(streams []ElementaryStream) {
	w.buf.Write(makePacket(pidPAT, w.next(pidPAT), true, withPointer(buildPAT([2]uint16{1, 0x1000}))))
	w.buf.Write(makePacket(0x1000, w.next(0x1000), true, withPointer(buildPMT(streams))))
}

// pes splits a PES packet over as many transport packets as it needs.
func (w *tsWriter) pes(pid uint16, pes []byte, randomAccess bool) {
	first := true
	for len(pes) > 0 {
		n := min(len(pes), packetSize-4)
		if first && randomAccess {
			n = min(len(pes), packetSize-6)
			w.buf.Write(makeRandomAccessPacket(pid, w.next(pid), pes[:n]))
		} else {
			w.buf.Write(makePacket(pid, w.next(pid), first, pes[:n]))
		}
		pes = pes[n:]
		first = false
	}
}

func (w *tsWriter) bytes() []byte { return w.buf.Bytes() }
