package mpegts

import "fmt"

type pes struct {
	streamID byte
	pts      int64
	dts      int64
	data     []byte
}

func isPESStart(data []byte) bool {
	return len(data) >= 3 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0x01
}

// Stream IDs without the optional PES header: padding, private_stream_2,
// ECM, EMM, DSMCC, H.222.1 type E and the program stream directory.
func hasOptionalHeader(id byte) bool {
	switch id {
	case 0xBE, 0xBF, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

func parsePES(payload []byte) (*pes, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("mpegts: PES packet too short (%d bytes)", len(payload))
	}
	if !isPESStart(payload) {
		return nil, fmt.Errorf("mpegts: invalid PES start code")
	}

	p := &pes{streamID: payload[3], pts: NoTimestamp, dts: NoTimestamp}
	length := int(payload[4])<<8 | int(payload[5])
	end := len(payload)
	if length > 0 && 6+length < end {
		end = 6 + length
	}

	if !hasOptionalHeader(p.streamID) {
		p.data = payload[6:end]
		return p, nil
	}
	if len(payload) < 9 {
		return nil, fmt.Errorf("mpegts: PES optional header too short")
	}

	start := min(9+int(payload[8]), end)
	switch payload[7] >> 6 {
	case 2:
		if len(payload) >= 14 {
			p.pts = parseTimestamp(payload[9:14])
		}
	case 3:
		if len(payload) >= 19 {
			p.pts = parseTimestamp(payload[9:14])
			p.dts = parseTimestamp(payload[14:19])
		}
	}
	if p.dts == NoTimestamp {
		p.dts = p.pts
	}
	p.data = payload[start:end]
	return p, nil
}

// parseTimestamp decodes a 33-bit PTS or DTS from its 5 marker-laced bytes.
func parseTimestamp(b []byte) int64 {
	return int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
}
