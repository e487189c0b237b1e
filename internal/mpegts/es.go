package mpegts

import (
	"bytes"
	"errors"
)

// Stream types from ISO/IEC 13818-1 Table 2-34 and ATSC A/52.
const (
	StreamTypeMPEG1Video = 0x01
	StreamTypeMPEG2Video = 0x02
	StreamTypeMPEG1Audio = 0x03
	StreamTypeMPEG2Audio = 0x04
	StreamTypeAAC        = 0x0F
	StreamTypeH264       = 0x1B
	StreamTypeH265       = 0x24
	StreamTypeAC3        = 0x81
)

// IsVideo reports whether st carries pictures.
func IsVideo(st uint8) bool {
	switch st {
	case StreamTypeMPEG1Video, StreamTypeMPEG2Video, StreamTypeH264, StreamTypeH265:
		return true
	}
	return false
}

// IsAudio reports whether st carries sound.
func IsAudio(st uint8) bool {
	switch st {
	case StreamTypeMPEG1Audio, StreamTypeMPEG2Audio, StreamTypeAAC, StreamTypeAC3:
		return true
	}
	return false
}

// CodecName returns the decoder name for st, or "" when unsupported.
func CodecName(st uint8) string {
	switch st {
	case StreamTypeMPEG1Video:
		return "mpeg1video"
	case StreamTypeMPEG2Video:
		return "mpeg2video"
	case StreamTypeMPEG1Audio:
		return "mp2"
	case StreamTypeMPEG2Audio:
		return "mp3"
	case StreamTypeAAC:
		return "aac"
	case StreamTypeH264:
		return "h264"
	case StreamTypeH265:
		return "hevc"
	case StreamTypeAC3:
		return "ac3"
	}
	return ""
}

// H.264 NAL types (ITU-T H.264 Table 7-1).
const (
	nalH264IDR = 5
)

// H.265 random access point range: BLA_W_LP through CRA_NUT.
const (
	nalHEVCBlaWLP = 16
	nalHEVCCraNut = 21
)

var mpegSequenceHeader = []byte{0x00, 0x00, 0x01, 0xB3}

// isRandomAccess reports whether an access unit can start decoding. Audio
// streams are treated as intra-only.
func isRandomAccess(st uint8, data []byte) bool {
	switch st {
	case StreamTypeH264:
		for _, nal := range annexB(data) {
			if nal[0]&0x1F == nalH264IDR {
				return true
			}
		}
		return false
	case StreamTypeH265:
		for _, nal := range annexB(data) {
			if t := nal[0] >> 1 & 0x3F; t >= nalHEVCBlaWLP && t <= nalHEVCCraNut {
				return true
			}
		}
		return false
	case StreamTypeMPEG1Video, StreamTypeMPEG2Video:
		return bytes.Contains(data, mpegSequenceHeader)
	}
	return true
}

// annexB splits an Annex B byte stream on 3- and 4-byte start codes and
// returns the NAL units without their start codes.
func annexB(data []byte) [][]byte {
	var starts []int
	var codes []int
	for i := 0; i+2 < len(data); {
		if data[i] == 0 && data[i+1] == 0 {
			if data[i+2] == 1 {
				starts = append(starts, i+3)
				codes = append(codes, i)
				i += 3
				continue
			}
			if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				starts = append(starts, i+4)
				codes = append(codes, i)
				i += 4
				continue
			}
		}
		i++
	}

	var nals [][]byte
	for n, s := range starts {
		end := len(data)
		if n+1 < len(starts) {
			end = codes[n+1]
		}
		if s < end {
			nals = append(nals, data[s:end])
		}
	}
	return nals
}

// ErrInvalidADTS is returned when an ADTS header is malformed.
var ErrInvalidADTS = errors.New("mpegts: invalid ADTS header")

// AAC sampling frequencies by index (ISO 14496-3).
var aacSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// ProbeADTS reads the sample rate and channel count from the first ADTS
// header in data.
func ProbeADTS(data []byte) (sampleRate, channels int, err error) {
	for i := 0; i+7 <= len(data); i++ {
		if data[i] != 0xFF || data[i+1]&0xF6 != 0xF0 {
			continue
		}
		idx := data[i+2] >> 2 & 0x0F
		if int(idx) >= len(aacSampleRates) {
			return 0, 0, ErrInvalidADTS
		}
		ch := int(data[i+2]&0x01)<<2 | int(data[i+3]>>6)
		return aacSampleRates[idx], ch, nil
	}
	return 0, 0, ErrInvalidADTS
}
