package mpegts

import (
	"errors"
	"fmt"
)

const (
	pidPAT     = 0x0000
	tableIDPAT = 0x00
	tableIDPMT = 0x02
)

var errCRC = errors.New("CRC32 mismatch")

// MPEG-2 CRC32, polynomial 0x04C11DB7, no reflection.
var crcTable = func() (t [256]uint32) {
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}()

func crc32MPEG(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// A section including its trailing CRC checksums to zero.
func checkCRC(section []byte) error {
	if len(section) < 4 || crc32MPEG(section) != 0 {
		return errCRC
	}
	return nil
}

// sections splits a PSI payload (pointer field first) into complete
// sections. ok is false while a section is still incomplete.
func sections(payload []byte) (secs [][]byte, ok bool) {
	if len(payload) < 1 {
		return nil, false
	}
	offset := 1 + int(payload[0])
	if offset >= len(payload) {
		return nil, false
	}
	for offset < len(payload) {
		if payload[offset] == 0xFF {
			break
		}
		if offset+3 > len(payload) {
			return secs, false
		}
		// Padding has section_syntax_indicator clear.
		if payload[offset+1]&0x80 == 0 {
			break
		}
		end := offset + 3 + (int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2]))
		if end > len(payload) {
			return secs, false
		}
		secs = append(secs, payload[offset:end])
		offset = end
	}
	return secs, true
}

// parsePAT returns the PMT PID of every program except the NIT entry.
func parsePAT(sec []byte) ([]uint16, error) {
	if len(sec) < 12 || sec[0] != tableIDPAT {
		return nil, fmt.Errorf("mpegts: PAT too short")
	}
	if err := checkCRC(sec); err != nil {
		return nil, fmt.Errorf("mpegts: PAT %w", err)
	}
	var pids []uint16
	for i := 8; i+4 <= len(sec)-4; i += 4 {
		program := uint16(sec[i])<<8 | uint16(sec[i+1])
		if program == 0 {
			continue
		}
		pids = append(pids, uint16(sec[i+2]&0x1F)<<8|uint16(sec[i+3]))
	}
	return pids, nil
}

func parsePMT(sec []byte) ([]ElementaryStream, error) {
	if len(sec) < 16 || sec[0] != tableIDPMT {
		return nil, fmt.Errorf("mpegts: PMT too short")
	}
	if err := checkCRC(sec); err != nil {
		return nil, fmt.Errorf("mpegts: PMT %w", err)
	}
	end := len(sec) - 4
	offset := 12 + (int(sec[10]&0x0F)<<8 | int(sec[11]))

	var streams []ElementaryStream
	for offset+5 <= end {
		streams = append(streams, ElementaryStream{
			StreamType: sec[offset],
			PID:        uint16(sec[offset+1]&0x1F)<<8 | uint16(sec[offset+2]),
		})
		offset += 5 + (int(sec[offset+3]&0x0F)<<8 | int(sec[offset+4]))
	}
	return streams, nil
}
