// Package mpegts reads MPEG transport stream files. It discovers the first
// program through PAT/PMT, reassembles PES packets per PID, and hands back
// one Unit per access unit with its 90 kHz timestamps.
package mpegts

// NoTimestamp marks a missing PTS or DTS.
const NoTimestamp int64 = -1

// ClockRate is the frequency of PES timestamps.
const ClockRate = 90000

// Packet is a parsed 188-byte transport packet.
type Packet struct {
	Header  PacketHeader
	Payload []byte
}

// PacketHeader holds the header and adaptation field flags of one packet.
type PacketHeader struct {
	PID                       uint16
	ContinuityCounter         uint8
	HasAdaptationField        bool
	HasPayload                bool
	PayloadUnitStartIndicator bool
	TransportErrorIndicator   bool
	DiscontinuityIndicator    bool
	RandomAccessIndicator     bool
}

// ElementaryStream is one entry of the program map.
type ElementaryStream struct {
	PID        uint16
	StreamType uint8
}

// Unit is one reassembled PES payload.
type Unit struct {
	PID          uint16
	StreamType   uint8
	PTS          int64
	DTS          int64
	RandomAccess bool
	Data         []byte
}
