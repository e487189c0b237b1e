package mpegts

import (
	"errors"
	"io"
)

// Demuxer reads transport packets from a reader and returns the PES units
// of the first program's elementary streams.
type Demuxer struct {
	r       io.Reader
	buf     []byte
	pktSize int

	pmtPIDs map[uint16]bool
	streams []ElementaryStream
	types   map[uint16]uint8

	asm     assemblers
	pending []*Unit
	eof     bool
}

// NewDemuxer creates a demuxer reading from r.
func NewDemuxer(r io.Reader, opts ...func(*Demuxer)) *Demuxer {
	d := &Demuxer{
		r:       r,
		pktSize: packetSize,
		pmtPIDs: make(map[uint16]bool),
		types:   make(map[uint16]uint8),
		asm:     make(assemblers),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.buf = make([]byte, d.pktSize)
	return d
}

// DemuxerOptPacketSize sets the on-disk packet size: 188, or 192 for M2TS
// files that prefix each packet with a 4-byte timecode.
func DemuxerOptPacketSize(size int) func(*Demuxer) {
	return func(d *Demuxer) {
		d.pktSize = size
	}
}

// PacketSize returns the on-disk packet size.
func (d *Demuxer) PacketSize() int { return d.pktSize }

// Streams returns the elementary streams of the first program map seen, or
// nil before one was parsed.
func (d *Demuxer) Streams() []ElementaryStream { return d.streams }

// Reset drops partially assembled units and continues from r. The program
// map is kept.
func (d *Demuxer) Reset(r io.Reader) {
	d.r = r
	d.asm = make(assemblers)
	d.pending = nil
	d.eof = false
}

// NextUnit returns the next PES unit of a mapped stream. PSI tables are
// consumed internally. It returns io.EOF once the reader is exhausted and
// every buffered unit was returned.
func (d *Demuxer) NextUnit() (*Unit, error) {
	for {
		if len(d.pending) > 0 {
			u := d.pending[0]
			d.pending = d.pending[1:]
			return u, nil
		}
		if d.eof {
			return nil, io.EOF
		}

		if _, err := io.ReadFull(d.r, d.buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.eof = true
				for _, ps := range d.asm.drain() {
					d.process(ps)
				}
				continue
			}
			return nil, err
		}

		pkt, err := parsePacket(d.buf[d.pktSize-packetSize:])
		if err != nil {
			continue
		}
		pid := pkt.Header.PID
		if ps := d.asm.get(pid, d.isPSI(pid)).add(pkt); ps != nil {
			d.process(ps)
		}
	}
}

func (d *Demuxer) isPSI(pid uint16) bool {
	return pid == pidPAT || d.pmtPIDs[pid]
}

// process parses one finished unit, appending any PES output to pending.
// Corrupt units are dropped.
func (d *Demuxer) process(ps []*Packet) {
	first := ps[0]
	pid := first.Header.PID
	payload := joinPayloads(ps)
	if len(payload) == 0 {
		return
	}

	if d.isPSI(pid) {
		secs, _ := sections(payload)
		for _, sec := range secs {
			d.table(sec)
		}
		return
	}

	st, ok := d.types[pid]
	if !ok || !isPESStart(payload) {
		return
	}
	p, err := parsePES(payload)
	if err != nil || len(p.data) == 0 {
		return
	}
	d.pending = append(d.pending, &Unit{
		PID:          pid,
		StreamType:   st,
		PTS:          p.pts,
		DTS:          p.dts,
		RandomAccess: first.Header.RandomAccessIndicator || isRandomAccess(st, p.data),
		Data:         p.data,
	})
}

func (d *Demuxer) table(sec []byte) {
	switch sec[0] {
	case tableIDPAT:
		pids, err := parsePAT(sec)
		if err != nil {
			return
		}
		for _, pid := range pids {
			d.pmtPIDs[pid] = true
		}
	case tableIDPMT:
		if d.streams != nil {
			return
		}
		streams, err := parsePMT(sec)
		if err != nil {
			return
		}
		d.streams = streams
		for _, es := range streams {
			d.types[es.PID] = es.StreamType
		}
	}
}
