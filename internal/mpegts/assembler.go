package mpegts

import "sort"

// assembler collects the packets of one PID until the next unit starts.
type assembler struct {
	pid     uint16
	psi     bool
	packets []*Packet
}

// add buffers p and returns the packets of a finished unit, if any.
func (a *assembler) add(p *Packet) []*Packet {
	if p.Header.TransportErrorIndicator {
		a.packets = nil
		return nil
	}
	if !p.Header.HasPayload {
		return nil
	}

	if n := len(a.packets); n > 0 && !p.Header.DiscontinuityIndicator {
		prev := a.packets[n-1].Header.ContinuityCounter
		if p.Header.ContinuityCounter != (prev+1)&0x0F {
			if p.Header.ContinuityCounter == prev {
				return nil
			}
			a.packets = nil
		}
	}

	var done []*Packet
	if p.Header.PayloadUnitStartIndicator {
		done, a.packets = a.packets, nil
	} else if len(a.packets) == 0 {
		// Continuation without a start; nothing to attach it to.
		return nil
	}
	a.packets = append(a.packets, p)

	if done == nil && a.psi {
		if _, ok := sections(joinPayloads(a.packets)); ok {
			done, a.packets = a.packets, nil
		}
	}
	return done
}

func (a *assembler) flush() []*Packet {
	done := a.packets
	a.packets = nil
	return done
}

func joinPayloads(ps []*Packet) []byte {
	var n int
	for _, p := range ps {
		n += len(p.Payload)
	}
	out := make([]byte, 0, n)
	for _, p := range ps {
		out = append(out, p.Payload...)
	}
	return out
}

// assemblers holds one assembler per PID.
type assemblers map[uint16]*assembler

func (m assemblers) get(pid uint16, psi bool) *assembler {
	a, ok := m[pid]
	if !ok {
		a = &assembler{pid: pid}
		m[pid] = a
	}
	a.psi = psi
	return a
}

// drain flushes every PID in ascending order so the PAT comes first.
func (m assemblers) drain() [][]*Packet {
	pids := make([]int, 0, len(m))
	for pid := range m {
		pids = append(pids, int(pid))
	}
	sort.Ints(pids)

	var all [][]*Packet
	for _, pid := range pids {
		if ps := m[uint16(pid)].flush(); len(ps) > 0 {
			all = append(all, ps)
		}
	}
	return all
}
