package tsfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/mpegts"
	"github.com/zsiec/duet/media"
)

// Seek positions the container on a random access unit of stream near ts.
// With backward set it picks the last one at or before ts, otherwise the
// first one at or after ts. Units of other streams that precede the chosen
// one are dropped. 33-bit timestamp wraparound is not handled.
func (c *Container) Seek(stream int, ts int64, backward bool) error {
	if stream < 0 || stream >= len(c.streams) {
		return fmt.Errorf("tsfile: %w: stream %d", backend.ErrSeekFailed, stream)
	}
	pid := c.pids[stream]
	video := c.streams[stream].Type == media.MediaVideo

	off, err := c.bisect(pid, ts)
	if err != nil {
		return fmt.Errorf("tsfile: %w: %w", backend.ErrSeekFailed, err)
	}
	for {
		units, found, err := c.scan(off, pid, video, ts, backward)
		if err != nil {
			return fmt.Errorf("tsfile: %w: %w", backend.ErrSeekFailed, err)
		}
		if found || (off == 0 && len(units) > 0) {
			c.pending = units
			return nil
		}
		if !backward || off == 0 {
			return fmt.Errorf("tsfile: %w: no random access point", backend.ErrSeekFailed)
		}
		// The first random access point after off is already past ts.
		off = c.align(max(0, off-seekWindow))
	}
}

func (c *Container) align(off int64) int64 {
	n := int64(c.dmx.PacketSize())
	return off / n * n
}

// bisect returns the last packet-aligned offset whose first timestamp on
// pid is at or before ts, or 0.
func (c *Container) bisect(pid uint16, ts int64) (int64, error) {
	n := int64(c.dmx.PacketSize())
	lo, hi := int64(0), c.size/n
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		pts, ok, err := c.firstPTS(mid*n, pid)
		if err != nil {
			return 0, err
		}
		if ok && pts <= ts {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo * n, nil
}

func (c *Container) firstPTS(off int64, pid uint16) (int64, bool, error) {
	if _, err := c.f.Seek(off, io.SeekStart); err != nil {
		return 0, false, err
	}
	c.dmx.Reset(bufio.NewReader(io.LimitReader(c.f, seekWindow)))
	for {
		u, err := c.dmx.NextUnit()
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		if u.PID == pid && u.PTS != mpegts.NoTimestamp {
			return u.PTS, true, nil
		}
	}
}

// scan reads forward from off and returns the units to queue, starting at
// the chosen random access point. found is false when no acceptable point
// was seen; in backward mode the units then start at the first point
// after ts, which is only usable when off is the start of the file.
func (c *Container) scan(off int64, pid uint16, video bool, ts int64, backward bool) ([]*mpegts.Unit, bool, error) {
	if err := c.reposition(off); err != nil {
		return nil, false, err
	}

	var kept []*mpegts.Unit
	found := false
	for {
		u, err := c.dmx.NextUnit()
		if errors.Is(err, io.EOF) {
			return kept, found, nil
		}
		if err != nil {
			return nil, false, err
		}
		timed := u.PID == pid && u.PTS != mpegts.NoTimestamp
		point := timed && (u.RandomAccess || !video)

		if !backward {
			if point && u.PTS >= ts {
				return []*mpegts.Unit{u}, true, nil
			}
			continue
		}
		switch {
		case point && u.PTS <= ts:
			kept, found = []*mpegts.Unit{u}, true
		case timed && u.PTS > ts && found:
			return append(kept, u), true, nil
		case point && kept == nil:
			return []*mpegts.Unit{u}, false, nil
		case kept != nil:
			kept = append(kept, u)
		}
	}
}
