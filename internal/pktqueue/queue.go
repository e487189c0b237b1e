// Package pktqueue implements the FIFO of compressed packets between the
// demuxer and a decoder. The queue tracks packet count and payload bytes;
// enforcing a byte budget is the producer's job, helped by the Drained
// signal that fires whenever a consumer frees space.
package pktqueue

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

var (
	// ErrEmpty is returned by a non-blocking Get on an empty queue.
	ErrEmpty = errors.New("pktqueue: empty")
	// ErrAborted is returned once the queue has been aborted.
	ErrAborted = errors.New("pktqueue: aborted")
)

// Queue is a mutex and condition variable guarded packet FIFO.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pkts    []*media.Packet
	size    int
	aborted bool
	wakeGen uint64
	drained chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{drained: make(chan struct{}, 1)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends pkt and wakes one waiting consumer. The queue takes
// ownership of pkt. Flush markers bypass the payload check.
func (q *Queue) Put(pkt *media.Packet) error {
	if pkt == nil || (pkt.Data == nil && !pkt.IsFlush()) {
		return fmt.Errorf("put: %w", backend.ErrPacketCopy)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.aborted {
		return fmt.Errorf("put: %w", backend.ErrOutOfMemory)
	}
	q.pkts = append(q.pkts, pkt)
	q.size += pkt.Size()
	q.cond.Signal()
	return nil
}

// Get removes the head packet. A non-blocking Get on an empty queue returns
// ErrEmpty. A blocking Get waits until a packet arrives, the queue is
// aborted, or Wake is called.
func (q *Queue) Get(block bool) (*media.Packet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	gen := q.wakeGen
	for {
		if q.aborted {
			return nil, ErrAborted
		}
		if len(q.pkts) > 0 {
			pkt := q.pkts[0]
			q.pkts[0] = nil
			q.pkts = q.pkts[1:]
			q.size -= pkt.Size()
			q.notifyDrained()
			return pkt, nil
		}
		if !block || q.wakeGen != gen {
			return nil, ErrEmpty
		}
		q.cond.Wait()
	}
}

// Flush discards every queued packet and zeroes the counters.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.pkts)
	q.pkts = q.pkts[:0]
	q.size = 0
	q.notifyDrained()
}

// Wake makes every Get currently blocked on an empty queue return
// ErrEmpty.
func (q *Queue) Wake() {
	q.mu.Lock()
	q.wakeGen++
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Abort makes every current and future Get return ErrAborted.
func (q *Queue) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.cond.Broadcast()
	q.mu.Unlock()
	q.notifyDrained()
}

// Aborted reports whether Abort has been called.
func (q *Queue) Aborted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.aborted
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pkts)
}

// Size returns the total payload bytes queued.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Drained delivers a coalesced token each time space is freed.
func (q *Queue) Drained() <-chan struct{} {
	return q.drained
}

func (q *Queue) notifyDrained() {
	select {
	case q.drained <- struct{}{}:
	default:
	}
}
