// Package video runs the picture path of one playback instance: a decode
// stage and a convert stage, each on its own goroutine, joined by a
// capacity-one frame queue, and a presentation slot drained by a refresh
// timer on the display goroutine.
package video

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/clock"
	"github.com/zsiec/duet/media"
)

// RawQueueSize is the depth of the decode to convert hand-off.
const RawQueueSize = 1

// PacketSource is the consumer side of a packet queue.
type PacketSource interface {
	Get(block bool) (*media.Packet, error)
}

// Config describes the video stream and the pipeline's side outputs.
type Config struct {
	TimeBase  media.Rational
	FrameRate media.Rational

	SnapshotDir    string
	SnapshotFormat string
	// OnSnapshot, when set, receives the outcome of every snapshot.
	OnSnapshot func(path string, err error)

	Log *slog.Logger
	Now func() time.Time
}

type decodedFrame struct {
	frame *media.RawFrame
	pts   float64
}

// Pipeline owns the decode, convert, and present stages for one stream.
type Pipeline struct {
	log    *slog.Logger
	src    PacketSource
	dec    backend.Decoder
	conv   backend.PictureConverter
	screen backend.Screen
	clocks *clock.Set
	cfg    Config
	now    func() time.Time

	raw  *FrameQueue[decodedFrame]
	slot *Slot

	// decode goroutine only
	videoClock    float64
	frameInterval float64

	// display goroutine only
	timerMu sync.Mutex
	timer   *Timer

	fast     atomic.Bool
	effect   atomic.Int32
	snapshot atomic.Bool

	abortOnce sync.Once
}

// NewPipeline wires the stages. The pipeline does not own dec or conv.
func NewPipeline(src PacketSource, dec backend.Decoder, conv backend.PictureConverter, screen backend.Screen, clocks *clock.Set, cfg Config) *Pipeline {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	interval := 1 / cfg.FrameRate.Float()
	if cfg.FrameRate.Float() <= 0 {
		interval = InitialDelay.Seconds()
	}
	return &Pipeline{
		log:           log.With("component", "video"),
		src:           src,
		dec:           dec,
		conv:          conv,
		screen:        screen,
		clocks:        clocks,
		cfg:           cfg,
		now:           now,
		raw:           NewFrameQueue[decodedFrame](RawQueueSize),
		slot:          NewSlot(),
		frameInterval: interval,
		timer:         NewTimer(seconds(now())),
	}
}

// SetFast toggles double-speed playback.
func (p *Pipeline) SetFast(on bool) { p.fast.Store(on) }

// SetEffect selects the color effect for subsequent pictures.
func (p *Pipeline) SetEffect(e Effect) { p.effect.Store(int32(e)) }

// Effect returns the active color effect.
func (p *Pipeline) Effect() Effect { return Effect(p.effect.Load()) }

// RequestSnapshot saves the next converted picture to disk.
func (p *Pipeline) RequestSnapshot() { p.snapshot.Store(true) }

// Slot exposes the presentation slot to the display goroutine.
func (p *Pipeline) Slot() *Slot { return p.slot }

// RunDecode pulls packets and pushes decoded frames to the convert stage
// until the packet source or frame queue is aborted.
func (p *Pipeline) RunDecode(ctx context.Context) error {
	defer p.drainRaw()
	for ctx.Err() == nil {
		pkt, err := p.src.Get(true)
		if err != nil {
			return nil
		}
		if pkt.IsFlush() {
			if err := p.dec.Flush(); err != nil {
				p.log.Warn("decoder flush failed", "error", err)
			}
			continue
		}

		frames, err := p.dec.Decode(pkt)
		if err != nil {
			for _, f := range frames {
				f.Free()
			}
			p.log.Debug("skipping undecodable packet", "error", err, "dts", pkt.DTS)
			continue
		}
		for i, f := range frames {
			ts := int64(0)
			switch {
			case f.PTS != media.NoPTS:
				ts = f.PTS
			case pkt.DTS != media.NoPTS:
				ts = pkt.DTS
			}
			pts := p.synchronize(p.cfg.TimeBase.Seconds(ts), f.RepeatPict)
			if err := p.raw.Put(decodedFrame{frame: f, pts: pts}); err != nil {
				for _, rest := range frames[i:] {
					rest.Free()
				}
				return nil
			}
		}
	}
	return nil
}

// synchronize keeps the running video clock. Frames without a timestamp
// take the clock's value; stamped frames reset it. Either way the clock
// advances by one frame interval, plus half an interval per repeat field.
func (p *Pipeline) synchronize(pts float64, repeat int) float64 {
	if pts != 0 {
		p.videoClock = pts
	} else {
		pts = p.videoClock
	}
	delay := p.frameInterval
	delay += float64(repeat) * (delay * 0.5)
	p.videoClock += delay
	if p.fast.Load() {
		pts /= 2
	}
	return pts
}

// RunConvert converts decoded frames and presents them until aborted.
// Only a surface allocation failure is fatal.
func (p *Pipeline) RunConvert(ctx context.Context) error {
	for ctx.Err() == nil {
		item, err := p.raw.Get()
		if err != nil {
			return nil
		}

		pic, err := p.conv.Convert(item.frame)
		item.frame.Free()
		if err != nil {
			p.log.Warn("dropping frame", "error", err, "pts", item.pts)
			continue
		}
		pic.PTS = item.pts

		ApplyEffect(pic, p.Effect())
		if p.snapshot.Swap(false) {
			p.saveSnapshot(pic)
		}

		if err := p.slot.Put(pic, p.screen); err != nil {
			if errors.Is(err, ErrAborted) {
				return nil
			}
			return &backend.StageError{Stage: "present", Err: err}
		}
	}
	return nil
}

func (p *Pipeline) saveSnapshot(pic *media.Picture) {
	path, err := SaveSnapshot(p.cfg.SnapshotDir, p.cfg.SnapshotFormat, pic)
	if err != nil {
		p.log.Error("snapshot failed", "error", err)
	} else {
		p.log.Info("snapshot saved", "path", path)
	}
	if p.cfg.OnSnapshot != nil {
		p.cfg.OnSnapshot(path, err)
	}
}

// Refresh shows the waiting picture, if any, and returns how long to wait
// before the next refresh. It must run on the display goroutine. The
// boolean reports whether a new picture was uploaded.
func (p *Pipeline) Refresh() (time.Duration, bool) {
	pic, ok := p.slot.Peek()
	if !ok {
		return emptyRetry, false
	}

	p.clocks.Video.Set(pic.PTS)

	var master func() float64
	if p.clocks.Sync != clock.SyncVideo {
		master = p.clocks.Master
	}
	p.timerMu.Lock()
	wait, _ := p.timer.Next(pic.PTS, master, seconds(p.now()))
	p.timerMu.Unlock()

	if err := p.slot.Upload(p.screen); err != nil {
		p.log.Warn("upload failed", "error", err, "pts", pic.PTS)
	}
	p.slot.Release()
	return wait, true
}

// ResetTimer re-anchors the frame timer to the current time.
func (p *Pipeline) ResetTimer() {
	p.timerMu.Lock()
	p.timer.Reset(seconds(p.now()))
	p.timerMu.Unlock()
}

// NoVideoRefresh is the refresh interval for an instance without video.
func NoVideoRefresh() time.Duration { return noVideoRetry }

// Abort unblocks the decode and convert stages and any pending
// presentation.
func (p *Pipeline) Abort() {
	p.abortOnce.Do(func() {
		p.raw.Abort()
		p.slot.Abort()
	})
}

func (p *Pipeline) drainRaw() {
	for _, item := range p.raw.Drain() {
		item.frame.Free()
	}
}
