// Package player runs one playback instance: it opens a container, feeds
// the audio and video packet queues from a demux goroutine, services seek
// requests, and shuts its own goroutines down on quit without touching any
// sibling instance.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/duet/internal/audio"
	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/clock"
	"github.com/zsiec/duet/internal/pktqueue"
	"github.com/zsiec/duet/internal/video"
	"github.com/zsiec/duet/media"
)

// DefaultEOFPoll is how often the demuxer retries a container that
// reported end of stream.
const DefaultEOFPoll = 100 * time.Millisecond

// Config describes one instance.
type Config struct {
	Name   string
	Path   string
	Small  bool
	Open   backend.Opener
	Codecs backend.Codecs
	Screen backend.Screen

	AudioFormat media.AudioFormat
	Sync        clock.SyncType

	SnapshotDir    string
	SnapshotFormat string

	EOFPoll time.Duration
	Log     *slog.Logger
	Now     func() time.Time
}

type seekRequest struct {
	pending  bool
	target   float64
	backward bool
}

// Instance is a single playback state machine.
type Instance struct {
	cfg Config
	log *slog.Logger

	state atomic.Int32

	container backend.Container
	audioInfo *media.StreamInfo
	videoInfo *media.StreamInfo
	audioQ    *pktqueue.Queue
	videoQ    *pktqueue.Queue
	videoDec  backend.Decoder
	conv      backend.PictureConverter
	audioDec  backend.Decoder
	res       backend.Resampler
	clocks    *clock.Set

	// audioMu serializes device pulls against teardown.
	audioMu    sync.Mutex
	audioAlive bool
	audio      *audio.Stage
	video      *video.Pipeline

	seekMu sync.Mutex
	seek   seekRequest
	wake   chan struct{}

	eof      bool
	quitOnce sync.Once
	quitCh   chan struct{}
	done     chan struct{}
	err      error
}

// New returns an instance in the Opening state.
func New(cfg Config) *Instance {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.EOFPoll <= 0 {
		cfg.EOFPoll = DefaultEOFPoll
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	i := &Instance{
		cfg:    cfg,
		log:    log.With("instance", cfg.Name),
		audioQ: pktqueue.New(),
		videoQ: pktqueue.New(),
		wake:   make(chan struct{}, 1),
		quitCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	i.clocks = clock.NewSet(cfg.Sync, cfg.AudioFormat.BytesPerSecond(), cfg.Now)
	i.state.Store(int32(StateOpening))
	return i
}

// Name identifies the instance in logs.
func (i *Instance) Name() string { return i.cfg.Name }

// Small reports whether the instance renders in the secondary region.
func (i *Instance) Small() bool { return i.cfg.Small }

// State returns the current lifecycle phase.
func (i *Instance) State() State { return State(i.state.Load()) }

// transition moves from one phase to the next only if the instance is
// still in from. A concurrent Quit therefore always wins.
func (i *Instance) transition(from, to State) bool {
	if !i.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	i.log.Debug("state change", "from", from, "to", to)
	return true
}

func (i *Instance) setState(s State) {
	prev := State(i.state.Swap(int32(s)))
	if prev != s {
		i.log.Debug("state change", "from", prev, "to", s)
	}
}

// Open opens the container and the codecs for the first audio and first
// video stream. Any failure leaves the instance in the Quit state.
func (i *Instance) Open() error {
	if err := i.open(); err != nil {
		i.closeResources()
		i.setState(StateQuit)
		i.err = err
		close(i.done)
		return err
	}
	i.log.Info("opened", "path", i.cfg.Path,
		"video", i.videoInfo != nil, "audio", i.audioInfo != nil, "sync", i.clocks.Sync)
	return nil
}

func (i *Instance) open() error {
	c, err := i.cfg.Open(i.cfg.Path)
	if err != nil {
		if errors.Is(err, backend.ErrOpenFailed) {
			return err
		}
		return fmt.Errorf("%s: %w: %w", i.cfg.Path, backend.ErrOpenFailed, err)
	}
	i.container = c

	for _, s := range c.Streams() {
		s := s
		switch {
		case s.Type == media.MediaVideo && i.videoInfo == nil:
			i.videoInfo = &s
		case s.Type == media.MediaAudio && i.audioInfo == nil:
			i.audioInfo = &s
		}
	}
	if i.videoInfo == nil && i.audioInfo == nil {
		return fmt.Errorf("%s: no audio or video stream: %w", i.cfg.Path, backend.ErrOpenFailed)
	}

	if vs := i.videoInfo; vs != nil {
		if i.videoDec, err = i.cfg.Codecs.NewDecoder(*vs); err != nil {
			return codecError(vs, err)
		}
		if i.conv, err = i.cfg.Codecs.NewPictureConverter(*vs); err != nil {
			return codecError(vs, err)
		}
	}
	if as := i.audioInfo; as != nil {
		if i.audioDec, err = i.cfg.Codecs.NewDecoder(*as); err != nil {
			return codecError(as, err)
		}
		if i.res, err = i.cfg.Codecs.NewResampler(*as, i.cfg.AudioFormat); err != nil {
			return codecError(as, err)
		}
	}

	i.clocks.Sync = i.effectiveSync()

	if vs := i.videoInfo; vs != nil {
		i.video = video.NewPipeline(i.videoQ, i.videoDec, i.conv, i.cfg.Screen, i.clocks, video.Config{
			TimeBase:       vs.TimeBase,
			FrameRate:      vs.FrameRate,
			SnapshotDir:    i.cfg.SnapshotDir,
			SnapshotFormat: i.cfg.SnapshotFormat,
			Log:            i.log,
			Now:            i.cfg.Now,
		})
	}
	if as := i.audioInfo; as != nil {
		i.audio = audio.NewStage(i.audioQ, i.audioDec, i.res, i.clocks, audio.Config{
			TimeBase: as.TimeBase,
			Format:   i.cfg.AudioFormat,
			Log:      i.log,
		})
		i.audioAlive = true
	}
	i.clocks.External.Anchor(0)
	return nil
}

func codecError(s *media.StreamInfo, err error) error {
	if errors.Is(err, backend.ErrUnsupportedCodec) {
		return fmt.Errorf("%s stream %d: %w", s.Type, s.Index, err)
	}
	return fmt.Errorf("%s stream %d (%s): %w: %w", s.Type, s.Index, s.Codec, backend.ErrUnsupportedCodec, err)
}

// effectiveSync falls back to a clock the opened streams can drive.
func (i *Instance) effectiveSync() clock.SyncType {
	want := i.cfg.Sync
	switch {
	case want == clock.SyncAudio && i.audioInfo == nil:
		i.log.Warn("no audio stream, falling back to video master clock")
		return clock.SyncVideo
	case want == clock.SyncVideo && i.videoInfo == nil:
		i.log.Warn("no video stream, falling back to audio master clock")
		return clock.SyncAudio
	}
	return want
}

// Run demuxes, decodes and converts until Quit is called, ctx is
// cancelled, or a fatal error occurs. Resources are released before Run
// returns.
func (i *Instance) Run(ctx context.Context) error {
	if i.State() == StateQuit {
		<-i.done
		return i.err
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, i.Quit)
	defer stop()

	g.Go(func() error { return i.demux(gctx) })
	if i.video != nil {
		g.Go(func() error { return i.video.RunDecode(gctx) })
		g.Go(func() error { return i.video.RunConvert(gctx) })
	}

	err := g.Wait()
	i.Quit()
	if err != nil {
		i.log.Error("instance stopped", "error", err)
	} else {
		i.log.Info("instance stopped")
	}
	i.closeResources()
	i.err = err
	i.setState(StateQuit)
	close(i.done)
	return err
}

// demux reads packets into the queues, applying backpressure and serving
// seek requests, until quit.
func (i *Instance) demux(ctx context.Context) error {
	i.transition(StateOpening, StateDemuxing)
	for {
		select {
		case <-i.quitCh:
			return nil
		default:
		}

		if i.serveSeek() {
			continue
		}

		if i.audioQ.Size() > media.MaxAudioQueueSize || i.videoQ.Size() > media.MaxVideoQueueSize {
			select {
			case <-i.audioQ.Drained():
			case <-i.videoQ.Drained():
			case <-i.wake:
			case <-i.quitCh:
			case <-ctx.Done():
			}
			continue
		}

		pkt, err := i.container.ReadPacket()
		if errors.Is(err, io.EOF) {
			i.setEOF(true)
			// Release an audio pull that blocked before end of stream was
			// flagged.
			i.audioQ.Wake()
			select {
			case <-time.After(i.cfg.EOFPoll):
			case <-i.wake:
			case <-i.quitCh:
			case <-ctx.Done():
			}
			continue
		}
		if err != nil {
			return &backend.StageError{Stage: "demux", Err: fmt.Errorf("%w: %w", backend.ErrIO, err)}
		}
		i.setEOF(false)
		i.route(pkt)
	}
}

func (i *Instance) route(pkt *media.Packet) {
	var q *pktqueue.Queue
	switch {
	case i.videoInfo != nil && pkt.StreamIndex == i.videoInfo.Index:
		q = i.videoQ
	case i.audioInfo != nil && pkt.StreamIndex == i.audioInfo.Index:
		q = i.audioQ
	default:
		return
	}
	if err := q.Put(pkt); err != nil {
		i.log.Debug("dropping packet", "stream", pkt.StreamIndex, "error", err)
	}
}

func (i *Instance) setEOF(eof bool) {
	if i.eof == eof {
		return
	}
	i.eof = eof
	if eof {
		i.log.Info("end of stream, waiting for more data")
	}
	if i.audio != nil {
		i.audio.SetEndOfStream(eof)
	}
}

// RequestSeek asks the demuxer to jump incr seconds from the current
// master clock position. It returns false if a seek is already pending.
func (i *Instance) RequestSeek(incr float64) bool {
	i.seekMu.Lock()
	if i.seek.pending {
		i.seekMu.Unlock()
		return false
	}
	target := i.clocks.Master() + incr
	if target < 0 {
		target = 0
	}
	i.seek = seekRequest{pending: true, target: target, backward: incr < 0}
	i.seekMu.Unlock()

	select {
	case i.wake <- struct{}{}:
	default:
	}
	return true
}

// SeekPending reports whether a seek request awaits the demuxer.
func (i *Instance) SeekPending() bool {
	i.seekMu.Lock()
	defer i.seekMu.Unlock()
	return i.seek.pending
}

// serveSeek performs a pending seek. It reports whether one was pending.
func (i *Instance) serveSeek() bool {
	i.seekMu.Lock()
	req := i.seek
	i.seekMu.Unlock()
	if !req.pending {
		return false
	}

	i.transition(StateDemuxing, StateSeeking)
	stream := i.videoInfo
	if stream == nil {
		stream = i.audioInfo
	}
	ts := stream.TimeBase.FromSeconds(req.target)
	if err := i.container.Seek(stream.Index, ts, req.backward); err != nil {
		i.log.Warn("seek failed", "target", req.target, "error", err)
	} else {
		i.audioQ.Flush()
		i.videoQ.Flush()
		if i.audioInfo != nil {
			i.audioQ.Put(media.FlushPacket())
		}
		if i.videoInfo != nil {
			i.videoQ.Put(media.FlushPacket())
		}
		i.clocks.External.Anchor(req.target)
		if i.video != nil {
			i.video.ResetTimer()
		}
		i.setEOF(false)
		i.log.Info("seeked", "target", req.target, "backward", req.backward)
	}

	i.seekMu.Lock()
	i.seek = seekRequest{}
	i.seekMu.Unlock()
	i.transition(StateSeeking, StateDemuxing)
	return true
}

// Quit stops the instance. Every blocked goroutine of this instance is
// released; other instances are unaffected.
func (i *Instance) Quit() {
	i.quitOnce.Do(func() {
		for _, from := range []State{StateOpening, StateDemuxing, StateSeeking} {
			if i.transition(from, StateDraining) {
				break
			}
		}
		close(i.quitCh)
		i.audioQ.Abort()
		i.videoQ.Abort()
		if i.video != nil {
			i.video.Abort()
		}
	})
}

// Done is closed once the instance has released its resources.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Err returns the fatal error that stopped the instance, if any. Only
// valid after Done is closed.
func (i *Instance) Err() error { return i.err }

func (i *Instance) closeResources() {
	i.audioMu.Lock()
	i.audioAlive = false
	if i.audio != nil {
		i.audio.Close()
	}
	if i.audioDec != nil {
		i.audioDec.Close()
	}
	if i.res != nil {
		i.res.Close()
	}
	i.audioMu.Unlock()

	if i.videoDec != nil {
		i.videoDec.Close()
	}
	if i.conv != nil {
		i.conv.Close()
	}
	if i.container != nil {
		if err := i.container.Close(); err != nil {
			i.log.Warn("closing container", "error", err)
		}
	}
	if i.video != nil && i.cfg.Screen != nil {
		slot := i.video.Slot()
		i.cfg.Screen.Post(func() { slot.Close(i.cfg.Screen) })
	}
}

// FillAudio produces len(p) bytes for the audio device. Instances without
// audio, or already stopped, produce silence.
func (i *Instance) FillAudio(p []byte, mute bool) {
	i.audioMu.Lock()
	defer i.audioMu.Unlock()
	if !i.audioAlive {
		clear(p)
		return
	}
	i.audio.Fill(p, mute)
}

// MasterClock returns the instance's master clock in seconds.
func (i *Instance) MasterClock() float64 { return i.clocks.Master() }

// Clocks exposes the clock set.
func (i *Instance) Clocks() *clock.Set { return i.clocks }

// SetFast toggles double-speed playback on both paths.
func (i *Instance) SetFast(on bool) {
	if i.audio != nil {
		i.audio.SetFast(on)
	}
	if i.video != nil {
		i.video.SetFast(on)
	}
}

// SetEffect selects the color effect.
func (i *Instance) SetEffect(e video.Effect) {
	if i.video != nil {
		i.video.SetEffect(e)
	}
}

// Effect returns the active color effect.
func (i *Instance) Effect() video.Effect {
	if i.video == nil {
		return video.EffectNone
	}
	return i.video.Effect()
}

// RequestSnapshot saves the next picture to disk. It reports false for an
// instance without video.
func (i *Instance) RequestSnapshot() bool {
	if i.video == nil {
		return false
	}
	i.video.RequestSnapshot()
	return true
}

// Refresh runs the presentation timer once. Display goroutine only.
func (i *Instance) Refresh() (time.Duration, bool) {
	if i.video == nil || i.State() == StateQuit {
		return video.NoVideoRefresh(), false
	}
	return i.video.Refresh()
}

// Surface returns the display surface holding the current picture.
func (i *Instance) Surface() backend.Surface {
	if i.video == nil {
		return nil
	}
	return i.video.Slot().Surface()
}
