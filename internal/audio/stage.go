// Package audio produces device-ready PCM for one playback instance. It
// pulls packets from the audio queue, decodes and resamples them, keeps
// the audio clock, and applies drift correction against the master clock.
package audio

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/clock"
	"github.com/zsiec/duet/media"
)

// SilenceBytes is the amount of silence emitted when no audio is available.
const SilenceBytes = 1024

var errNoData = errors.New("audio: no data")

// PacketSource is the consumer side of a packet queue.
type PacketSource interface {
	Get(block bool) (*media.Packet, error)
}

// Config describes the stream feeding a Stage.
type Config struct {
	TimeBase media.Rational
	Format   media.AudioFormat
	Log      *slog.Logger
}

// Stage is the body of the audio device callback for one instance. Fill is
// called from a single goroutine (the device pull); the flag setters may be
// called from any goroutine.
type Stage struct {
	log    *slog.Logger
	src    PacketSource
	dec    backend.Decoder
	res    backend.Resampler
	clocks *clock.Set
	drift  *DriftCorrector
	tb     media.Rational
	format media.AudioFormat

	buf       []byte
	idx       int
	silence   []byte
	pending   []*media.RawFrame
	clockBase float64

	fast atomic.Bool
	eos  atomic.Bool
}

// NewStage wires a stage to its packet source, codec objects, and clocks.
func NewStage(src PacketSource, dec backend.Decoder, res backend.Resampler, clocks *clock.Set, cfg Config) *Stage {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Stage{
		log:     log.With("component", "audio"),
		src:     src,
		dec:     dec,
		res:     res,
		clocks:  clocks,
		drift:   NewDriftCorrector(cfg.Format),
		tb:      cfg.TimeBase,
		format:  cfg.Format,
		silence: make([]byte, SilenceBytes),
	}
}

// SetFast toggles double-speed playback.
func (s *Stage) SetFast(on bool) { s.fast.Store(on) }

// SetEndOfStream switches packet reads to non-blocking once the demuxer has
// nothing left, so the shared device never stalls on a finished stream.
func (s *Stage) SetEndOfStream(on bool) { s.eos.Store(on) }

// Fill writes len(dst) bytes of output. When mute is set the data is
// consumed and the clock advances, but dst receives silence.
func (s *Stage) Fill(dst []byte, mute bool) {
	for len(dst) > 0 {
		if s.idx >= len(s.buf) {
			chunk, err := s.decodeChunk()
			if err != nil {
				s.buf = s.silence
			} else {
				s.buf = s.adjust(chunk)
			}
			s.idx = 0
		}

		n := len(s.buf) - s.idx
		if n > len(dst) {
			n = len(dst)
		}
		if mute {
			clear(dst[:n])
		} else {
			copy(dst[:n], s.buf[s.idx:s.idx+n])
		}
		dst = dst[n:]
		s.idx += n
		s.publish()
	}
}

func (s *Stage) publish() {
	pending := 0
	if len(s.buf) > 0 && &s.buf[0] != &s.silence[0] {
		pending = len(s.buf) - s.idx
	}
	s.clocks.Audio.Set(s.clockBase, pending)
}

// adjust applies drift correction when audio is not the master, then the
// fast-mode halving.
func (s *Stage) adjust(chunk []byte) []byte {
	if s.clocks.Sync != clock.SyncAudio {
		s.publishBase(len(chunk))
		diff := s.clocks.Audio.Time() - s.clocks.Master()
		chunk = s.drift.Correct(chunk, diff)
	}
	if s.fast.Load() {
		chunk = halve(chunk, s.format.FrameBytes())
	}
	return chunk
}

func (s *Stage) publishBase(pending int) {
	s.clocks.Audio.Set(s.clockBase, pending)
}

// decodeChunk returns the next block of resampled audio and advances the
// audio clock past it. Decoded frames are drained before another packet is
// pulled.
func (s *Stage) decodeChunk() ([]byte, error) {
	for {
		for len(s.pending) > 0 {
			f := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			data, err := s.res.Resample(f)
			f.Free()
			if err != nil {
				s.log.Debug("resample failed", "error", err)
				continue
			}
			if len(data) == 0 {
				continue
			}
			if bps := s.format.BytesPerSecond(); bps > 0 {
				s.clockBase += float64(len(data)) / float64(bps)
			}
			return data, nil
		}

		pkt, err := s.src.Get(!s.eos.Load())
		if err != nil {
			return nil, errNoData
		}
		if pkt.IsFlush() {
			s.freePending()
			if err := s.dec.Flush(); err != nil {
				s.log.Warn("decoder flush failed", "error", err)
			}
			s.drift.Reset()
			continue
		}
		if pkt.PTS != media.NoPTS {
			s.clockBase = s.tb.Seconds(pkt.PTS)
		}
		frames, err := s.dec.Decode(pkt)
		if err != nil {
			for _, f := range frames {
				f.Free()
			}
			s.log.Debug("skipping undecodable packet", "error", err, "pts", pkt.PTS)
			continue
		}
		s.pending = append(s.pending, frames...)
	}
}

func (s *Stage) freePending() {
	for _, f := range s.pending {
		f.Free()
	}
	s.pending = s.pending[:0]
}

// Close releases frames still held by the stage.
func (s *Stage) Close() {
	s.freePending()
}
