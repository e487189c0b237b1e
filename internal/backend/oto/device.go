// Package oto plays the compositor's audio through the system audio device
// with oto/v2. The device pulls samples from an io.Reader on its own
// goroutine.
package oto

import (
	"fmt"
	"io"
	"log/slog"

	otov2 "github.com/hajimehoshi/oto/v2"

	"github.com/zsiec/duet/media"
)

// Device is an opened audio output.
type Device struct {
	log    *slog.Logger
	ctx    *otov2.Context
	player otov2.Player
}

// bufferBytes is the device buffer for frames sample frames.
func bufferBytes(format media.AudioFormat, frames int) int {
	return frames * format.FrameBytes()
}

// Open starts playing src in format. The device buffer holds bufferFrames
// sample frames when the platform player allows sizing it. oto allows one
// context per process, so Open must be called at most once.
func Open(format media.AudioFormat, bufferFrames int, src io.Reader, log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx, ready, err := otov2.NewContext(format.SampleRate, format.Channels, otov2.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("oto: opening device: %w", err)
	}
	<-ready

	p := ctx.NewPlayer(src)
	if s, ok := p.(interface{ SetBufferSize(int) }); ok && bufferFrames > 0 {
		s.SetBufferSize(bufferBytes(format, bufferFrames))
	}
	p.Play()

	log = log.With("component", "audio-device")
	log.Info("audio device open", "rate", format.SampleRate, "channels", format.Channels, "buffer_frames", bufferFrames)
	return &Device{log: log, ctx: ctx, player: p}, nil
}

// Err reports a playback error from the device goroutine.
func (d *Device) Err() error { return d.player.Err() }

// Close stops playback.
func (d *Device) Close() error {
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("oto: closing player: %w", err)
	}
	return nil
}
