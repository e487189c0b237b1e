// Package clock holds the per-instance playback clocks and the master
// clock selector used to synchronize audio and video. Every read is
// lock-free so the audio callback and the display refresh never wait on a
// pipeline goroutine.
package clock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// SyncType selects which clock is the master reference.
type SyncType int

const (
	SyncVideo SyncType = iota
	SyncAudio
	SyncExternal
)

func (s SyncType) String() string {
	switch s {
	case SyncAudio:
		return "audio"
	case SyncExternal:
		return "external"
	default:
		return "video"
	}
}

// ParseSyncType parses "audio", "video" or "external".
func ParseSyncType(s string) (SyncType, error) {
	switch s {
	case "video", "":
		return SyncVideo, nil
	case "audio":
		return SyncAudio, nil
	case "external", "ext":
		return SyncExternal, nil
	}
	return SyncVideo, fmt.Errorf("clock: unknown sync type %q", s)
}

type audioState struct {
	base         float64
	pendingBytes int
}

// Audio tracks the presentation time of audio handed to the device. Base
// is the time at the end of the most recently decoded chunk; pending bytes
// are decoded but not yet consumed.
type Audio struct {
	bytesPerSecond float64
	st             atomic.Pointer[audioState]
}

// NewAudio returns an audio clock for a stream of the given byte rate.
func NewAudio(bytesPerSecond int) *Audio {
	a := &Audio{bytesPerSecond: float64(bytesPerSecond)}
	a.st.Store(&audioState{})
	return a
}

// Set publishes a new base time and pending byte count.
func (a *Audio) Set(base float64, pendingBytes int) {
	a.st.Store(&audioState{base: base, pendingBytes: pendingBytes})
}

// Base returns the time at the end of the last decoded chunk.
func (a *Audio) Base() float64 {
	return a.st.Load().base
}

// Time returns the time of the sample currently reaching the device.
func (a *Audio) Time() float64 {
	st := a.st.Load()
	if a.bytesPerSecond <= 0 {
		return st.base
	}
	return st.base - float64(st.pendingBytes)/a.bytesPerSecond
}

type videoState struct {
	pts   float64
	setAt time.Time
}

// Video tracks the presentation time of the picture on screen.
type Video struct {
	now func() time.Time
	st  atomic.Pointer[videoState]
}

// NewVideo returns a video clock reading wall time from now (time.Now if
// nil).
func NewVideo(now func() time.Time) *Video {
	if now == nil {
		now = time.Now
	}
	v := &Video{now: now}
	v.st.Store(&videoState{setAt: now()})
	return v
}

// Set records that the picture with pts became current now.
func (v *Video) Set(pts float64) {
	v.st.Store(&videoState{pts: pts, setAt: v.now()})
}

// Time returns the displayed pts plus the wall time elapsed since it was
// shown.
func (v *Video) Time() float64 {
	st := v.st.Load()
	return st.pts + v.now().Sub(st.setAt).Seconds()
}

// External is a wall clock anchored to a stream position.
type External struct {
	now func() time.Time
	st  atomic.Pointer[videoState]
}

// NewExternal returns an external clock anchored at 0 now.
func NewExternal(now func() time.Time) *External {
	if now == nil {
		now = time.Now
	}
	e := &External{now: now}
	e.st.Store(&videoState{setAt: now()})
	return e
}

// Anchor makes the clock read pos at the current instant.
func (e *External) Anchor(pos float64) {
	e.st.Store(&videoState{pts: pos, setAt: e.now()})
}

// Time returns the anchored position plus elapsed wall time.
func (e *External) Time() float64 {
	st := e.st.Load()
	return st.pts + e.now().Sub(st.setAt).Seconds()
}

// Set groups the three clocks of one playback instance.
type Set struct {
	Sync     SyncType
	Audio    *Audio
	Video    *Video
	External *External
}

// NewSet builds a clock set. now defaults to time.Now.
func NewSet(sync SyncType, bytesPerSecond int, now func() time.Time) *Set {
	return &Set{
		Sync:     sync,
		Audio:    NewAudio(bytesPerSecond),
		Video:    NewVideo(now),
		External: NewExternal(now),
	}
}

// Master returns the current time of the selected master clock.
func (s *Set) Master() float64 {
	switch s.Sync {
	case SyncAudio:
		return s.Audio.Time()
	case SyncExternal:
		return s.External.Time()
	default:
		return s.Video.Time()
	}
}
