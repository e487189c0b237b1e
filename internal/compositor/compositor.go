// Package compositor runs two playback instances side by side on one
// display and one audio device. It owns the shared flags, routes device
// audio to the selected instance, schedules each instance's presentation
// timer on the display goroutine, and turns user commands into instance
// actions.
package compositor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/video"
)

// FirstRefresh is the delay before an instance's first presentation tick.
const FirstRefresh = 40 * time.Millisecond

// Instance is the part of a playback instance the compositor drives.
type Instance interface {
	Name() string
	Small() bool
	Run(ctx context.Context) error
	Quit()
	Done() <-chan struct{}

	FillAudio(p []byte, mute bool)
	MasterClock() float64
	RequestSeek(incr float64) bool
	SetFast(on bool)
	SetEffect(e video.Effect)
	Effect() video.Effect
	RequestSnapshot() bool

	Refresh() (time.Duration, bool)
	Surface() backend.Surface
}

// Compositor coordinates the primary and secondary instance.
type Compositor struct {
	log       *slog.Logger
	screen    backend.Screen
	primary   Instance
	secondary Instance
	flags     *Flags

	audioMu sync.Mutex
	discard []byte

	quitOnce sync.Once
	quit     chan struct{}
}

// New returns a compositor for two opened instances.
func New(screen backend.Screen, primary, secondary Instance, log *slog.Logger) *Compositor {
	if log == nil {
		log = slog.Default()
	}
	return &Compositor{
		log:       log.With("component", "compositor"),
		screen:    screen,
		primary:   primary,
		secondary: secondary,
		flags:     NewFlags(),
		quit:      make(chan struct{}),
	}
}

// Flags exposes the shared flags.
func (c *Compositor) Flags() *Flags { return c.flags }

// Quitting is closed once the user asked to quit.
func (c *Compositor) Quitting() <-chan struct{} { return c.quit }

func (c *Compositor) instances() []Instance {
	return []Instance{c.primary, c.secondary}
}

// active returns the instance owning the audio route, then the other one.
func (c *Compositor) active(st FlagState) (Instance, Instance) {
	if st.Source == SourceSecondary {
		return c.secondary, c.primary
	}
	return c.primary, c.secondary
}

// Run starts both instances and their presentation timers. A fatal error
// in one instance does not stop the other. Run returns when both have
// stopped, joining their errors.
func (c *Compositor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	var g errgroup.Group
	errs := make([]error, 2)
	for n, inst := range c.instances() {
		n, inst := n, inst
		g.Go(func() error {
			errs[n] = inst.Run(ctx)
			return nil
		})
		c.schedule(ctx, inst, FirstRefresh)
	}
	g.Wait()
	return errors.Join(errs...)
}

// schedule arms inst's presentation timer. The tick itself runs on the
// display goroutine.
func (c *Compositor) schedule(ctx context.Context, inst Instance, d time.Duration) {
	time.AfterFunc(d, func() {
		if ctx.Err() != nil {
			return
		}
		c.screen.Post(func() { c.tick(ctx, inst) })
	})
}

func (c *Compositor) tick(ctx context.Context, inst Instance) {
	select {
	case <-inst.Done():
		c.Redraw()
		return
	default:
	}
	wait, shown := inst.Refresh()
	if shown {
		c.Redraw()
	}
	c.schedule(ctx, inst, wait)
}

// Read fills p for the audio device. The instance owning the audio route
// fills p; the other decodes into a scratch buffer so its clock and queue
// keep moving. It never returns an error.
func (c *Compositor) Read(p []byte) (int, error) {
	st := c.flags.Snapshot()
	audible, silent := c.active(st)

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	if cap(c.discard) < len(p) {
		c.discard = make([]byte, len(p))
	}
	silent.FillAudio(c.discard[:len(p)], true)
	audible.FillAudio(p, st.Mute)
	return len(p), nil
}

// Handle applies a user command. Display goroutine only.
func (c *Compositor) Handle(cmd Command) {
	st := c.flags.Snapshot()
	active, _ := c.active(st)
	log := c.log.With("command", cmd)

	if incr, ok := cmd.seekIncrement(); ok {
		if active.RequestSeek(incr) {
			log.Debug("seek requested", "instance", active.Name(), "from", active.MasterClock())
		}
		return
	}
	if e, ok := cmd.effect(); ok {
		next := c.primary.Effect().Toggle(e)
		for _, inst := range c.instances() {
			inst.SetEffect(next)
		}
		log.Info("color effect", "effect", next)
		return
	}

	switch cmd {
	case CmdClearEffect:
		for _, inst := range c.instances() {
			inst.SetEffect(video.EffectNone)
		}
	case CmdSnapshot:
		if !active.RequestSnapshot() {
			log.Warn("snapshot unavailable", "instance", active.Name())
		}
	case CmdSourcePrimary:
		if c.flags.SetSource(SourcePrimary) {
			log.Info("audio source", "instance", c.primary.Name())
			c.Redraw()
		}
	case CmdSourceSecondary:
		if c.flags.SetSource(SourceSecondary) {
			log.Info("audio source", "instance", c.secondary.Name())
			c.Redraw()
		}
	case CmdMute:
		log.Info("mute", "on", c.flags.ToggleMute())
	case CmdLayoutSingle:
		if c.flags.SetLayout(LayoutSingle) {
			c.Redraw()
		}
	case CmdLayoutSplit:
		if c.flags.SetLayout(LayoutSplit) {
			c.Redraw()
		}
	case CmdLayoutToggle:
		c.flags.ToggleLayout()
		c.Redraw()
	case CmdFast:
		on := c.flags.ToggleFast()
		for _, inst := range c.instances() {
			inst.SetFast(on)
		}
		log.Info("fast mode", "on", on)
	case CmdQuit:
		c.Quit()
	}
}

// Quit stops both instances.
func (c *Compositor) Quit() {
	c.quitOnce.Do(func() {
		c.log.Info("quitting")
		close(c.quit)
		for _, inst := range c.instances() {
			inst.Quit()
		}
	})
}

// Redraw composes the current pictures of both instances. Display
// goroutine only.
func (c *Compositor) Redraw() {
	st := c.flags.Snapshot()
	active, _ := c.active(st)
	sw, sh := c.screen.Size()

	c.screen.Clear()
	for _, inst := range c.instances() {
		surf := inst.Surface()
		if surf == nil {
			continue
		}
		select {
		case <-inst.Done():
			continue
		default:
		}
		w, h := surf.Size()
		rect, ok := Placement(st.Layout, inst.Small(), inst == active, sw, sh, aspectOf(w, h))
		if ok {
			c.screen.Draw(surf, rect)
		}
	}
	c.screen.Present()
}
