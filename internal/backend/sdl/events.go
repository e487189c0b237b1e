package sdl

import (
	sdl2 "github.com/veandco/go-sdl2/sdl"

	"github.com/zsiec/duet/internal/compositor"
)

// waitTimeout bounds one event wait in milliseconds so stop is noticed
// even without input.
const waitTimeout = 50

// Handler receives user commands and redraw requests on the display
// goroutine.
type Handler interface {
	Handle(cmd compositor.Command)
	Redraw()
}

var keys = map[sdl2.Keycode]compositor.Command{
	sdl2.K_LEFT:   compositor.CmdSeekBack10,
	sdl2.K_RIGHT:  compositor.CmdSeekForward10,
	sdl2.K_UP:     compositor.CmdSeekForward60,
	sdl2.K_DOWN:   compositor.CmdSeekBack60,
	sdl2.K_w:      compositor.CmdGray,
	sdl2.K_r:      compositor.CmdRed,
	sdl2.K_g:      compositor.CmdGreen,
	sdl2.K_b:      compositor.CmdBlue,
	sdl2.K_h:      compositor.CmdTint,
	sdl2.K_c:      compositor.CmdClearEffect,
	sdl2.K_x:      compositor.CmdSnapshot,
	sdl2.K_1:      compositor.CmdSourcePrimary,
	sdl2.K_2:      compositor.CmdSourceSecondary,
	sdl2.K_3:      compositor.CmdMute,
	sdl2.K_o:      compositor.CmdLayoutSingle,
	sdl2.K_m:      compositor.CmdLayoutSplit,
	sdl2.K_l:      compositor.CmdLayoutToggle,
	sdl2.K_f:      compositor.CmdFast,
	sdl2.K_q:      compositor.CmdQuit,
	sdl2.K_ESCAPE: compositor.CmdQuit,
}

// KeyCommand maps a key to its command, or CmdNone.
func KeyCommand(k sdl2.Keycode) compositor.Command {
	return keys[k]
}

// Loop runs posted tasks and dispatches input until stop is closed. Tasks
// posted before stop closed still run before Loop returns.
func (w *Window) Loop(stop <-chan struct{}, h Handler) {
	for {
		w.runTasks()
		select {
		case <-stop:
			w.runTasks()
			return
		default:
		}

		for ev := sdl2.WaitEventTimeout(waitTimeout); ev != nil; ev = sdl2.PollEvent() {
			w.dispatch(ev, h)
		}
	}
}

func (w *Window) dispatch(ev sdl2.Event, h Handler) {
	switch e := ev.(type) {
	case *sdl2.QuitEvent:
		h.Handle(compositor.CmdQuit)
	case *sdl2.KeyboardEvent:
		if e.Type != sdl2.KEYDOWN || e.Repeat != 0 {
			return
		}
		if cmd := KeyCommand(e.Keysym.Sym); cmd != compositor.CmdNone {
			w.log.Debug("key", "command", cmd)
			h.Handle(cmd)
		}
	case *sdl2.WindowEvent:
		switch e.Event {
		case sdl2.WINDOWEVENT_EXPOSED, sdl2.WINDOWEVENT_SIZE_CHANGED:
			h.Redraw()
		}
	}
}
