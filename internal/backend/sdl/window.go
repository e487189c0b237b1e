// Package sdl is the display backend: one SDL window with a renderer,
// streaming RGBA textures as surfaces, a task queue that runs posted work
// on the display goroutine, and the keyboard map.
//
// Every SDL call happens on the goroutine that created the Window, which
// must be locked to the main OS thread.
package sdl

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	sdl2 "github.com/veandco/go-sdl2/sdl"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// Window is an SDL window and renderer implementing backend.Screen.
type Window struct {
	log *slog.Logger
	win *sdl2.Window
	ren *sdl2.Renderer

	mu    sync.Mutex
	tasks []func()
}

var _ backend.Screen = (*Window)(nil)

// Open initializes SDL video and creates a resizable window.
func Open(title string, width, height int, log *slog.Logger) (*Window, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := sdl2.Init(sdl2.INIT_VIDEO | sdl2.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("sdl: init: %w", err)
	}
	sdl2.SetHint(sdl2.HINT_RENDER_SCALE_QUALITY, "linear")

	win, err := sdl2.CreateWindow(title, sdl2.WINDOWPOS_UNDEFINED, sdl2.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl2.WINDOW_SHOWN|sdl2.WINDOW_RESIZABLE)
	if err != nil {
		sdl2.Quit()
		return nil, fmt.Errorf("sdl: creating window: %w", err)
	}
	ren, err := sdl2.CreateRenderer(win, -1, sdl2.RENDERER_ACCELERATED)
	if err != nil {
		log.Warn("accelerated renderer unavailable, using software", "error", err)
		ren, err = sdl2.CreateRenderer(win, -1, sdl2.RENDERER_SOFTWARE)
	}
	if err != nil {
		win.Destroy()
		sdl2.Quit()
		return nil, fmt.Errorf("sdl: creating renderer: %w", err)
	}

	w := &Window{log: log.With("component", "display"), win: win, ren: ren}
	w.Clear()
	w.Present()
	return w, nil
}

// Close destroys the renderer and window and shuts SDL down.
func (w *Window) Close() {
	w.runTasks()
	w.ren.Destroy()
	w.win.Destroy()
	sdl2.Quit()
}

// Post queues fn for the display goroutine and wakes its event wait. It
// is safe from any goroutine.
func (w *Window) Post(fn func()) {
	w.mu.Lock()
	w.tasks = append(w.tasks, fn)
	w.mu.Unlock()
	if _, err := sdl2.PushEvent(&sdl2.UserEvent{Type: sdl2.USEREVENT}); err != nil {
		w.log.Debug("wake event dropped", "error", err)
	}
}

func (w *Window) runTasks() {
	w.mu.Lock()
	tasks := w.tasks
	w.tasks = nil
	w.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

// surface is a streaming texture sized for one picture.
type surface struct {
	tex  *sdl2.Texture
	w, h int
}

func (s *surface) Size() (int, int) { return s.w, s.h }

// Allocate creates a streaming RGBA texture.
func (w *Window) Allocate(width, height int) (backend.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("sdl: invalid surface size %dx%d", width, height)
	}
	tex, err := w.ren.CreateTexture(uint32(sdl2.PIXELFORMAT_RGBA32), sdl2.TEXTUREACCESS_STREAMING, int32(width), int32(height))
	if err != nil {
		return nil, fmt.Errorf("sdl: creating texture: %w", err)
	}
	return &surface{tex: tex, w: width, h: height}, nil
}

// Release destroys a surface from Allocate.
func (w *Window) Release(s backend.Surface) {
	if sf, ok := s.(*surface); ok && sf.tex != nil {
		sf.tex.Destroy()
		sf.tex = nil
	}
}

// Upload copies p into s row by row, honoring both strides.
func (w *Window) Upload(s backend.Surface, p *media.Picture) error {
	sf, ok := s.(*surface)
	if !ok || sf.tex == nil {
		return errors.New("sdl: upload to unknown surface")
	}
	if p.Width != sf.w || p.Height != sf.h {
		return fmt.Errorf("sdl: picture %dx%d does not fit surface %dx%d", p.Width, p.Height, sf.w, sf.h)
	}
	pixels, pitch, err := sf.tex.Lock(nil)
	if err != nil {
		return fmt.Errorf("sdl: locking texture: %w", err)
	}
	defer sf.tex.Unlock()
	copyRows(pixels, pitch, p)
	return nil
}

func copyRows(dst []byte, pitch int, p *media.Picture) {
	row := p.Width * 4
	for y := 0; y < p.Height; y++ {
		copy(dst[y*pitch:y*pitch+row], p.Pix[y*p.Stride:y*p.Stride+row])
	}
}

// Draw copies s into dst on the back buffer.
func (w *Window) Draw(s backend.Surface, dst image.Rectangle) {
	sf, ok := s.(*surface)
	if !ok || sf.tex == nil {
		return
	}
	rect := sdl2.Rect{X: int32(dst.Min.X), Y: int32(dst.Min.Y), W: int32(dst.Dx()), H: int32(dst.Dy())}
	if err := w.ren.Copy(sf.tex, nil, &rect); err != nil {
		w.log.Debug("draw failed", "error", err)
	}
}

// Clear paints the back buffer black.
func (w *Window) Clear() {
	w.ren.SetDrawColor(0, 0, 0, 255)
	w.ren.Clear()
}

// Present flips the back buffer.
func (w *Window) Present() { w.ren.Present() }

// Size returns the drawable size in pixels.
func (w *Window) Size() (int, int) {
	width, height, err := w.ren.GetOutputSize()
	if err != nil {
		ww, wh := w.win.GetSize()
		return int(ww), int(wh)
	}
	return int(width), int(height)
}
