package compositor

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/video"
	"github.com/zsiec/duet/media"
)

type fakeSurface struct{ w, h int }

func (s fakeSurface) Size() (int, int) { return s.w, s.h }

type drawCall struct {
	surf backend.Surface
	rect image.Rectangle
}

type fakeScreen struct {
	mu       sync.Mutex
	draws    []drawCall
	presents int
}

func (s *fakeScreen) Post(fn func()) { go fn() }
func (s *fakeScreen) Allocate(w, h int) (backend.Surface, error) {
	return fakeSurface{w, h}, nil
}
func (s *fakeScreen) Release(backend.Surface) {}
func (s *fakeScreen) Upload(backend.Surface, *media.Picture) error {
	return nil
}

func (s *fakeScreen) Draw(surf backend.Surface, r image.Rectangle) {
	s.mu.Lock()
	s.draws = append(s.draws, drawCall{surf, r})
	s.mu.Unlock()
}

func (s *fakeScreen) Clear() {
	s.mu.Lock()
	s.draws = nil
	s.mu.Unlock()
}

func (s *fakeScreen) Present() {
	s.mu.Lock()
	s.presents++
	s.mu.Unlock()
}

func (s *fakeScreen) Size() (int, int) { return 640, 480 }

func (s *fakeScreen) lastDraws() []drawCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]drawCall(nil), s.draws...)
}

type fakeInstance struct {
	name  string
	small bool
	surf  backend.Surface

	mu        sync.Mutex
	fills     int
	lastMute  bool
	seeks     []float64
	effect    video.Effect
	fast      bool
	snapshots int
	refreshes int
	runErr    error

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func newFakeInstance(name string, small bool) *fakeInstance {
	return &fakeInstance{
		name:  name,
		small: small,
		surf:  fakeSurface{320, 240},
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (f *fakeInstance) Name() string { return f.name }
func (f *fakeInstance) Small() bool  { return f.small }

func (f *fakeInstance) Run(ctx context.Context) error {
	defer close(f.done)
	f.mu.Lock()
	err := f.runErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	select {
	case <-f.quit:
	case <-ctx.Done():
	}
	return nil
}

func (f *fakeInstance) Quit() { f.quitOnce.Do(func() { close(f.quit) }) }

func (f *fakeInstance) Done() <-chan struct{} { return f.done }

func (f *fakeInstance) FillAudio(p []byte, mute bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills++
	f.lastMute = mute
	if !mute {
		for i := range p {
			p[i] = f.name[0]
		}
	}
}

func (f *fakeInstance) MasterClock() float64 { return 0 }

func (f *fakeInstance) RequestSeek(incr float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, incr)
	return true
}

func (f *fakeInstance) SetFast(on bool) {
	f.mu.Lock()
	f.fast = on
	f.mu.Unlock()
}

func (f *fakeInstance) SetEffect(e video.Effect) {
	f.mu.Lock()
	f.effect = e
	f.mu.Unlock()
}

func (f *fakeInstance) Effect() video.Effect {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.effect
}

func (f *fakeInstance) RequestSnapshot() bool {
	f.mu.Lock()
	f.snapshots++
	f.mu.Unlock()
	return true
}

func (f *fakeInstance) Refresh() (time.Duration, bool) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return 5 * time.Millisecond, true
}

func (f *fakeInstance) Surface() backend.Surface { return f.surf }

func (f *fakeInstance) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}
