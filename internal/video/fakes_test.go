package video

import (
	"errors"
	"image"
	"sync"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

type fakeSurface struct{ w, h int }

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }

// fakeScreen runs posted tasks on a goroutine standing in for the display
// goroutine.
type fakeScreen struct {
	mu       sync.Mutex
	allocs   int
	releases int
	uploads  []float64
	allocErr error
	hold     chan struct{}
}

func (s *fakeScreen) Post(fn func()) {
	go func() {
		if s.hold != nil {
			<-s.hold
		}
		fn()
	}()
}

func (s *fakeScreen) Allocate(w, h int) (backend.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocs++
	if s.allocErr != nil {
		return nil, s.allocErr
	}
	return &fakeSurface{w, h}, nil
}

func (s *fakeScreen) Release(backend.Surface) {
	s.mu.Lock()
	s.releases++
	s.mu.Unlock()
}

func (s *fakeScreen) Upload(_ backend.Surface, p *media.Picture) error {
	s.mu.Lock()
	s.uploads = append(s.uploads, p.PTS)
	s.mu.Unlock()
	return nil
}

func (s *fakeScreen) Draw(backend.Surface, image.Rectangle) {}
func (s *fakeScreen) Clear() {}
func (s *fakeScreen) Present() {}
func (s *fakeScreen) Size() (int, int) { return 640, 480 }

func (s *fakeScreen) counts() (allocs, releases int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocs, s.releases
}

// partialData makes stubDecoder return its frame together with an error.
const partialData = 0xEE

// stubDecoder emits one frame per packet with the packet PTS.
type stubDecoder struct {
	mu      sync.Mutex
	flushes int
	freed   int
}

func (d *stubDecoder) Decode(pkt *media.Packet) ([]*media.RawFrame, error) {
	if len(pkt.Data) == 0 {
		return nil, errors.New("empty")
	}
	f := media.NewRawFrame(media.MediaVideo, pkt.Data, func() {
		d.mu.Lock()
		d.freed++
		d.mu.Unlock()
	})
	f.PTS = pkt.PTS
	f.Width, f.Height = 4, 2
	if pkt.Data[0] == partialData {
		return []*media.RawFrame{f}, backend.ErrDecode
	}
	return []*media.RawFrame{f}, nil
}

func (d *stubDecoder) Flush() error {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()
	return nil
}

func (d *stubDecoder) Close() error { return nil }

type stubConverter struct{ fail bool }

func (c stubConverter) Convert(f *media.RawFrame) (*media.Picture, error) {
	if c.fail {
		return nil, backend.ErrConversion
	}
	pic := media.NewPicture(f.Width, f.Height)
	for i := range pic.Pix {
		pic.Pix[i] = 200
	}
	return pic, nil
}

func (stubConverter) Close() error { return nil }
