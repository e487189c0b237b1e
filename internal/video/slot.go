package video

import (
	"fmt"
	"sync"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/media"
)

// Slot is the single-entry presentation buffer between the convert stage
// and the display goroutine. The display surface backing the slot is
// created on the display goroutine: the convert stage posts an allocation
// task and waits for it to complete.
type Slot struct {
	mu        sync.Mutex
	cond      *sync.Cond
	pic       *media.Picture
	full      bool
	surface   backend.Surface
	allocated bool
	allocErr  error
	aborted   bool
}

// NewSlot returns an empty slot with no surface.
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put waits for the slot to be free, makes sure a surface of the picture's
// size exists, and publishes pic for display.
func (s *Slot) Put(pic *media.Picture, screen backend.Screen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.full && !s.aborted {
		s.cond.Wait()
	}
	if s.aborted {
		return ErrAborted
	}

	if !s.fits(pic) {
		s.allocated = false
		s.allocErr = nil
		w, h := pic.Width, pic.Height
		s.mu.Unlock()
		screen.Post(func() { s.allocate(screen, w, h) })
		s.mu.Lock()
		for !s.allocated && !s.aborted {
			s.cond.Wait()
		}
		if s.aborted {
			return ErrAborted
		}
		if s.allocErr != nil {
			return fmt.Errorf("surface %dx%d: %w: %w", w, h, backend.ErrAllocFailed, s.allocErr)
		}
	}

	s.pic = pic
	s.full = true
	s.cond.Broadcast()
	return nil
}

func (s *Slot) fits(pic *media.Picture) bool {
	if s.surface == nil {
		return false
	}
	w, h := s.surface.Size()
	return w == pic.Width && h == pic.Height
}

// allocate runs on the display goroutine.
func (s *Slot) allocate(screen backend.Screen, w, h int) {
	s.mu.Lock()
	old := s.surface
	s.surface = nil
	s.mu.Unlock()
	if old != nil {
		screen.Release(old)
	}

	surf, err := screen.Allocate(w, h)

	s.mu.Lock()
	s.surface = surf
	s.allocErr = err
	s.allocated = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Peek returns the waiting picture, if any.
func (s *Slot) Peek() (*media.Picture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		return nil, false
	}
	return s.pic, true
}

// Upload copies the waiting picture into the surface. Display goroutine
// only.
func (s *Slot) Upload(screen backend.Screen) error {
	s.mu.Lock()
	pic, surf := s.pic, s.surface
	s.mu.Unlock()
	if pic == nil || surf == nil {
		return nil
	}
	return screen.Upload(surf, pic)
}

// Release frees the slot for the next picture.
func (s *Slot) Release() {
	s.mu.Lock()
	s.pic = nil
	s.full = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Surface returns the surface holding the last displayed picture.
func (s *Slot) Surface() backend.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Close releases the surface. Display goroutine only.
func (s *Slot) Close(screen backend.Screen) {
	s.mu.Lock()
	surf := s.surface
	s.surface = nil
	s.mu.Unlock()
	if surf != nil {
		screen.Release(surf)
	}
}

// Abort releases any goroutine waiting on the slot.
func (s *Slot) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
