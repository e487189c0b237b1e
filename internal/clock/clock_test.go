package clock

import (
	"math"
	"sync"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAudioClock(t *testing.T) {
	t.Parallel()

	a := NewAudio(48000 * 4)
	a.Set(10, 48000*4/2)
	if got := a.Time(); !near(got, 9.5) {
		t.Errorf("Time: got %v, want 9.5", got)
	}
	a.Set(10, 0)
	if got := a.Time(); !near(got, 10) {
		t.Errorf("Time: got %v, want 10", got)
	}
	if got := a.Base(); !near(got, 10) {
		t.Errorf("Base: got %v, want 10", got)
	}
}

func TestVideoClockAdvancesWithWallTime(t *testing.T) {
	t.Parallel()

	fn := &fakeNow{t: time.Unix(1000, 0)}
	v := NewVideo(fn.Now)
	v.Set(3)
	fn.Advance(250 * time.Millisecond)
	if got := v.Time(); !near(got, 3.25) {
		t.Errorf("Time: got %v, want 3.25", got)
	}
}

func TestExternalClockAnchor(t *testing.T) {
	t.Parallel()

	fn := &fakeNow{t: time.Unix(1000, 0)}
	e := NewExternal(fn.Now)
	fn.Advance(2 * time.Second)
	if got := e.Time(); !near(got, 2) {
		t.Errorf("Time: got %v, want 2", got)
	}
	e.Anchor(60)
	fn.Advance(time.Second)
	if got := e.Time(); !near(got, 61) {
		t.Errorf("Time after anchor: got %v, want 61", got)
	}
}

func TestMasterSelection(t *testing.T) {
	t.Parallel()

	fn := &fakeNow{t: time.Unix(0, 0)}
	tests := []struct {
		sync SyncType
		want float64
	}{
		{SyncAudio, 1},
		{SyncVideo, 2},
		{SyncExternal, 3},
	}
	for _, tt := range tests {
		s := NewSet(tt.sync, 1000, fn.Now)
		s.Audio.Set(1, 0)
		s.Video.Set(2)
		s.External.Anchor(3)
		if got := s.Master(); !near(got, tt.want) {
			t.Errorf("Master(%v): got %v, want %v", tt.sync, got, tt.want)
		}
	}
}

func TestParseSyncType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    SyncType
		wantErr bool
	}{
		{"audio", SyncAudio, false},
		{"video", SyncVideo, false},
		{"", SyncVideo, false},
		{"external", SyncExternal, false},
		{"ext", SyncExternal, false},
		{"wall", SyncVideo, true},
	}
	for _, tt := range tests {
		got, err := ParseSyncType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSyncType(%q) error: got %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSyncType(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	t.Parallel()

	s := NewSet(SyncAudio, 1000, nil)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Audio.Set(float64(i), 0)
			s.Video.Set(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.Master()
			_ = s.Video.Time()
		}
	}()
	wg.Wait()
}
