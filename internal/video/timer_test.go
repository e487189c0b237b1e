package video

import (
	"math"
	"testing"
	"time"
)

func TestTimerFirstFrameUsesInitialDelay(t *testing.T) {
	t.Parallel()

	tm := NewTimer(100)
	// pts 0 gives a non-positive delay, so the initial 40ms is used.
	wait, delay := tm.Next(0, nil, 100)
	if math.Abs(delay-0.04) > 1e-9 {
		t.Errorf("delay: got %v, want 0.04", delay)
	}
	if wait != 40*time.Millisecond {
		t.Errorf("wait: got %v, want 40ms", wait)
	}
}

func TestTimerUsesPTSDelta(t *testing.T) {
	t.Parallel()

	tm := NewTimer(0)
	tm.Next(1.0, nil, 0)
	_, delay := tm.Next(1.5, nil, 0)
	if math.Abs(delay-0.5) > 1e-9 {
		t.Errorf("delay: got %v, want 0.5", delay)
	}
	// A jump beyond one second reuses the previous delay.
	_, delay = tm.Next(5.0, nil, 0)
	if math.Abs(delay-0.5) > 1e-9 {
		t.Errorf("delay after jump: got %v, want 0.5", delay)
	}
	// So does a backwards step.
	_, delay = tm.Next(4.0, nil, 0)
	if math.Abs(delay-0.5) > 1e-9 {
		t.Errorf("delay after backwards step: got %v, want 0.5", delay)
	}
}

func TestTimerSyncBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		master    float64
		wantDelay float64
	}{
		{"in sync", 1.04, 0.04},
		{"video leads doubles", 0.5, 0.08},
		{"video lags skips", 2.0, 0},
		{"beyond no-sync leaves delay", 1.04 - NoSyncThreshold - 1, 0.04},
		{"lag beyond no-sync leaves delay", 1.04 + NoSyncThreshold + 1, 0.04},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tm := NewTimer(0)
			tm.Next(1.0, nil, 0)
			master := func() float64 { return tt.master }
			_, delay := tm.Next(1.04, master, 0)
			if math.Abs(delay-tt.wantDelay) > 1e-9 {
				t.Errorf("delay: got %v, want %v", delay, tt.wantDelay)
			}
		})
	}
}

func TestTimerFloorsWait(t *testing.T) {
	t.Parallel()

	tm := NewTimer(0)
	// Wall time is far ahead of the frame timer.
	wait, _ := tm.Next(0.04, nil, 50)
	if wait != 10*time.Millisecond {
		t.Errorf("wait: got %v, want 10ms", wait)
	}
}

func TestTimerAccumulates(t *testing.T) {
	t.Parallel()

	tm := NewTimer(10)
	var wait time.Duration
	for i := 1; i <= 5; i++ {
		wait, _ = tm.Next(float64(i)*0.04, nil, 10)
	}
	// Five frames of 40ms from the same wall instant.
	if wait != 200*time.Millisecond {
		t.Errorf("wait: got %v, want 200ms", wait)
	}

	tm.Reset(20)
	wait, _ = tm.Next(0.24, nil, 20)
	if wait != 40*time.Millisecond {
		t.Errorf("wait after reset: got %v, want 40ms", wait)
	}
}
