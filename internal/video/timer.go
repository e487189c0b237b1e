package video

import (
	"math"
	"time"
)

const (
	// SyncThreshold is the minimum clock difference that triggers a frame
	// skip or repeat.
	SyncThreshold = 0.01
	// NoSyncThreshold disables correction for larger differences.
	NoSyncThreshold = 10.0
	// InitialDelay is the frame delay assumed before two frames are seen.
	InitialDelay = 40 * time.Millisecond
	// MinRefreshWait floors the wait between refreshes.
	MinRefreshWait = 0.010

	emptyRetry   = time.Millisecond
	noVideoRetry = 100 * time.Millisecond
)

// Timer computes when the next picture should be shown. It accumulates
// frame delays into a frame timer anchored to wall time so rounding never
// builds up drift.
type Timer struct {
	lastPTS    float64
	lastDelay  float64
	frameTimer float64
}

// NewTimer anchors the frame timer at now (seconds).
func NewTimer(now float64) *Timer {
	return &Timer{lastDelay: InitialDelay.Seconds(), frameTimer: now}
}

// Reset re-anchors the frame timer, used after a seek.
func (t *Timer) Reset(now float64) {
	t.frameTimer = now
}

// Next returns how long to wait before the picture after pts, and the
// frame delay it settled on. master is nil when video is the master clock.
func (t *Timer) Next(pts float64, master func() float64, now float64) (time.Duration, float64) {
	delay := pts - t.lastPTS
	if delay <= 0 || delay >= 1 {
		delay = t.lastDelay
	}
	t.lastDelay = delay
	t.lastPTS = pts

	if master != nil {
		diff := pts - master()
		threshold := math.Max(delay, SyncThreshold)
		if math.Abs(diff) < NoSyncThreshold {
			if diff <= -threshold {
				delay = 0
			} else if diff >= threshold {
				delay = 2 * delay
			}
		}
	}

	t.frameTimer += delay
	actual := t.frameTimer - now
	if actual < MinRefreshWait {
		actual = MinRefreshWait
	}
	return time.Duration(actual*1000+0.5) * time.Millisecond, delay
}

func seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
