package compositor

import "sync"

// Layout selects how the two instances share the window.
type Layout int

const (
	LayoutSplit Layout = iota
	LayoutSingle
)

func (l Layout) String() string {
	if l == LayoutSingle {
		return "single"
	}
	return "split"
}

// Audio sources.
const (
	SourcePrimary   = 1
	SourceSecondary = 2
)

// FlagState is a copy of the shared flags.
type FlagState struct {
	Mute   bool
	Source int
	Layout Layout
	Fast   bool
}

// Flags is the only state shared between the two instances. It is read by
// the audio device goroutine and written by the display goroutine.
type Flags struct {
	mu sync.Mutex
	st FlagState
}

// NewFlags returns the startup state: primary audio, split screen.
func NewFlags() *Flags {
	return &Flags{st: FlagState{Source: SourcePrimary, Layout: LayoutSplit}}
}

// Snapshot returns a consistent copy of every flag.
func (f *Flags) Snapshot() FlagState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

// ToggleMute flips mute and returns the new value.
func (f *Flags) ToggleMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Mute = !f.st.Mute
	return f.st.Mute
}

// SetSource routes audio to instance n (1 or 2). It reports whether the
// route changed.
func (f *Flags) SetSource(n int) bool {
	if n != SourcePrimary && n != SourceSecondary {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Source == n {
		return false
	}
	f.st.Source = n
	return true
}

// SetLayout selects l and reports whether it changed.
func (f *Flags) SetLayout(l Layout) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Layout == l {
		return false
	}
	f.st.Layout = l
	return true
}

// ToggleLayout switches between split and single.
func (f *Flags) ToggleLayout() Layout {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.st.Layout == LayoutSplit {
		f.st.Layout = LayoutSingle
	} else {
		f.st.Layout = LayoutSplit
	}
	return f.st.Layout
}

// ToggleFast flips fast mode and returns the new value.
func (f *Flags) ToggleFast() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.Fast = !f.st.Fast
	return f.st.Fast
}
