package player

// State is the lifecycle phase of an Instance.
type State int32

const (
	StateOpening State = iota
	StateDemuxing
	StateSeeking
	StateDraining
	StateQuit
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateDemuxing:
		return "demuxing"
	case StateSeeking:
		return "seeking"
	case StateDraining:
		return "draining"
	case StateQuit:
		return "quit"
	default:
		return "unknown"
	}
}
