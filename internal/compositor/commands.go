package compositor

import "github.com/zsiec/duet/internal/video"

// Command is a user action dispatched by the display backend.
type Command int

const (
	CmdNone Command = iota
	CmdSeekBack10
	CmdSeekForward10
	CmdSeekForward60
	CmdSeekBack60
	CmdGray
	CmdRed
	CmdGreen
	CmdBlue
	CmdTint
	CmdClearEffect
	CmdSnapshot
	CmdSourcePrimary
	CmdSourceSecondary
	CmdMute
	CmdLayoutSingle
	CmdLayoutSplit
	CmdLayoutToggle
	CmdFast
	CmdQuit
)

var commandNames = map[Command]string{
	CmdNone:            "none",
	CmdSeekBack10:      "seek-10",
	CmdSeekForward10:   "seek+10",
	CmdSeekForward60:   "seek+60",
	CmdSeekBack60:      "seek-60",
	CmdGray:            "gray",
	CmdRed:             "red",
	CmdGreen:           "green",
	CmdBlue:            "blue",
	CmdTint:            "tint",
	CmdClearEffect:     "clear-effect",
	CmdSnapshot:        "snapshot",
	CmdSourcePrimary:   "source-1",
	CmdSourceSecondary: "source-2",
	CmdMute:            "mute",
	CmdLayoutSingle:    "single",
	CmdLayoutSplit:     "split",
	CmdLayoutToggle:    "toggle-layout",
	CmdFast:            "fast",
	CmdQuit:            "quit",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return "unknown"
}

// seekIncrement returns the seek offset in seconds for seek commands.
func (c Command) seekIncrement() (float64, bool) {
	switch c {
	case CmdSeekBack10:
		return -10, true
	case CmdSeekForward10:
		return 10, true
	case CmdSeekForward60:
		return 60, true
	case CmdSeekBack60:
		return -60, true
	}
	return 0, false
}

// effect returns the color effect selected by effect commands.
func (c Command) effect() (video.Effect, bool) {
	switch c {
	case CmdGray:
		return video.EffectGray, true
	case CmdRed:
		return video.EffectRed, true
	case CmdGreen:
		return video.EffectGreen, true
	case CmdBlue:
		return video.EffectBlue, true
	case CmdTint:
		return video.EffectTint, true
	}
	return video.EffectNone, false
}
