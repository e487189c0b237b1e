// Package ffmpeg implements the container, codec and conversion contracts
// on top of the FFmpeg libraries through go-astiav.
package ffmpeg

import (
	"context"
	"log/slog"
	"strings"

	"github.com/asticode/go-astiav"

	"github.com/zsiec/duet/media"
)

// SetLogger routes FFmpeg's own log output to log. Messages below warning
// level are dropped unless debug is set.
func SetLogger(log *slog.Logger, debug bool) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "ffmpeg")
	level := astiav.LogLevelWarning
	if debug {
		level = astiav.LogLevelVerbose
	}
	astiav.SetLogLevel(level)
	astiav.SetLogCallback(func(_ astiav.Classer, l astiav.LogLevel, _, msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" {
			return
		}
		log.Log(context.Background(), slogLevel(l), msg)
	})
}

func slogLevel(l astiav.LogLevel) slog.Level {
	switch {
	case l <= astiav.LogLevelError:
		return slog.LevelError
	case l <= astiav.LogLevelWarning:
		return slog.LevelWarn
	case l <= astiav.LogLevelInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func rational(r astiav.Rational) media.Rational {
	return media.Rational{Num: r.Num(), Den: r.Den()}
}

func fromAV(ts int64) int64 {
	if ts == astiav.NoPtsValue {
		return media.NoPTS
	}
	return ts
}

func toAV(ts int64) int64 {
	if ts == media.NoPTS {
		return astiav.NoPtsValue
	}
	return ts
}
