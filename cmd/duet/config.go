package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zsiec/duet/internal/backend"
	"github.com/zsiec/duet/internal/backend/ffmpeg"
	"github.com/zsiec/duet/internal/backend/tsfile"
	"github.com/zsiec/duet/internal/clock"
	"github.com/zsiec/duet/internal/video"
	"github.com/zsiec/duet/media"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// Demuxer names accepted by --demuxer.
const (
	demuxerAuto   = "auto"
	demuxerTS     = "ts"
	demuxerFFmpeg = "ffmpeg"
)

// options holds the raw flag values.
type options struct {
	width          int
	height         int
	sync           string
	demuxer        string
	sampleRate     int
	channels       int
	snapshotDir    string
	snapshotFormat string
}

// config is the validated form of options plus positional arguments.
type config struct {
	primary        string
	secondary      string
	width          int
	height         int
	sync           clock.SyncType
	demuxer        string
	format         media.AudioFormat
	snapshotDir    string
	snapshotFormat string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "duet PRIMARY SECONDARY [WIDTH HEIGHT]",
		Short: "Play two media files side by side",
		Long: `duet plays two media files in one window with a shared audio device.
Audio follows one file at a time; the keyboard switches the audio source,
seeks, applies color effects and changes the layout.`,
		Version:       version,
		Args:          cobra.RangeArgs(2, 4),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(opts, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.width, "width", defaultWidth, "Window width (0 for default)")
	f.IntVar(&opts.height, "height", defaultHeight, "Window height (0 for default)")
	f.StringVar(&opts.sync, "sync", envOr("DUET_SYNC", "video"), "Master clock: audio, video or external")
	f.StringVar(&opts.demuxer, "demuxer", envOr("DUET_DEMUXER", demuxerAuto), "Container reader: auto, ts or ffmpeg")
	f.IntVar(&opts.sampleRate, "sample-rate", 48000, "Audio device sample rate")
	f.IntVar(&opts.channels, "channels", 2, "Audio device channels (1 or 2)")
	f.StringVar(&opts.snapshotDir, "snapshot-dir", envOr("DUET_SNAPSHOT_DIR", "."), "Directory for snapshots")
	f.StringVar(&opts.snapshotFormat, "snapshot-format", video.FormatPNG, "Snapshot format: png or bmp")

	return cmd
}

func buildConfig(opts *options, args []string) (*config, error) {
	if len(args) != 2 && len(args) != 4 {
		return nil, fmt.Errorf("expected PRIMARY SECONDARY [WIDTH HEIGHT], got %d arguments", len(args))
	}
	cfg := &config{
		primary:        args[0],
		secondary:      args[1],
		width:          orDefault(opts.width, defaultWidth),
		height:         orDefault(opts.height, defaultHeight),
		demuxer:        strings.ToLower(opts.demuxer),
		snapshotDir:    opts.snapshotDir,
		snapshotFormat: strings.ToLower(opts.snapshotFormat),
	}
	if opts.width < 0 || opts.height < 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", opts.width, opts.height)
	}
	if len(args) == 4 {
		w, err := strconv.Atoi(args[2])
		if err != nil || w < 0 {
			return nil, fmt.Errorf("invalid width %q", args[2])
		}
		h, err := strconv.Atoi(args[3])
		if err != nil || h < 0 {
			return nil, fmt.Errorf("invalid height %q", args[3])
		}
		cfg.width = orDefault(w, defaultWidth)
		cfg.height = orDefault(h, defaultHeight)
	}

	sync, err := clock.ParseSyncType(strings.ToLower(opts.sync))
	if err != nil {
		return nil, err
	}
	cfg.sync = sync

	switch cfg.demuxer {
	case demuxerAuto, demuxerTS, demuxerFFmpeg:
	default:
		return nil, fmt.Errorf("unknown demuxer %q", opts.demuxer)
	}
	switch cfg.snapshotFormat {
	case video.FormatBMP, video.FormatPNG:
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", opts.snapshotFormat)
	}

	if opts.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", opts.sampleRate)
	}
	if opts.channels != 1 && opts.channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", opts.channels)
	}
	cfg.format = media.AudioFormat{SampleRate: opts.sampleRate, Channels: opts.channels}
	return cfg, nil
}

// openerFor picks the container reader for path. auto uses the pure-Go
// transport stream reader for .ts/.m2ts/.mts files and FFmpeg otherwise.
func openerFor(demuxer, path string) backend.Opener {
	switch demuxer {
	case demuxerTS:
		return tsfile.Open
	case demuxerFFmpeg:
		return ffmpeg.Open
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".m2ts", ".mts":
		return tsfile.Open
	}
	return ffmpeg.Open
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
