// Package transcoder scales a staged raw video to the configured output
// height with ffmpeg.
package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"videoproc/internal/media/ffprobe"
	"videoproc/internal/pkg/errors"
	"videoproc/internal/pkg/logger"
)

const stderrTailBytes = 4096

// Paths resolves local staging names to file paths.
type Paths interface {
	RawPath(name string) (string, error)
	ProcessedPath(name string) (string, error)
}

// Config configures the engine invocation.
type Config struct {
	FFmpegPath   string
	FFprobePath  string
	TargetHeight int
	// Verify probes the output and fails the conversion when its height is
	// not the target.
	Verify bool
}

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	Frame   int64
	OutTime time.Duration
	Speed   string
	Done    bool
}

// Transcoder runs ffmpeg for one conversion at a time per call.
type Transcoder struct {
	cfg      Config
	paths    Paths
	log      *logger.Logger
	progress func(Progress)
}

// Option customizes a Transcoder.
type Option func(*Transcoder)

// WithProgress registers a callback for engine progress reports.
func WithProgress(fn func(Progress)) Option {
	return func(t *Transcoder) { t.progress = fn }
}

func New(cfg Config, paths Paths, log *logger.Logger, opts ...Option) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.TargetHeight <= 0 {
		cfg.TargetHeight = 360
	}
	if log == nil {
		log = logger.Discard()
	}
	t := &Transcoder{cfg: cfg, paths: paths, log: log.WithComponent("transcoder")}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ScaleFilter keeps the aspect ratio and rounds the width to an even number.
func ScaleFilter(height int) string {
	return fmt.Sprintf("scale=-2:%d", height)
}

// ExpectedWidth is the aspect-preserving width for a source of w x h scaled
// to target height.
func ExpectedWidth(w, h, target int) int {
	if h <= 0 {
		return 0
	}
	return int(math.Round(float64(w) * float64(target) / float64(h)))
}

// BuildArgs returns the ffmpeg arguments converting input to output.
func BuildArgs(input, output string, height int) []string {
	return ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{"vf": ScaleFilter(height)}).
		GlobalArgs("-progress", "pipe:1", "-nostats", "-hide_banner").
		OverWriteOutput().
		GetArgs()
}

// Convert transcodes rawName from the raw staging directory into
// processedName in the processed staging directory. It returns after the
// engine exits. Partial output is left for the caller to remove.
func (t *Transcoder) Convert(ctx context.Context, rawName, processedName string) error {
	in, err := t.paths.RawPath(rawName)
	if err != nil {
		return err
	}
	out, err := t.paths.ProcessedPath(processedName)
	if err != nil {
		return err
	}

	log := t.log.FromContext(ctx).With("input", in, "output", out)
	args := BuildArgs(in, out, t.cfg.TargetHeight)
	log.Debug("starting ffmpeg", "args", strings.Join(args, " "))
	start := time.Now()

	if err := t.run(ctx, args); err != nil {
		return err
	}

	if _, err := os.Stat(out); err != nil {
		return errors.Transcode(err, "transcoder.convert", "engine reported success but produced no output").
			WithField("output", out)
	}

	if t.cfg.Verify {
		if err := t.verify(ctx, in, out); err != nil {
			return err
		}
	}

	log.Debug("ffmpeg finished", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	tail := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Transcode(err, "transcoder.convert", "attach engine output")
	}
	if err := cmd.Start(); err != nil {
		return errors.Transcode(err, "transcoder.convert", "start engine").
			WithField("ffmpeg", t.cfg.FFmpegPath)
	}

	parseProgress(stdout, t.progress)

	if err := cmd.Wait(); err != nil {
		diag := strings.TrimSpace(tail.String())
		e := errors.Transcode(err, "transcoder.convert", "engine failed")
		if diag != "" {
			e = e.WithField("stderr", diag)
			e.Message = "engine failed: " + lastLine(diag)
		}
		return e
	}
	return nil
}

func (t *Transcoder) verify(ctx context.Context, in, out string) error {
	probed, err := ffprobe.Inspect(ctx, t.cfg.FFprobePath, out)
	if err != nil {
		return probeFailure(err)
	}
	w, h, err := probed.Frame()
	if err != nil {
		return errors.Transcode(err, "transcoder.verify", "output has no video stream")
	}
	if h != t.cfg.TargetHeight {
		return errors.Transcode(fmt.Errorf("output height %d, want %d", h, t.cfg.TargetHeight),
			"transcoder.verify", "output has wrong height")
	}

	// The height check above stands on its own; an unreadable source only
	// costs the width check.
	src, err := ffprobe.Inspect(ctx, t.cfg.FFprobePath, in)
	var sw, sh int
	if err == nil {
		sw, sh, err = src.Frame()
	}
	if err != nil {
		t.log.FromContext(ctx).Warn("source not probed, aspect ratio unchecked",
			"input", in, "output_width", w, "error", err.Error())
		return nil
	}
	want := ExpectedWidth(sw, sh, t.cfg.TargetHeight)
	if d := w - want; d > 1 || d < -1 {
		return errors.Transcode(fmt.Errorf("output width %d, want %d", w, want),
			"transcoder.verify", "output aspect ratio not preserved")
	}
	return nil
}

func probeFailure(err error) error {
	e := errors.Transcode(err, "transcoder.verify", "output unreadable")
	var pe *ffprobe.Error
	if errors.As(err, &pe) && pe.Stderr != "" {
		e = e.WithField("stderr", pe.Stderr)
	}
	return e
}

// parseProgress consumes key=value blocks until r is exhausted. Each block
// ends with a progress=continue or progress=end line.
func parseProgress(r io.Reader, fn func(Progress)) {
	scanner := bufio.NewScanner(r)
	var cur Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "frame":
			cur.Frame, _ = strconv.ParseInt(value, 10, 64)
		case "out_time_us", "out_time_ms": // both are microseconds
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				cur.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			cur.Speed = value
		case "progress":
			cur.Done = value == "end"
			if fn != nil {
				fn(cur)
			}
			cur = Progress{}
		}
	}
	// Keep draining so the engine never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
