// Package ffprobe reads the frame geometry and duration of a video with the
// ffprobe binary.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// showEntries limits the report to what sizing and output checks read.
const showEntries = "stream=index,codec_type,codec_name,width,height" +
	":stream_tags=rotate:stream_side_data=rotation" +
	":format=duration,size,format_name"

// ErrNoVideo is returned by Info.Frame for files without a usable video stream.
var ErrNoVideo = errors.New("no video stream")

// Info is the subset of an ffprobe report the pipeline uses.
type Info struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Tags      struct {
		Rotate string `json:"rotate,omitempty"`
	} `json:"tags"`
	SideData []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list,omitempty"`
}

type Format struct {
	Duration   string `json:"duration,omitempty"`
	Size       string `json:"size,omitempty"`
	FormatName string `json:"format_name,omitempty"`
}

// Error reports a failed ffprobe run. Stderr holds what ffprobe printed,
// usually a single line naming the container problem.
type Error struct {
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffprobe %s: %s", e.Path, e.Stderr)
	}
	return fmt.Sprintf("ffprobe %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Inspect runs ffprobe against path.
func Inspect(ctx context.Context, binary string, path string) (Info, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("ffprobe: empty path")
	}
	if strings.HasPrefix(path, "-") {
		path = "./" + path
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", showEntries,
		"-of", "json",
		path,
	)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return Info{}, &Error{Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var info Info
	if err := json.Unmarshal(output, &info); err != nil {
		return Info{}, &Error{Path: path, Err: fmt.Errorf("decode report: %w", err)}
	}
	return info, nil
}

// Video returns the first video stream.
func (i Info) Video() (Stream, bool) {
	for _, s := range i.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s, true
		}
	}
	return Stream{}, false
}

// Frame returns the displayed width and height of the first video stream.
// ffmpeg rotates before filtering, so a stream rotated a quarter turn is
// scaled as if its coded width and height were swapped.
func (i Info) Frame() (width, height int, err error) {
	s, ok := i.Video()
	if !ok {
		return 0, 0, ErrNoVideo
	}
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: stream %d has no dimensions", ErrNoVideo, s.Index)
	}
	if r := s.Rotation(); r == 90 || r == 270 {
		return s.Height, s.Width, nil
	}
	return s.Width, s.Height, nil
}

// Rotation returns the display rotation in degrees, normalised to 0, 90, 180
// or 270. Display matrix side data wins over the legacy rotate tag.
func (s Stream) Rotation() int {
	deg := 0.0
	switch {
	case len(s.SideData) > 0:
		for _, sd := range s.SideData {
			if sd.Rotation != 0 {
				deg = sd.Rotation
				break
			}
		}
	case s.Tags.Rotate != "":
		if v, err := strconv.ParseFloat(strings.TrimSpace(s.Tags.Rotate), 64); err == nil {
			deg = v
		}
	}
	quarter := int(math.Round(deg/90)) % 4
	if quarter < 0 {
		quarter += 4
	}
	return quarter * 90
}

// Duration returns the container duration. ok is false when ffprobe did not
// report a usable one.
func (i Info) Duration() (d time.Duration, ok bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(i.Format.Duration), 64)
	if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}
