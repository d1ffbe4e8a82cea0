package videos

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Letterbox pads a clip to an aspect ratio without cropping it.
type Letterbox struct {
	AspectRatio float64
	// Background is an ffmpeg color name or 0xRRGGBB value.
	Background string
}

// ProgressBar burns a bar along the bottom edge that fills as the clip plays.
type ProgressBar struct {
	// Color is an RRGGBB hex value.
	Color     string
	Thickness int
}

// Transformation describes the edits applied to a clip before it is stored.
type Transformation struct {
	Letterbox   *Letterbox
	ProgressBar *ProgressBar
}

// Empty reports whether the transformation changes nothing.
func (t Transformation) Empty() bool {
	return t.Letterbox == nil && t.ProgressBar == nil
}

// AdTransformation letterboxes an ad to the primary's aspect ratio on black
// and adds a red progress bar.
func AdTransformation(aspectRatio float64) Transformation {
	return Transformation{
		Letterbox:   &Letterbox{AspectRatio: aspectRatio, Background: "black"},
		ProgressBar: &ProgressBar{Color: "FF0000", Thickness: 12},
	}
}

// letterboxSize returns the smallest even frame with the target aspect ratio
// that contains a width x height picture.
func letterboxSize(width, height int, aspect float64) (int, int) {
	if aspect <= 0 || width <= 0 || height <= 0 {
		return evenUp(width), evenUp(height)
	}
	const tolerance = 1e-6
	if float64(width)/float64(height) > aspect {
		return evenUp(width), evenUp(int(math.Ceil(float64(width)/aspect - tolerance)))
	}
	return evenUp(int(math.Ceil(float64(height)*aspect - tolerance))), evenUp(height)
}

func evenUp(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// filterGraph builds the ffmpeg filter_complex for t applied to a clip with
// the probed properties. The graph's output pad is [out].
func filterGraph(t Transformation, in Probe) string {
	width, height := evenUp(in.Width), evenUp(in.Height)

	var base string
	if t.Letterbox != nil {
		width, height = letterboxSize(in.Width, in.Height, t.Letterbox.AspectRatio)
		background := t.Letterbox.Background
		if background == "" {
			background = "black"
		}
		base = fmt.Sprintf("[0:v]pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s,setsar=1", width, height, background)
	} else {
		base = fmt.Sprintf("[0:v]scale=%d:%d,setsar=1", width, height)
	}

	if t.ProgressBar == nil || in.Duration <= 0 {
		return base + "[out]"
	}

	thickness := t.ProgressBar.Thickness
	if thickness <= 0 {
		thickness = 12
	}
	color := strings.TrimPrefix(t.ProgressBar.Color, "#")
	if color == "" {
		color = "FF0000"
	}
	duration := fmt.Sprintf("%.3f", in.Duration)

	return strings.Join([]string{
		base + "[bg]",
		fmt.Sprintf("color=c=0x%s:s=%dx%d:d=%s[bar]", color, width, thickness, duration),
		fmt.Sprintf("[bg][bar]overlay=x='-w+w*t/%s':y=%d:eof_action=pass[out]", duration, height-thickness),
	}, ";")
}

// Transcoder renders transformations and previews with the ffmpeg CLI tool.
type Transcoder struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
	// PreviewSeconds is the length of the animated preview.
	PreviewSeconds int
}

// NewTranscoder constructs a Transcoder that shells out to ffmpeg.
func NewTranscoder(binary string, timeout time.Duration) *Transcoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Transcoder{
		Binary:         binary,
		Run:            defaultCommandRunner,
		Timeout:        timeout,
		PreviewSeconds: 3,
	}
}

// RenderArgs returns the ffmpeg arguments that apply t to src and write dst.
func RenderArgs(src, dst string, in Probe, t Transformation) []string {
	return []string{
		"-y", "-v", "error",
		"-i", src,
		"-filter_complex", filterGraph(t, in),
		"-map", "[out]", "-map", "0:a?",
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "copy",
		"-movflags", "+faststart",
		dst,
	}
}

// Render applies t to the clip at src and writes an mp4 to dst.
func (tc *Transcoder) Render(ctx context.Context, src, dst string, in Probe, t Transformation) error {
	if tc == nil {
		return ErrHostUnavailable
	}
	return tc.run(ctx, RenderArgs(src, dst, in, t))
}

// Preview writes a short looping gif of src to dst.
func (tc *Transcoder) Preview(ctx context.Context, src, dst string) error {
	if tc == nil {
		return ErrHostUnavailable
	}
	seconds := tc.PreviewSeconds
	if seconds <= 0 {
		seconds = 3
	}
	return tc.run(ctx, []string{
		"-y", "-v", "error",
		"-t", fmt.Sprint(seconds),
		"-i", src,
		"-vf", "fps=10,scale=320:-2:flags=lanczos",
		"-loop", "0",
		dst,
	})
}

func (tc *Transcoder) run(ctx context.Context, args []string) error {
	if tc.Run == nil {
		tc.Run = defaultCommandRunner
	}
	execCtx, cancel := context.WithTimeout(ctx, tc.Timeout)
	defer cancel()

	if _, err := tc.Run(execCtx, tc.Binary, args...); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
