package videos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Probe captures the properties of a local video file the media host records.
type Probe struct {
	Duration float64
	Width    int
	Height   int
	// Formats lists the container names reported by ffprobe, e.g. "mov", "mp4".
	Formats []string
}

// HasFormat reports whether the container matches name.
func (p Probe) HasFormat(name string) bool {
	for _, f := range p.Formats {
		if f == name {
			return true
		}
	}
	return false
}

// Prober inspects video files with the ffprobe CLI tool.
type Prober struct {
	Binary  string
	Args    []string
	Run     CommandRunner
	Timeout time.Duration
}

// NewProber constructs a Prober that shells out to ffprobe.
func NewProber(binary string, timeout time.Duration) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{
		Binary:  binary,
		Args:    []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams"},
		Run:     defaultCommandRunner,
		Timeout: timeout,
	}
}

// Probe executes ffprobe for the provided file and parses the JSON response.
func (p *Prober) Probe(ctx context.Context, path string) (Probe, error) {
	if p == nil {
		return Probe{}, ErrHostUnavailable
	}
	if p.Run == nil {
		p.Run = defaultCommandRunner
	}

	execCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := append([]string{}, p.Args...)
	args = append(args, path)

	out, err := p.Run(execCtx, p.Binary, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if execCtx.Err() == nil && errors.As(err, &exitErr) {
			// ffprobe ran and refused the input.
			return Probe{}, fmt.Errorf("ffprobe %s: %w: %w", path, ErrUnreadableMedia, err)
		}
		return Probe{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var payload struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Duration  string `json:"duration"`
		} `json:"streams"`
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return Probe{}, fmt.Errorf("parse ffprobe response: %w", err)
	}

	var result Probe
	for _, stream := range payload.Streams {
		if stream.CodecType != "video" {
			continue
		}
		result.Width = stream.Width
		result.Height = stream.Height
		if payload.Format.Duration == "" {
			payload.Format.Duration = stream.Duration
		}
		break
	}
	if result.Width == 0 || result.Height == 0 {
		return Probe{}, fmt.Errorf("ffprobe %s: no video stream: %w", path, ErrUnreadableMedia)
	}

	if payload.Format.Duration != "" {
		d, err := strconv.ParseFloat(payload.Format.Duration, 64)
		if err != nil {
			return Probe{}, fmt.Errorf("parse duration %q: %w", payload.Format.Duration, err)
		}
		result.Duration = d
	}

	for _, name := range strings.Split(payload.Format.FormatName, ",") {
		if name = strings.TrimSpace(name); name != "" {
			result.Formats = append(result.Formats, name)
		}
	}

	return result, nil
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, err
	}
	return out, nil
}
