package videos

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"
)

const ffprobeMP4 = `{
  "streams": [
    {"codec_type": "audio", "duration": "100.010000"},
    {"codec_type": "video", "width": 1920, "height": 1080, "duration": "100.000000"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "100.023000"}
}`

func TestProberProbe(t *testing.T) {
	prober := NewProber("ffprobe", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffprobe" {
			t.Fatalf("unexpected binary %q", binary)
		}
		wantArgs := []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", "/tmp/clip.mp4"}
		if len(args) != len(wantArgs) {
			t.Fatalf("unexpected args length: got %d want %d", len(args), len(wantArgs))
		}
		for i, arg := range wantArgs {
			if args[i] != arg {
				t.Fatalf("unexpected arg at %d: got %q want %q", i, args[i], arg)
			}
		}
		return []byte(ffprobeMP4), nil
	}

	probe, err := prober.Probe(context.Background(), "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if probe.Width != 1920 || probe.Height != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", probe.Width, probe.Height)
	}
	if probe.Duration != 100.023 {
		t.Fatalf("unexpected duration: %v", probe.Duration)
	}
	if !probe.HasFormat("mp4") || probe.HasFormat("webm") {
		t.Fatalf("unexpected formats: %v", probe.Formats)
	}
}

func TestProberFallsBackToStreamDuration(t *testing.T) {
	prober := NewProber("", 0)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"streams":[{"codec_type":"video","width":640,"height":480,"duration":"12.5"}],"format":{"format_name":"mov,mp4"}}`), nil
	}

	probe, err := prober.Probe(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if probe.Duration != 12.5 {
		t.Fatalf("expected stream duration, got %v", probe.Duration)
	}
	if prober.Binary != "ffprobe" || prober.Timeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %q %v", prober.Binary, prober.Timeout)
	}
}

func TestProberRejectsAudioOnly(t *testing.T) {
	prober := NewProber("ffprobe", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"streams":[{"codec_type":"audio"}],"format":{"format_name":"mp3","duration":"3"}}`), nil
	}

	if _, err := prober.Probe(context.Background(), "song.mp4"); !errors.Is(err, ErrUnreadableMedia) {
		t.Fatalf("expected ErrUnreadableMedia for file without a video stream, got %v", err)
	}
}

func TestInspectClassifiesExitFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unreadable bool
	}{
		{"rejected input", fmt.Errorf("%w: Invalid data found when processing input", &exec.ExitError{}), true},
		{"missing binary", &exec.Error{Name: "ffprobe", Err: exec.ErrNotFound}, false},
		{"plain failure", errors.New("pipe closed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := NewProber("ffprobe", time.Second)
			prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
				return nil, tt.err
			}

			_, err := prober.Probe(context.Background(), "clip.mp4")
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected wrapped runner error, got %v", err)
			}
			if got := errors.Is(err, ErrUnreadableMedia); got != tt.unreadable {
				t.Fatalf("errors.Is(err, ErrUnreadableMedia) = %v, want %v (%v)", got, tt.unreadable, err)
			}
		})
	}
}

func TestInspectTimeoutIsNotUnreadable(t *testing.T) {
	prober := NewProber("ffprobe", time.Millisecond)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: signal: killed", &exec.ExitError{})
	}

	_, err := prober.Probe(context.Background(), "slow.mp4")
	if err == nil || errors.Is(err, ErrUnreadableMedia) {
		t.Fatalf("expected a tooling error for a timed out run, got %v", err)
	}
}

func TestProberWrapsRunnerError(t *testing.T) {
	boom := errors.New("exit status 1: invalid data")
	prober := NewProber("ffprobe", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, boom
	}

	_, err := prober.Probe(context.Background(), "broken.mp4")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped runner error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken.mp4") {
		t.Fatalf("expected path in error, got %v", err)
	}
}

func TestNilProber(t *testing.T) {
	var prober *Prober
	if _, err := prober.Probe(context.Background(), "clip.mp4"); !errors.Is(err, ErrHostUnavailable) {
		t.Fatalf("expected ErrHostUnavailable, got %v", err)
	}
}
