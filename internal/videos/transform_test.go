package videos

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLetterboxSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		aspect        float64
		wantW, wantH  int
	}{
		{name: "same ratio", width: 1280, height: 720, aspect: 16.0 / 9.0, wantW: 1280, wantH: 720},
		{name: "portrait into landscape", width: 1080, height: 1920, aspect: 16.0 / 9.0, wantW: 3414, wantH: 1920},
		{name: "four by three", width: 640, height: 480, aspect: 16.0 / 9.0, wantW: 854, wantH: 480},
		{name: "wider than target", width: 1920, height: 800, aspect: 16.0 / 9.0, wantW: 1920, wantH: 1080},
		{name: "landscape into portrait", width: 1280, height: 720, aspect: 9.0 / 16.0, wantW: 1280, wantH: 2276},
		{name: "odd source without target", width: 641, height: 361, aspect: 0, wantW: 642, wantH: 362},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := letterboxSize(tt.width, tt.height, tt.aspect)
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("letterboxSize(%d, %d, %.4f) = %dx%d, want %dx%d", tt.width, tt.height, tt.aspect, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestAdTransformation(t *testing.T) {
	tr := AdTransformation(16.0 / 9.0)
	if tr.Empty() {
		t.Fatal("expected ad transformation to change the clip")
	}
	if tr.Letterbox.Background != "black" || tr.Letterbox.AspectRatio != 16.0/9.0 {
		t.Fatalf("unexpected letterbox: %+v", *tr.Letterbox)
	}
	if tr.ProgressBar.Color != "FF0000" || tr.ProgressBar.Thickness != 12 {
		t.Fatalf("unexpected progress bar: %+v", *tr.ProgressBar)
	}
	if !(Transformation{}).Empty() {
		t.Fatal("zero transformation should be empty")
	}
}

func TestFilterGraph(t *testing.T) {
	in := Probe{Duration: 10, Width: 1280, Height: 720}

	got := filterGraph(AdTransformation(16.0/9.0), in)
	want := "[0:v]pad=1280:720:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1[bg];" +
		"color=c=0xFF0000:s=1280x12:d=10.000[bar];" +
		"[bg][bar]overlay=x='-w+w*t/10.000':y=708:eof_action=pass[out]"
	if got != want {
		t.Fatalf("unexpected graph:\n got %s\nwant %s", got, want)
	}

	letterboxOnly := filterGraph(Transformation{Letterbox: &Letterbox{AspectRatio: 16.0 / 9.0}}, Probe{Duration: 4, Width: 640, Height: 480})
	if letterboxOnly != "[0:v]pad=854:480:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1[out]" {
		t.Fatalf("unexpected letterbox graph: %s", letterboxOnly)
	}

	barOnly := filterGraph(Transformation{ProgressBar: &ProgressBar{Color: "#00FF00", Thickness: 4}}, Probe{Duration: 2.5, Width: 640, Height: 360})
	if !strings.HasPrefix(barOnly, "[0:v]scale=640:360,setsar=1[bg];color=c=0x00FF00:s=640x4:d=2.500[bar];") {
		t.Fatalf("unexpected bar graph: %s", barOnly)
	}
}

func TestRenderArgs(t *testing.T) {
	args := RenderArgs("in.mp4", "out.mp4", Probe{Duration: 10, Width: 1280, Height: 720}, AdTransformation(16.0/9.0))
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("expected destination last, got %v", args)
	}
	joined := strings.Join(args, " ")
	for _, part := range []string{"-i in.mp4", "-map [out] -map 0:a?", "-c:v libx264", "-movflags +faststart"} {
		if !strings.Contains(joined, part) {
			t.Fatalf("expected %q in %s", part, joined)
		}
	}
}

func TestTranscoderPreview(t *testing.T) {
	tc := NewTranscoder("", time.Second)
	var gotArgs []string
	tc.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		if binary != "ffmpeg" {
			t.Fatalf("unexpected binary %q", binary)
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Fatal("expected a deadline on the ffmpeg context")
		}
		gotArgs = args
		return nil, nil
	}

	if err := tc.Preview(context.Background(), "clip.mp4", "clip.gif"); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-t 3 -i clip.mp4") || !strings.HasSuffix(joined, "-loop 0 clip.gif") {
		t.Fatalf("unexpected preview args: %s", joined)
	}
}

func TestTranscoderRenderError(t *testing.T) {
	boom := errors.New("exit status 1")
	tc := NewTranscoder("ffmpeg", time.Second)
	tc.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, boom
	}

	err := tc.Render(context.Background(), "in.mp4", "out.mp4", Probe{Duration: 1, Width: 2, Height: 2}, Transformation{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}
