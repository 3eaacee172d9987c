package renderer

import (
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/ivlev/story2video/internal/effects"
	"github.com/ivlev/story2video/internal/timeline"
)

func singleClip() timeline.Timeline {
	return timeline.Timeline{
		Width: 1920, Height: 1080, FPS: 24,
		Clips: []timeline.Clip{{
			Image: "scene_000.png", SourceW: 1920, SourceH: 1080,
			FrameW: 1920, FrameH: 1080, CoverW: 1920, CoverH: 1080,
			Start: 0, Duration: 4, BaseZoom: 1.03, ZoomRamp: 0.1, Tilt: 0.5,
		}},
	}
}

func TestGraphArgs(t *testing.T) {
	g := NewGraph(1920, 1080, 24, 4)
	last := ComposeTimeline(g, singleClip(), &effects.KenBurns{})
	Finalize(g, last)
	AttachAudio(g, "narration.wav")

	args := strings.Join(g.Args(), " ")
	for _, want := range []string{
		"-loop 1 -framerate 24 -t 4.000 -i scene_000.png",
		"-i narration.wav",
		"color=c=black:s=1920x1080:r=24:d=4.000",
		"overlay=x=0:y=0:eof_action=pass:enable='between(t,0.000,4.000)'",
		"fps=24,scale=1920:1080,setsar=1,format=yuv420p[vout]",
		"-map [vout] -map 1:a",
		"-t 4.000",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q:\n%s", want, args)
		}
	}
	if g.InputCount() != 2 {
		t.Errorf("Expected 2 inputs, got %d", g.InputCount())
	}
}

func TestGraphOverlays(t *testing.T) {
	g := NewGraph(1920, 1080, 24, 10)
	last := ComposeTimeline(g, singleClip(), &effects.StaticEffect{})
	last = BlendDust(g, last, "dust.mp4", 0.3)
	last = OverlayCaptions(g, last, "captions.ffconcat")
	Finalize(g, last)

	fc := g.FilterComplex()
	if !strings.Contains(fc, "blend=all_mode=screen:all_opacity=0.30") {
		t.Errorf("missing screen blend: %s", fc)
	}
	if !strings.Contains(fc, "trim=duration=10.000") {
		t.Errorf("dust loop not trimmed to the render length: %s", fc)
	}
	args := strings.Join(g.Args(), " ")
	if !strings.Contains(args, "-stream_loop -1 -i dust.mp4") || !strings.Contains(args, "-f concat -safe 0 -i captions.ffconcat") {
		t.Errorf("overlay inputs missing: %s", args)
	}
}

func TestClipMatrixKeepsCenter(t *testing.T) {
	c := singleClip().Clips[0]
	tr := timeline.FrameAt(c, 2)
	m := ClipMatrix(c, tr)

	x := m[0]*960 + m[1]*540 + m[2]
	y := m[3]*960 + m[4]*540 + m[5]
	if math.Abs(x-960) > 1e-6 || math.Abs(y-540) > 1e-6 {
		t.Errorf("source center maps to (%f,%f), want frame center", x, y)
	}
	scale := math.Hypot(m[0], m[3])
	if math.Abs(scale-tr.Scale) > 1e-9 {
		t.Errorf("matrix scale %f, want %f", scale, tr.Scale)
	}
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	for y := 0; y < 18; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderFrameCrossfade(t *testing.T) {
	red, blue := solid(color.RGBA{255, 0, 0, 255}), solid(color.RGBA{0, 0, 255, 255})
	tl := timeline.Timeline{Width: 32, Height: 18, FPS: 24, Clips: []timeline.Clip{
		{Image: "red", SourceW: 32, SourceH: 18, FrameW: 32, FrameH: 18, CoverW: 32, CoverH: 18,
			Start: 0, Duration: 2, BaseZoom: 1.05, ZoomRamp: 0.1, Hold: 1},
		{Image: "blue", SourceW: 32, SourceH: 18, FrameW: 32, FrameH: 18, CoverW: 32, CoverH: 18,
			Start: 2, Duration: 2, BaseZoom: 1.05, ZoomRamp: 0.1, Crossfade: 1},
	}}
	load := func(p string) (image.Image, error) {
		if p == "red" {
			return red, nil
		}
		return blue, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, 32, 18))
	if err := RenderFrame(dst, tl, 1, load); err != nil {
		t.Fatal(err)
	}
	if c := dst.RGBAAt(16, 9); c.R < 250 || c.B > 5 {
		t.Errorf("t=1 center should be red, got %v", c)
	}

	if err := RenderFrame(dst, tl, 2.5, load); err != nil {
		t.Fatal(err)
	}
	if c := dst.RGBAAt(16, 9); c.R < 100 || c.R > 155 || c.B < 100 || c.B > 155 {
		t.Errorf("t=2.5 center should be a red/blue mix, got %v", c)
	}

	if err := RenderFrame(dst, tl, 3.5, load); err != nil {
		t.Fatal(err)
	}
	if c := dst.RGBAAt(16, 9); c.B < 250 || c.R > 5 {
		t.Errorf("t=3.5 center should be blue, got %v", c)
	}
}

func TestComposeTiltsBeforeZoom(t *testing.T) {
	g := NewGraph(1920, 1080, 24, 4)
	Finalize(g, ComposeTimeline(g, singleClip(), &effects.KenBurns{}))

	fc := g.FilterComplex()
	rotate := strings.Index(fc, "rotate=a=0.500000*PI/180")
	zoom := strings.Index(fc, "zoompan=")
	if rotate < 0 || zoom < 0 || rotate > zoom {
		t.Errorf("tilt must be applied to the cover image before zoompan crops it:\n%s", fc)
	}
}
