package timeline

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/warnings"
)

var ErrNoClips = errors.New("no clips could be built")

// Options управляет построением клипов. Нулевые поля берут значения по умолчанию.
type Options struct {
	Width, Height int
	FPS           int
	MinDuration   float64
	ZoomMin       float64
	ZoomMax       float64
	ZoomRamp      float64
	MaxTilt       float64
	MaxCrossfade  float64
}

func DefaultOptions() Options {
	return Options{
		Width:        1920,
		Height:       1080,
		FPS:          24,
		MinDuration:  1.0,
		ZoomMin:      1.02,
		ZoomMax:      1.08,
		ZoomRamp:     0.1,
		MaxTilt:      2.0,
		MaxCrossfade: 1.0,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.MinDuration <= 0 {
		o.MinDuration = d.MinDuration
	}
	if o.ZoomMin <= 0 || o.ZoomMax < o.ZoomMin {
		o.ZoomMin, o.ZoomMax = d.ZoomMin, d.ZoomMax
	}
	if o.ZoomRamp <= 0 {
		o.ZoomRamp = d.ZoomRamp
	}
	if o.MaxTilt <= 0 {
		o.MaxTilt = d.MaxTilt
	}
	if o.MaxCrossfade <= 0 {
		o.MaxCrossfade = d.MaxCrossfade
	}
	return o
}

// DimensionsFunc сообщает размер изображения в пикселях.
type DimensionsFunc func(path string) (width, height int, err error)

// Timeline упорядоченная видеодорожка одного рендера.
type Timeline struct {
	Clips  []Clip
	Width  int
	Height int
	FPS    int
}

// End самый поздний видимый момент среди клипов.
func (t Timeline) End() float64 {
	end := 0.0
	for _, c := range t.Clips {
		end = math.Max(end, c.VisibleEnd())
	}
	return end
}

// ClipAt возвращает индексы клипов, видимых в момент ts, нижний первым.
func (t Timeline) ClipAt(ts float64) []int {
	var out []int
	for i, c := range t.Clips {
		if ts >= c.Start && ts < c.VisibleEnd() {
			out = append(out, i)
		}
	}
	return out
}

// Build сшивает промпты и изображения по позиции и делает из пары клип.
// Отсутствующие и нечитаемые изображения пропускаются с предупреждением.
// Ошибка только при пустом результате.
func Build(prompts []director.Prompt, images []string, opts Options, dims DimensionsFunc, rng *rand.Rand, w *warnings.List) (Timeline, error) {
	opts = opts.withDefaults()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	tl := Timeline{Width: opts.Width, Height: opts.Height, FPS: opts.FPS}
	n := min(len(prompts), len(images))
	if len(images) < len(prompts) {
		w.Addf("clips", "промптов %d, изображений %d, лишние промпты пропущены", len(prompts), len(images))
	}

	for i := 0; i < n; i++ {
		path := images[i]
		if _, err := os.Stat(path); err != nil {
			w.Addf("clips", "изображение %d не найдено: %s", i, path)
			continue
		}
		srcW, srcH, err := dims(path)
		if err != nil {
			w.Addf("clips", "изображение %d пропущено: %v", i, err)
			continue
		}

		p := prompts[i]
		duration := math.Max(p.End-p.Start, opts.MinDuration)
		coverW, coverH := CoverSize(srcW, srcH, opts.Width, opts.Height)

		clip := Clip{
			Index:    i,
			Image:    path,
			SourceW:  srcW,
			SourceH:  srcH,
			FrameW:   opts.Width,
			FrameH:   opts.Height,
			CoverW:   coverW,
			CoverH:   coverH,
			Start:    p.Start,
			Duration: duration,
			BaseZoom: opts.ZoomMin + rng.Float64()*(opts.ZoomMax-opts.ZoomMin),
			ZoomRamp: opts.ZoomRamp,
			Tilt:     -opts.MaxTilt + rng.Float64()*2*opts.MaxTilt,
		}
		if len(tl.Clips) > 0 {
			clip.Crossfade = math.Min(opts.MaxCrossfade, duration/2)
		}
		tl.Clips = append(tl.Clips, clip)
	}

	if len(tl.Clips) == 0 {
		return tl, ErrNoClips
	}
	tl.Clips = withHolds(tl.Clips)
	return tl, nil
}

// withHolds возвращает копии клипов, где каждый виден, пока
// следующий не закончит проявляться.
func withHolds(clips []Clip) []Clip {
	out := make([]Clip, len(clips))
	copy(out, clips)
	for i := 0; i+1 < len(out); i++ {
		next := out[i+1]
		if next.Crossfade <= 0 {
			continue
		}
		out[i].Hold = math.Max(0, next.Start+next.Crossfade-out[i].End())
	}
	return out
}
