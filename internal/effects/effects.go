package effects

import (
	"fmt"

	"github.com/ivlev/story2video/internal/timeline"
)

// Effect превращает клип в цепочку фильтров ffmpeg, которая выдаёт
// поток FrameW x FrameH с альфа-каналом.
type Effect interface {
	GenerateFilter(c timeline.Clip, fps int) string
}

// KenBurns медленный наезд с постоянным наклоном.
type KenBurns struct{}

func (e *KenBurns) GenerateFilter(c timeline.Clip, fps int) string {
	// zoompan работает на холсте 2x ради плавного субпиксельного движения.
	// Наклон применяется ко всему cover-изображению до обрезки по кадру;
	// оба преобразования центрированы, порядок относительно зума не важен.
	coverFilter := fmt.Sprintf("scale=%d:%d,format=yuva420p,%s,crop=%d:%d",
		c.CoverW*2, c.CoverH*2, rotateFilter(c.Tilt), c.FrameW*2, c.FrameH*2)

	rampFrames := c.Duration * float64(fps)
	if rampFrames < 1 {
		rampFrames = 1
	}
	// после Duration зум замирает, см. timeline.Clip.Zoom
	zFormula := fmt.Sprintf("%.6f+%.6f*min(on,%.3f)/%.3f", c.BaseZoom, c.ZoomRamp, rampFrames, rampFrames)

	zoomFilter := fmt.Sprintf(
		"zoompan=z='%s':d=1:s=%dx%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':fps=%d",
		zFormula, c.FrameW, c.FrameH, fps,
	)

	return fmt.Sprintf("%s,%s,format=yuva420p%s", coverFilter, zoomFilter, fadeFilter(c))
}

func rotateFilter(tilt float64) string {
	if tilt == 0 {
		return "null"
	}
	return fmt.Sprintf("rotate=a=%.6f*PI/180:c=black@0:ow=iw:oh=ih", tilt)
}

func fadeFilter(c timeline.Clip) string {
	if c.Crossfade <= 0 {
		return ""
	}
	return fmt.Sprintf(",fade=t=in:st=0:d=%.3f:alpha=1", c.Crossfade)
}
