package timeline

import "math"

// Clip одно изображение сцены на таймлайне. Это обычное значение:
// построители возвращают новые клипы, а не меняют старые.
type Clip struct {
	Index    int     `json:"index"`
	Image    string  `json:"image"`
	SourceW  int     `json:"source_w"`
	SourceH  int     `json:"source_h"`
	FrameW   int     `json:"frame_w"`
	FrameH   int     `json:"frame_h"`
	CoverW   int     `json:"cover_w"`
	CoverH   int     `json:"cover_h"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	BaseZoom float64 `json:"base_zoom"`
	ZoomRamp float64 `json:"zoom_ramp"`
	// Tilt в градусах, постоянен на весь клип.
	Tilt      float64 `json:"tilt"`
	Crossfade float64 `json:"crossfade"`
	// Hold держит клип на экране после Duration, пока следующий
	// проявляется поверх него.
	Hold float64 `json:"hold"`
}

// End конец собственной длительности клипа.
func (c Clip) End() float64 {
	return c.Start + c.Duration
}

// VisibleEnd включает удержание под переходом следующего клипа.
func (c Clip) VisibleEnd() float64 {
	return c.Start + c.Duration + c.Hold
}

// Zoom масштаб в локальный момент t: линейно от BaseZoom до
// BaseZoom+ZoomRamp за длительность клипа. Во время удержания
// остаётся на последнем значении.
func (c Clip) Zoom(t float64) float64 {
	if c.Duration <= 0 {
		return c.BaseZoom
	}
	t = math.Max(0, math.Min(t, c.Duration))
	return c.BaseZoom + c.ZoomRamp*(t/c.Duration)
}

// Opacity прозрачность проявления в момент t.
func (c Clip) Opacity(t float64) float64 {
	if c.Crossfade <= 0 || t >= c.Crossfade {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return t / c.Crossfade
}

// Transform всё, что нужно, чтобы нарисовать клип в один момент.
type Transform struct {
	Scale   float64
	Angle   float64
	Opacity float64
	// W, H размер увеличенного изображения, X, Y его левый верхний угол в кадре.
	W, H    float64
	X, Y    float64
	Visible bool
}

// FrameAt вычисляет клип в локальный момент t. Без побочных эффектов.
func FrameAt(c Clip, t float64) Transform {
	scale := c.Zoom(t)
	w := float64(c.CoverW) * scale
	h := float64(c.CoverH) * scale
	return Transform{
		Scale:   scale,
		Angle:   c.Tilt,
		Opacity: c.Opacity(t),
		W:       w,
		H:       h,
		X:       (float64(c.FrameW) - w) / 2,
		Y:       (float64(c.FrameH) - h) / 2,
		Visible: t >= 0 && t < c.Duration+c.Hold,
	}
}

// CoverSize масштабирует исходник, чтобы он заполнил кадр с сохранением
// пропорций. Лишнее измерение обрезается по центру.
func CoverSize(srcW, srcH, frameW, frameH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return frameW, frameH
	}
	imgAspect := float64(srcW) / float64(srcH)
	frameAspect := float64(frameW) / float64(frameH)

	if imgAspect > frameAspect {
		h := frameH
		return int(math.Round(float64(h) * imgAspect)), h
	}
	w := frameW
	return w, int(math.Round(float64(w) / imgAspect))
}
