package renderer

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/story2video/internal/timeline"
)

// ImageLoader возвращает декодированное исходное изображение клипа.
type ImageLoader func(path string) (image.Image, error)

// ClipMatrix переводит пиксели исходника c в координаты кадра для
// преобразования: масштаб до увеличенного cover-размера, поворот на наклон
// вокруг центра кадра.
func ClipMatrix(c timeline.Clip, tr timeline.Transform) f64.Aff3 {
	if c.SourceW <= 0 || c.SourceH <= 0 {
		return f64.Aff3{1, 0, 0, 0, 1, 0}
	}
	s := tr.W / float64(c.SourceW)
	rad := tr.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	a, b := s*cos, -s*sin
	d, e := s*sin, s*cos

	srcCX, srcCY := float64(c.SourceW)/2, float64(c.SourceH)/2
	dstCX, dstCY := float64(c.FrameW)/2, float64(c.FrameH)/2

	return f64.Aff3{
		a, b, dstCX - (a*srcCX + b*srcCY),
		d, e, dstCY - (d*srcCX + e*srcCY),
	}
}

// RenderFrame рисует таймлайн в момент ts в dst, нижний клип первым,
// с тем же преобразованием, что и фильтры кодера.
func RenderFrame(dst *image.RGBA, tl timeline.Timeline, ts float64, load ImageLoader) error {
	stddraw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, stddraw.Src)

	for _, i := range tl.ClipAt(ts) {
		c := tl.Clips[i]
		tr := timeline.FrameAt(c, ts-c.Start)
		if !tr.Visible || tr.Opacity <= 0 {
			continue
		}

		src, err := load(c.Image)
		if err != nil {
			return err
		}
		// декодированный размер важнее размера из probe
		b := src.Bounds()
		c.SourceW, c.SourceH = b.Dx(), b.Dy()

		opts := &draw.Options{}
		if tr.Opacity < 1 {
			opts.SrcMask = image.NewUniform(color.Alpha{A: uint8(math.Round(tr.Opacity * 255))})
		}
		draw.CatmullRom.Transform(dst, ClipMatrix(c, tr), src, b, draw.Over, opts)
	}
	return nil
}
