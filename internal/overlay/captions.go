package overlay

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/warnings"
)

// Style вид субтитров: белый текст с тёмной обводкой, перенос по
// WidthRatio ширины кадра, верх блока на Anchor высоты кадра.
type Style struct {
	Size        float64
	Stroke      int
	WidthRatio  float64
	Anchor      float64
	Color       color.Color
	StrokeColor color.Color
	FontPath    string
}

func DefaultStyle() Style {
	return Style{
		Size:        40,
		Stroke:      2,
		WidthRatio:  0.8,
		Anchor:      0.85,
		Color:       color.White,
		StrokeColor: color.NRGBA{A: 0xd9},
	}
}

// ResolveFace берёт шрифт из конфига, затем жирный шрифт системы, затем
// встроенный. Ошибкой может закончиться только последний шаг.
func ResolveFace(style Style, warn *warnings.List) (font.Face, string, error) {
	if style.FontPath != "" {
		face, err := LoadFace(style.FontPath, style.Size)
		if err == nil {
			return face, style.FontPath, nil
		}
		warn.Addf("captions", "шрифт %s не подходит: %v", style.FontPath, err)
	}
	if path, ok := FindBoldFont(FontDirs()...); ok {
		face, err := LoadFace(path, style.Size)
		if err == nil {
			return face, path, nil
		}
		warn.Addf("captions", "шрифт %s не подходит: %v", path, err)
	} else {
		warn.Addf("captions", "жирный шрифт не найден, используется %s", FallbackFont)
	}
	face, err := LoadFace("", style.Size)
	return face, FallbackFont, err
}

// Wrap разбивает текст на строки не шире maxWidth пикселей. Слово
// шире maxWidth занимает отдельную строку.
func Wrap(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	limit := fixed.I(maxWidth)

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if font.MeasureString(face, candidate) <= limit {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// RenderCaption рисует текст в прозрачное изображение размером с кадр.
func RenderCaption(face font.Face, text string, w, h int, style Style) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	lines := Wrap(face, text, int(float64(w)*style.WidthRatio))
	if len(lines) == 0 {
		return dst
	}

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	ascent := m.Ascent.Ceil()
	top := int(float64(h) * style.Anchor)
	if bottom := top + lineHeight*len(lines) + style.Stroke; bottom > h {
		top -= bottom - h
	}

	type placed struct {
		text string
		dot  fixed.Point26_6
	}
	pos := make([]placed, len(lines))
	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		pos[i] = placed{line, fixed.P((w-width)/2, top+ascent+i*lineHeight)}
	}

	// маска обводки собирает все смещения и накладывается один раз
	if style.Stroke > 0 {
		mask := image.NewAlpha(dst.Bounds())
		md := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face}
		r := style.Stroke
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx*dx+dy*dy > r*r || (dx == 0 && dy == 0) {
					continue
				}
				for _, p := range pos {
					md.Dot = p.dot.Add(fixed.P(dx, dy))
					md.DrawString(p.text)
				}
			}
		}
		draw.DrawMask(dst, dst.Bounds(), image.NewUniform(style.StrokeColor), image.Point{}, mask, image.Point{}, draw.Over)
	}

	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(style.Color), Face: face}
	for _, p := range pos {
		drawer.Dot = p.dot
		drawer.DrawString(p.text)
	}
	return dst
}

// BuildCaptions рисует PNG на каждый сегмент и скрипт ffconcat, который
// показывает субтитр на [Start, End) и пустой кадр между ними, всего
// total секунд. Возвращает путь к скрипту.
func BuildCaptions(dir string, segs []subtitle.Segment, w, h int, total float64, face font.Face, style Style, warn *warnings.List) (string, error) {
	if len(segs) == 0 {
		return "", fmt.Errorf("no subtitle segments")
	}
	capDir := filepath.Join(dir, "captions")
	if err := os.MkdirAll(capDir, 0755); err != nil {
		return "", err
	}

	blank := filepath.Join(capDir, "blank.png")
	if err := writePNG(blank, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		return "", err
	}

	type entry struct {
		file     string
		duration float64
	}
	var entries []entry
	cursor := 0.0
	for i, s := range segs {
		start, end := s.Start, s.End
		if start < cursor {
			start = cursor
		}
		if total > 0 && end > total {
			end = total
		}
		if end <= start {
			warn.Addf("captions", "сегмент %d не виден ни одного кадра, пропущен", i+1)
			continue
		}
		if gap := start - cursor; gap > 0.0005 {
			entries = append(entries, entry{blank, gap})
		}

		text := strings.Join(strings.Fields(s.Text), " ")
		path := filepath.Join(capDir, fmt.Sprintf("caption_%04d.png", i+1))
		if err := writePNG(path, RenderCaption(face, text, w, h, style)); err != nil {
			return "", err
		}
		entries = append(entries, entry{path, end - start})
		cursor = end
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no visible captions")
	}
	if total > cursor {
		entries = append(entries, entry{blank, total - cursor})
	}

	script := filepath.Join(capDir, "captions.ffconcat")
	f, err := os.Create(script)
	if err != nil {
		return "", err
	}
	bw := bufio.NewWriter(f)
	fmt.Fprintln(bw, "ffconcat version 1.0")
	for _, e := range entries {
		fmt.Fprintf(bw, "file '%s'\nduration %.3f\n", filepath.Base(e.file), e.duration)
	}
	// concat demuxer игнорирует последнюю длительность, если файл не повторён
	fmt.Fprintf(bw, "file '%s'\n", filepath.Base(entries[len(entries)-1].file))
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", err
	}
	return script, f.Close()
}
