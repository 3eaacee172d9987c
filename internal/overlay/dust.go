package overlay

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/warnings"
)

// Dust описывает петлю частиц. В каждом кадре Dots пылинок, размер
// и прозрачность каждой берутся из заданных диапазонов.
type Dust struct {
	Frames   int
	FPS      int
	Dots     int
	MinSize  int
	MaxSize  int
	MinAlpha int
	MaxAlpha int
	Opacity  float64
}

func DefaultDust() Dust {
	return Dust{
		Frames:   24,
		FPS:      24,
		Dots:     1000,
		MinSize:  1,
		MaxSize:  3,
		MinAlpha: 50,
		MaxAlpha: 150,
		Opacity:  0.3,
	}
}

// SequenceEncoder превращает нумерованную серию PNG в видеофайл.
type SequenceEncoder interface {
	EncodeSequence(ctx context.Context, pattern string, fps int, out string) error
}

// FFmpegSequence кодирует через ffmpeg-go.
type FFmpegSequence struct{}

func (FFmpegSequence) EncodeSequence(ctx context.Context, pattern string, fps int, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ffmpeg.Input(pattern, ffmpeg.KwArgs{"framerate": fps}).
		Output(out, ffmpeg.KwArgs{
			"c:v":     "libx264",
			"pix_fmt": "yuv420p",
			"preset":  "veryfast",
		}).
		OverWriteOutput().
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg dust encode error: %w", err)
	}
	return nil
}

// RenderFrame рисует один кадр на чёрном. У кодера нет альфы, поэтому
// прозрачность пылинки становится её яркостью, как и нужно для screen.
func (d Dust) RenderFrame(dst *image.RGBA, rng *rand.Rand) {
	b := dst.Bounds()
	for i := range dst.Pix {
		if i%4 == 3 {
			dst.Pix[i] = 0xff
		} else {
			dst.Pix[i] = 0
		}
	}

	for i := 0; i < d.Dots; i++ {
		x := b.Min.X + rng.Intn(b.Dx())
		y := b.Min.Y + rng.Intn(b.Dy())
		size := d.MinSize + rng.Intn(d.MaxSize-d.MinSize+1)
		alpha := uint8(d.MinAlpha + rng.Intn(d.MaxAlpha-d.MinAlpha+1))
		speck(dst, x, y, size, alpha)
	}
}

func speck(dst *image.RGBA, cx, cy, size int, level uint8) {
	r := size / 2
	for y := cy - r; y <= cy-r+size-1; y++ {
		for x := cx - r; x <= cx-r+size-1; x++ {
			if !(image.Point{X: x, Y: y}).In(dst.Rect) {
				continue
			}
			if cur := dst.RGBAAt(x, y); cur.R >= level {
				continue
			}
			dst.SetRGBA(x, y, color.RGBA{R: level, G: level, B: level, A: 0xff})
		}
	}
}

// Build пишет кадры параллельно, кодирует их в dir/dust.mp4 и
// удаляет кадры. Ошибки удаления игнорируются.
func (d Dust) Build(ctx context.Context, dir string, w, h int, enc SequenceEncoder, rng *rand.Rand, warn *warnings.List) (string, error) {
	if d.Frames <= 0 || d.Dots < 0 || d.MaxSize < d.MinSize || d.MaxAlpha < d.MinAlpha {
		return "", fmt.Errorf("invalid dust settings %+v", d)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	framesDir := filepath.Join(dir, "dust_frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return "", err
	}

	paths := make([]string, d.Frames)
	seeds := make([]int64, d.Frames)
	for i := range seeds {
		seeds[i] = rng.Int63()
		paths[i] = filepath.Join(framesDir, fmt.Sprintf("dust_%03d.png", i))
	}
	defer func() {
		for _, p := range paths {
			os.Remove(p)
		}
		os.Remove(framesDir)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			frame := system.GetFrame(w, h)
			defer system.PutFrame(frame)

			d.RenderFrame(frame, rand.New(rand.NewSource(seeds[i])))
			return writePNG(paths[i], frame)
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("dust frames: %w", err)
	}

	out := filepath.Join(dir, "dust.mp4")
	fps := d.FPS
	if fps <= 0 {
		fps = 24
	}
	if err := enc.EncodeSequence(ctx, filepath.Join(framesDir, "dust_%03d.png"), fps, out); err != nil {
		return "", err
	}
	if _, err := os.Stat(out); err != nil {
		warn.Addf("overlay", "кодер пыли завершился успешно, но %s не найден", out)
		return "", err
	}
	return out, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
