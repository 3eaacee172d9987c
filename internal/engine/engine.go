package engine

import (
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/story2video/internal/audio"
	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/effects"
	"github.com/ivlev/story2video/internal/overlay"
	"github.com/ivlev/story2video/internal/renderer"
	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/timeline"
	"github.com/ivlev/story2video/internal/video"
	"github.com/ivlev/story2video/internal/warnings"
)

// Compiler собирает промпты, изображения и озвучку в один видеофайл.
// Зависимости вынесены в поля, чтобы тесты подменяли внешние утилиты.
type Compiler struct {
	Video   config.VideoConfig
	Overlay config.OverlayConfig

	Encoder video.Encoder
	Prober  system.Prober
	Dims    timeline.DimensionsFunc
	Mixer   audio.Premixer
	Dust    overlay.SequenceEncoder
	Effect  effects.Effect
	Images  renderer.ImageLoader
	Host    func() system.HostStats
	Rand    *rand.Rand

	// OnState вызывается на каждом переходе, включая последний.
	OnState func(State)
}

func NewCompiler(cfg *config.Config) *Compiler {
	return &Compiler{
		Video:   cfg.Video,
		Overlay: cfg.Overlay,
		Encoder: &video.FFmpegEncoder{},
		Prober:  system.FFProbe{},
		Dims:    system.ImageDimensions,
		Mixer:   audio.FFmpegMixer{},
		Dust:    overlay.FFmpegSequence{},
		Effect:  effects.ByName(cfg.Video.Effect),
		Images:  system.LoadImage,
		Host:    system.ReadHostStats,
	}
}

// run хранит изменяемое состояние одного вызова Compile.
type run struct {
	state State
	warn  *warnings.List
	dir   string
}

// Compile выполняет весь рендер. Не паникует и не возвращает
// ошибку: сбой заканчивается в Aborted с Reason и пустым Path.
func (c *Compiler) Compile(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	r := &run{warn: &warnings.List{}}

	defer func() {
		if p := recover(); p != nil {
			res = c.abort(r, fmt.Errorf("panic: %v", p))
		}
		res.Warnings = r.warn.Items()
		res.Elapsed = time.Since(start)
	}()

	c.enter(r, Validating)
	job, err := c.validate(req, r)
	if err != nil {
		return c.abort(r, err)
	}

	dir, err := os.MkdirTemp("", "story2video_")
	if err != nil {
		return c.abort(r, fmt.Errorf("временная директория: %w", err))
	}
	r.dir = dir
	// очистка выполняется всегда, ошибки только в предупреждения
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.warn.Addf("cleanup", "не удалось удалить %s: %v", dir, err)
		}
	}()

	res = c.render(ctx, job, r)
	res.Clips = len(job.Timeline.Clips)
	res.Duration = job.Mix.Duration
	if res.OK() {
		host := c.host()
		log.Printf("[+++] Видео готово: %s | клипов: %d | %.2fs | уровень: %s | %s | %s",
			res.Path, res.Clips, res.Duration, res.Tier, time.Since(start).Round(time.Millisecond), host)
	}
	return res
}

func (c *Compiler) enter(r *run, s State) {
	r.state = s
	if s != Done && s != Aborted {
		log.Printf("[*] %s", s)
	}
	if c.OnState != nil {
		c.OnState(s)
	}
}

func (c *Compiler) abort(r *run, err error) Result {
	from := r.state
	c.enter(r, Aborted)
	reason := fmt.Sprintf("%s: %v", from, err)
	log.Printf("[-] Сборка прервана: %s", reason)
	return Result{State: Aborted, Reason: reason}
}

func (c *Compiler) host() system.HostStats {
	if c.Host == nil {
		return system.ReadHostStats()
	}
	return c.Host()
}

// validate проверяет входные данные и фиксирует RenderJob. Таймлайн тоже
// строится здесь, в BUILDING_CLIPS: пустой таймлайн это ошибка входа.
func (c *Compiler) validate(req Request, r *run) (RenderJob, error) {
	if req.Audio == "" || !system.FileExists(req.Audio) {
		return RenderJob{}, fmt.Errorf("%w: %q", ErrNoAudio, req.Audio)
	}

	n := min(len(req.Prompts), len(req.Images))
	valid := 0
	for _, p := range req.Images[:n] {
		if system.FileExists(p) {
			valid++
		}
	}
	if valid == 0 {
		return RenderJob{}, fmt.Errorf("%w: %d images for %d prompts", ErrNoImages, len(req.Images), len(req.Prompts))
	}

	narration, err := c.Prober.Duration(req.Audio)
	if err != nil {
		return RenderJob{}, fmt.Errorf("длительность аудио: %w", err)
	}

	quality, ok := video.NormalizeBitrate(req.Quality)
	if req.Quality == "" {
		quality, _ = video.NormalizeBitrate(c.Video.Quality)
	} else if !ok {
		r.warn.Addf("validate", "качество %q не распознано, используется %s", req.Quality, quality)
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = c.Video.AspectRatio
	}

	var segs []subtitle.Segment
	if req.Subtitles != "" {
		segs, err = subtitle.ReadFile(req.Subtitles, r.warn)
		if err != nil {
			r.warn.Addf("subtitles", "субтитры пропущены: %v", err)
			segs = nil
		}
	}

	c.enter(r, BuildingClips)
	rng := c.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	opts := timeline.DefaultOptions()
	opts.Width, opts.Height, opts.FPS = c.Video.Width, c.Video.Height, c.Video.FPS
	tl, err := timeline.Build(req.Prompts, req.Images, opts, c.Dims, rng, r.warn)
	if err != nil {
		return RenderJob{}, err
	}

	mix := audio.Plan(req.Audio, narration, "", 0, c.gainDB())
	if req.Ambient != "" {
		mix = c.planAmbient(req.Audio, narration, req.Ambient, r.warn)
	}

	return RenderJob{
		Timeline:    tl,
		Mix:         mix,
		Subtitles:   segs,
		OutputPath:  OutputPath(c.outputDir(), req.Title),
		Quality:     quality,
		AspectRatio: aspect,
		FPS:         tl.FPS,
		Overlay:     req.Overlay,
	}, nil
}

func (c *Compiler) gainDB() float64 {
	if c.Video.AmbientGainDB == 0 {
		return audio.DefaultGainDB
	}
	return c.Video.AmbientGainDB
}

func (c *Compiler) outputDir() string {
	if c.Video.OutputDir == "" {
		return filepath.Join("output", "videos")
	}
	return c.Video.OutputDir
}

func (c *Compiler) planAmbient(primary string, narration float64, ambient string, warn *warnings.List) audio.Mix {
	plain := audio.Plan(primary, narration, "", 0, c.gainDB())
	if !system.FileExists(ambient) {
		warn.Addf("audio", "фоновый трек %s не найден", ambient)
		return plain
	}
	d, err := c.Prober.Duration(ambient)
	if err != nil {
		warn.Addf("audio", "фоновый трек пропущен: %v", err)
		return plain
	}
	return audio.Plan(primary, narration, ambient, d, c.gainDB())
}

func (c *Compiler) render(ctx context.Context, job RenderJob, r *run) Result {
	tl := job.Timeline

	c.enter(r, CompositingVideo)
	g := renderer.NewGraph(tl.Width, tl.Height, job.FPS, job.Mix.Duration)
	stream := renderer.ComposeTimeline(g, tl, c.Effect)

	c.enter(r, AddingOverlays)
	stream = c.addOverlays(ctx, g, stream, job, r)
	renderer.Finalize(g, stream)

	c.enter(r, MixingAudio)
	renderer.AttachAudio(g, c.mixAudio(ctx, job.Mix, r))

	c.enter(r, Encoding)
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return c.abort(r, err)
	}
	host := c.host()
	tiers := video.Tiers(job.Quality, host.EncoderThreads)
	tier, err := video.EncodeWithFallback(ctx, c.Encoder, g.Args(), tiers, job.OutputPath, func(t video.Tier, err error) {
		r.warn.Addf("encode", "уровень %s не удался: %v", t.Name, err)
	})
	if err != nil {
		return c.abort(r, err)
	}
	if !system.FileExists(job.OutputPath) {
		return c.abort(r, fmt.Errorf("кодировщик завершился, но файл %s не найден", job.OutputPath))
	}

	res := Result{Path: job.OutputPath, Tier: tier.Name}
	if c.Video.Poster {
		res.Poster = c.poster(job, r)
	}
	c.enter(r, Done)
	res.State = Done
	return res
}

// addOverlays возвращает поток с пылью и субтитрами. Каждый оверлей
// необязателен, и сбой выкидывает только его.
func (c *Compiler) addOverlays(ctx context.Context, g *renderer.Graph, in string, job RenderJob, r *run) string {
	out := in
	if job.Overlay && c.Overlay.Dust {
		d := overlay.DefaultDust()
		if c.Overlay.DustDots > 0 {
			d.Dots = c.Overlay.DustDots
		}
		if c.Overlay.DustFrame > 0 {
			d.Frames = c.Overlay.DustFrame
		}
		d.FPS = job.FPS
		path, err := d.Build(ctx, r.dir, g.Width, g.Height, c.Dust, c.Rand, r.warn)
		if err != nil {
			r.warn.Addf("overlay", "пыль пропущена: %v", err)
		} else {
			out = renderer.BlendDust(g, out, path, d.Opacity)
		}
	}

	if len(job.Subtitles) > 0 && c.Overlay.Captions {
		style := overlay.DefaultStyle()
		style.FontPath = c.Overlay.FontPath
		if c.Overlay.FontSize > 0 {
			style.Size = float64(c.Overlay.FontSize)
		}
		face, name, err := overlay.ResolveFace(style, r.warn)
		if err != nil {
			r.warn.Addf("captions", "шрифт недоступен: %v", err)
			return out
		}
		log.Printf("[*] Шрифт субтитров: %s", name)
		script, err := overlay.BuildCaptions(r.dir, job.Subtitles, g.Width, g.Height, job.Mix.Duration, face, style, r.warn)
		if err != nil {
			r.warn.Addf("captions", "субтитры пропущены: %v", err)
			return out
		}
		out = renderer.OverlayCaptions(g, out, script)
	}
	return out
}

// mixAudio возвращает дорожку для подключения: сведённый файл или
// одну озвучку, если фона нет или сведение не удалось.
func (c *Compiler) mixAudio(ctx context.Context, m audio.Mix, r *run) string {
	if !m.HasAmbient() {
		return m.Primary
	}
	log.Printf("[*] Фон: %s x%d (%.1fs), %.1f dB | %s", filepath.Base(m.Ambient), m.Loops+1, m.Covered(), m.GainDB, m.Filter())
	out := filepath.Join(r.dir, "mix.m4a")
	if err := c.Mixer.Premix(ctx, m, out); err != nil {
		r.warn.Addf("audio", "микширование не удалось, только озвучка: %v", err)
		return m.Primary
	}
	if !system.FileExists(out) {
		r.warn.Addf("audio", "микшер не создал %s, только озвучка", out)
		return m.Primary
	}
	return out
}

// poster сохраняет кадр первого клипа в его середине рядом с видео.
func (c *Compiler) poster(job RenderJob, r *run) string {
	tl := job.Timeline
	if len(tl.Clips) == 0 || c.Images == nil {
		return ""
	}
	first := tl.Clips[0]

	frame := system.GetFrame(tl.Width, tl.Height)
	defer system.PutFrame(frame)
	if err := renderer.RenderFrame(frame, tl, first.Start+first.Duration/2, c.Images); err != nil {
		r.warn.Addf("poster", "кадр не отрисован: %v", err)
		return ""
	}

	path := strings.TrimSuffix(job.OutputPath, filepath.Ext(job.OutputPath)) + ".jpg"
	f, err := os.Create(path)
	if err != nil {
		r.warn.Addf("poster", "%v", err)
		return ""
	}
	if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		r.warn.Addf("poster", "%v", err)
		return ""
	}
	if err := f.Close(); err != nil {
		r.warn.Addf("poster", "%v", err)
		return ""
	}
	return path
}
