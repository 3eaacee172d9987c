package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/story2video/internal/api"
	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/jobs"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/project"
	"github.com/ivlev/story2video/internal/queue"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/system"
)

func main() {
	system.InitResourceLimits()

	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[!] Не удалось прочитать .env: %v", err)
	}

	modePtr := flag.String("mode", "compile", "Режим: compile, run, serve, consume")
	configPtr := flag.String("config", "config.yaml", "Путь к YAML конфигурации (если файла нет, используются значения по умолчанию)")

	scenarioPtr := flag.String("scenario", "", "compile: сценарий со сценами (по умолчанию: input/scenario.yaml)")
	imagesPtr := flag.String("images", filepath.Join("input", "images"), "compile: папка с изображениями сцен")
	audioPtr := flag.String("audio", "", "compile: озвучка (по умолчанию: самый свежий файл в input/audio/)")
	subtitlesPtr := flag.String("subtitles", "", "compile: SRT для субтитров")
	ambientPtr := flag.String("ambient", "", "compile: фоновый звук")
	titlePtr := flag.String("title", "", "Название видео")
	qualityPtr := flag.String("quality", "", "Битрейт видео, например 4000k или 8M")
	overlayPtr := flag.Bool("overlay", true, "Пыль и субтитры поверх видео")

	storyPtr := flag.String("story", "", "run: файл истории .txt/.md/.pdf (по умолчанию: самый свежий файл в input/stories/, иначе RSS)")
	projectPtr := flag.String("project", "", "run: продолжить существующий проект по id")
	fromPtr := flag.String("from", "", "run: начать с этапа ("+strings.Join(pipeline.Stages, ", ")+")")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	if *qualityPtr != "" {
		cfg.Video.Quality = *qualityPtr
	}
	for _, d := range []string{filepath.Join("input", "audio"), filepath.Join("input", "images"), filepath.Join("input", "stories"), cfg.Video.OutputDir, cfg.ProjectsDir()} {
		os.MkdirAll(d, 0755)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *modePtr {
	case "compile":
		err = runCompile(ctx, cfg, compileArgs{
			scenario:  *scenarioPtr,
			images:    *imagesPtr,
			audio:     *audioPtr,
			subtitles: *subtitlesPtr,
			ambient:   *ambientPtr,
			title:     *titlePtr,
			overlay:   *overlayPtr,
		})
	case "run":
		err = runPipeline(ctx, cfg, *storyPtr, *projectPtr, *titlePtr, *fromPtr)
	case "serve":
		err = serve(ctx, cfg)
	case "consume":
		err = consume(ctx, cfg)
	default:
		err = fmt.Errorf("неизвестный режим %q", *modePtr)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

type compileArgs struct {
	scenario, images, audio, subtitles, ambient, title string
	overlay                                            bool
}

func runCompile(ctx context.Context, cfg *config.Config, a compileArgs) error {
	if a.scenario == "" {
		a.scenario = filepath.Join("input", "scenario.yaml")
	}
	sc, err := director.ReadScenario(a.scenario)
	if err != nil {
		return fmt.Errorf("сценарий: %w", err)
	}
	images, err := source.ImagesIn(a.images)
	if err != nil {
		return fmt.Errorf("изображения: %w", err)
	}
	if a.audio == "" {
		latest, err := system.FindLatestAudio(filepath.Join("input", "audio"))
		if err != nil {
			return fmt.Errorf("%v. Положите озвучку в input/audio/", err)
		}
		a.audio = latest
		log.Printf("[*] Выбрано аудио: %s", a.audio)
	}
	if a.title == "" {
		a.title = strings.TrimSuffix(filepath.Base(a.audio), filepath.Ext(a.audio))
	}

	c := engine.NewCompiler(cfg)
	c.OnState = func(s engine.State) { log.Printf("[*] Состояние: %s", s) }
	res := c.Compile(ctx, engine.Request{
		Prompts:     sc.Scenes,
		Images:      images,
		Audio:       a.audio,
		Title:       a.title,
		Subtitles:   a.subtitles,
		Ambient:     a.ambient,
		Quality:     cfg.Video.Quality,
		AspectRatio: cfg.Video.AspectRatio,
		Overlay:     a.overlay,
	})
	if !res.OK() {
		return errors.New(res.Reason)
	}
	fmt.Printf("[+++] Успех! Результат: %s (%d клипов, %.1fs, профиль %s)\n", res.Path, res.Clips, res.Duration, res.Tier)
	return nil
}

func runPipeline(ctx context.Context, cfg *config.Config, storyPath, projectID, title, from string) error {
	deps, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	store := deps.store
	var p *project.Project
	if projectID != "" {
		if p, err = store.Load(projectID); err != nil {
			return fmt.Errorf("проект %s: %w", projectID, err)
		}
	} else {
		if p, err = store.Create(title); err != nil {
			return err
		}
		if storyPath == "" {
			if latest, err := system.FindLatestStory(filepath.Join("input", "stories")); err == nil {
				storyPath = latest
				log.Printf("[*] Выбрана история: %s", storyPath)
			}
		}
		if storyPath != "" {
			story, err := readStory(ctx, storyPath)
			if err != nil {
				return err
			}
			p.Story = story.Text
			if p.Title == "" {
				p.Title = story.Title
			}
		}
		log.Printf("[*] Создан проект %s", p.ID)
	}

	pl := deps.newPipeline()
	start := time.Now()
	err = pl.Run(ctx, p, from, func(pr pipeline.Progress) {
		log.Printf("[*] %3.0f%% %s", pr.Percent, pr.Message)
	})
	if err != nil {
		return err
	}
	fmt.Printf("[+++] Успех! Видео: %s, экспорт: %s (за %s)\n", p.VideoPath, p.ExportDir, time.Since(start).Round(time.Second))
	return nil
}

func readStory(ctx context.Context, path string) (source.Story, error) {
	var src source.Source = source.TextSource{Path: path}
	if system.HasExtension(path, ".pdf") {
		src = source.PDFSource{Path: path}
	}
	stories, err := src.Fetch(ctx, 1)
	if err != nil {
		return source.Story{}, err
	}
	if len(stories) == 0 {
		return source.Story{}, fmt.Errorf("%s: история не найдена", path)
	}
	return stories[0], nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	deps, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	manager := jobs.NewManager(ctx, cfg.Server.Workers)
	s := &api.Server{
		Store:       deps.store,
		Jobs:        manager,
		NewPipeline: func() pipeline.Runner { return deps.newPipeline() },
		NewCompiler: func(onState func(engine.State)) pipeline.VideoCompiler {
			c := engine.NewCompiler(cfg)
			c.OnState = onState
			return c
		},
	}
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: s.NewRouter()}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Printf("[*] HTTP API слушает %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	manager.Wait()
	return nil
}

func consume(ctx context.Context, cfg *config.Config) error {
	deps, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	manager := jobs.NewManager(ctx, cfg.Server.Workers)
	handler := queue.NewRequestHandler(deps.store, manager, func() pipeline.Runner { return deps.newPipeline() })
	c, err := queue.NewConsumer(cfg.Kafka, handler)
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.Run(ctx)
	manager.Wait()
	return err
}
