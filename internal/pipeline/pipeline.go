// Package pipeline ведёт проект истории от исходного текста до экспорта видео.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/project"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/system"
	"github.com/ivlev/story2video/internal/warnings"
)

const (
	StageFetch     = "fetch"
	StageEnhance   = "enhance"
	StageNarration = "narration"
	StageSubtitles = "subtitles"
	StageScenes    = "scenes"
	StageImages    = "images"
	StageVideo     = "video"
	StageExport    = "export"
)

// Stages все этапы в порядке выполнения.
var Stages = []string{StageFetch, StageEnhance, StageNarration, StageSubtitles, StageScenes, StageImages, StageVideo, StageExport}

var ErrUnknownStage = errors.New("unknown stage")

type Enhancer interface {
	Enhance(ctx context.Context, story string) (string, error)
}

type Director interface {
	DescribeScenes(ctx context.Context, chunks []director.Chunk) ([]director.Prompt, error)
	ImagePrompts(ctx context.Context, scenes []director.Prompt) ([]director.Prompt, error)
}

type Narrator interface {
	Narrate(ctx context.Context, text, out string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, dir string, warn *warnings.List) (string, []subtitle.Segment, error)
}

type Illustrator interface {
	GenerateAll(ctx context.Context, prompts []director.Prompt, dir string, warn *warnings.List) ([]director.Prompt, []string, error)
}

type VideoCompiler interface {
	Compile(ctx context.Context, req engine.Request) engine.Result
}

type Exporter interface {
	Export(ctx context.Context, p *project.Project) (export.Bundle, error)
}

// Runner запускает проект с этапа. *Pipeline его реализует.
type Runner interface {
	Run(ctx context.Context, p *project.Project, from string, progress func(Progress)) error
}

// Progress сообщается перед каждым этапом и один раз в конце.
type Progress struct {
	Stage   string  `json:"stage"`
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// Pipeline связывает исполнителей всех этапов. Nil Enhancer оставляет
// исходный текст; nil Exporter пропускает экспорт.
type Pipeline struct {
	Store   *project.Store
	Sources []source.Source
	Claimer source.Claimer

	Enhancer    Enhancer
	Director    Director
	Narrator    Narrator
	Transcriber Transcriber
	Illustrator Illustrator
	Exporter    Exporter

	// NewCompiler возвращает компилятор для одного этапа video.
	NewCompiler func() VideoCompiler

	Video config.VideoConfig
	Limit int
	Warn  *warnings.List
}

// StagesFrom возвращает этапы, начиная с from. Пустой from означает все.
func StagesFrom(from string) ([]string, error) {
	if from == "" {
		return Stages, nil
	}
	i := slices.Index(Stages, from)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, from)
	}
	return Stages[i:], nil
}

// Run выполняет этапы начиная с from и сохраняет p после каждого.
func (pl *Pipeline) Run(ctx context.Context, p *project.Project, from string, progress func(Progress)) error {
	stages, err := StagesFrom(from)
	if err != nil {
		return err
	}
	report := func(pr Progress) {
		if progress != nil {
			progress(pr)
		}
	}

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		report(Progress{
			Stage:   stage,
			Index:   i + 1,
			Total:   len(stages),
			Percent: float64(i) / float64(len(stages)) * 100,
			Message: "running " + stage,
		})
		log.Printf("[*] Этап %s (%d/%d) для проекта %s", stage, i+1, len(stages), p.ID)

		if err := pl.runStage(ctx, stage, p); err != nil {
			err = fmt.Errorf("%s: %w", stage, err)
			if serr := pl.save(p); serr != nil {
				err = errors.Join(err, fmt.Errorf("save project: %w", serr))
			}
			return err
		}
		p.MarkDone(stage)
		if err := pl.save(p); err != nil {
			return fmt.Errorf("save project: %w", err)
		}
	}
	report(Progress{Stage: stages[len(stages)-1], Index: len(stages), Total: len(stages), Percent: 100, Message: "done"})
	return nil
}

func (pl *Pipeline) save(p *project.Project) error {
	if pl.Store == nil {
		return nil
	}
	return pl.Store.Save(p)
}

func (pl *Pipeline) dir(p *project.Project) string {
	if pl.Store != nil {
		return pl.Store.Path(p.ID)
	}
	return filepath.Join(pl.Video.OutputDir, p.ID)
}

func (pl *Pipeline) runStage(ctx context.Context, stage string, p *project.Project) error {
	switch stage {
	case StageFetch:
		return pl.fetch(ctx, p)
	case StageEnhance:
		return pl.enhance(ctx, p)
	case StageNarration:
		return pl.narrate(ctx, p)
	case StageSubtitles:
		return pl.transcribe(ctx, p)
	case StageScenes:
		return pl.scenes(ctx, p)
	case StageImages:
		return pl.images(ctx, p)
	case StageVideo:
		return pl.video(ctx, p)
	case StageExport:
		return pl.export(ctx, p)
	}
	return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
}

func (pl *Pipeline) fetch(ctx context.Context, p *project.Project) error {
	if strings.TrimSpace(p.Story) != "" {
		return nil
	}
	if len(pl.Sources) == 0 {
		return errors.New("project has no story and no sources are configured")
	}
	var stories []source.Story
	for _, src := range pl.Sources {
		got, err := src.Fetch(ctx, pl.Limit)
		if err != nil {
			pl.Warn.Addf(StageFetch, "%v", err)
			continue
		}
		stories = append(stories, got...)
	}
	story, err := source.FirstUnused(ctx, stories, pl.Claimer)
	if err != nil {
		return err
	}
	p.Story = story.Text
	p.URL = story.URL
	p.SourceID = story.ID
	if p.Title == "" {
		p.Title = story.Title
	}
	return nil
}

func (pl *Pipeline) enhance(ctx context.Context, p *project.Project) error {
	if pl.Enhancer == nil {
		p.Enhanced = p.Story
		return nil
	}
	text, err := pl.Enhancer.Enhance(ctx, p.Story)
	if err != nil || strings.TrimSpace(text) == "" {
		pl.Warn.Addf(StageEnhance, "оставлен исходный текст: %v", err)
		text = p.Story
	}
	p.Enhanced = text
	return nil
}

func narrationText(p *project.Project) string {
	if p.Enhanced != "" {
		return p.Enhanced
	}
	return p.Story
}

func (pl *Pipeline) narrate(ctx context.Context, p *project.Project) error {
	out := filepath.Join(pl.dir(p), "audio", "narration.mp3")
	if err := pl.Narrator.Narrate(ctx, narrationText(p), out); err != nil {
		return err
	}
	p.AudioPath = out
	return nil
}

func (pl *Pipeline) transcribe(ctx context.Context, p *project.Project) error {
	if p.AudioPath == "" {
		return engine.ErrNoAudio
	}
	path, _, err := pl.Transcriber.Transcribe(ctx, p.AudioPath, filepath.Join(pl.dir(p), "subtitles"), pl.Warn)
	if err != nil {
		return err
	}
	p.SubtitlesPath = path
	return nil
}

func (pl *Pipeline) scenes(ctx context.Context, p *project.Project) error {
	segs, err := subtitle.ReadFile(p.SubtitlesPath, pl.Warn)
	if err != nil {
		return err
	}
	chunks := director.Chunks(segs, max(pl.Video.ChunkSize, 1))
	if len(chunks) == 0 {
		return errors.New("subtitles are too short for a single scene")
	}
	if n := director.Dropped(segs, max(pl.Video.ChunkSize, 1)); n > 0 {
		pl.Warn.Addf(StageScenes, "%d последних сегментов не заполняют сцену", n)
	}

	described, err := pl.Director.DescribeScenes(ctx, chunks)
	if err != nil {
		return err
	}
	prompts, err := pl.Director.ImagePrompts(ctx, described)
	if err != nil {
		return err
	}
	if err := director.WriteScenario(filepath.Join(pl.dir(p), "scenario.yaml"), p.Style, prompts); err != nil {
		return err
	}
	p.Scenes = prompts
	return nil
}

func (pl *Pipeline) images(ctx context.Context, p *project.Project) error {
	if len(p.Scenes) == 0 {
		return errors.New("project has no scenes")
	}
	kept, paths, err := pl.Illustrator.GenerateAll(ctx, p.Scenes, filepath.Join(pl.dir(p), "images"), pl.Warn)
	if err != nil {
		return err
	}
	p.Scenes, p.ImagePaths = kept, paths
	return nil
}

func (pl *Pipeline) video(ctx context.Context, p *project.Project) error {
	req := engine.Request{
		Prompts:     p.Scenes,
		Images:      p.ImagePaths,
		Audio:       p.AudioPath,
		Title:       p.Title,
		Subtitles:   p.SubtitlesPath,
		Quality:     pl.Video.Quality,
		AspectRatio: pl.Video.AspectRatio,
		Overlay:     true,
	}
	if pl.Video.AmbientDir != "" {
		if amb, err := system.FindLatestAudio(pl.Video.AmbientDir); err == nil {
			req.Ambient = amb
		}
	}

	res := pl.NewCompiler().Compile(ctx, req)
	pl.Warn.Merge(res.Warnings...)
	if !res.OK() {
		return errors.New(res.Reason)
	}
	p.VideoPath = res.Path
	return nil
}

func (pl *Pipeline) export(ctx context.Context, p *project.Project) error {
	if pl.Exporter == nil {
		return nil
	}
	b, err := pl.Exporter.Export(ctx, p)
	if err != nil {
		return err
	}
	p.ExportDir = b.Dir
	p.ShareURL = b.VideoURL
	return nil
}
