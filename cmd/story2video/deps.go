package main

import (
	"context"
	"log"

	"github.com/ivlev/story2video/internal/ai"
	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/imagegen"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/project"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/speech"
	"github.com/ivlev/story2video/internal/storycache"
	"github.com/ivlev/story2video/internal/warnings"
)

// deps хранит долгоживущие зависимости, общие для всех запусков пайплайна.
type deps struct {
	cfg      *config.Config
	store    *project.Store
	cache    storycache.Cache
	gen      ai.Generator
	uploader export.Uploader
}

func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	cache, err := storycache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, store: project.NewStore(cfg.ProjectsDir()), cache: cache}

	if gen, err := ai.NewCohereGenerator(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Temperature); err != nil {
		log.Printf("[!] Генерация текста недоступна: %v", err)
		d.gen = ai.Unavailable{Err: err}
	} else {
		d.gen = gen
	}

	if cfg.Export.Bucket != "" {
		up, err := export.NewS3Uploader(ctx, cfg.Export)
		if err != nil {
			cache.Close()
			return nil, err
		}
		d.uploader = up
	}
	return d, nil
}

func (d *deps) Close() error {
	return d.cache.Close()
}

// newPipeline собирает пайплайн со своим списком предупреждений.
func (d *deps) newPipeline() *pipeline.Pipeline {
	cfg := d.cfg
	warn := &warnings.List{}

	writer := ai.NewWriter(d.gen, cfg.AI.Style, warn)
	writer.Attempts = max(cfg.AI.Attempts, 1)

	var enhancer pipeline.Enhancer = writer
	if _, ok := d.gen.(ai.Unavailable); ok {
		enhancer = nil
	}

	return &pipeline.Pipeline{
		Store: d.store,
		Sources: []source.Source{source.FeedSource{
			Subreddits: cfg.Sources.Subreddits,
			TimeFilter: cfg.Sources.TimeFilter,
			MinLength:  cfg.Sources.MinLength,
		}},
		Claimer:     d.cache,
		Enhancer:    enhancer,
		Director:    writer,
		Narrator:    speech.NewNarrator(cfg.Speech),
		Transcriber: speech.NewTranscriber(cfg.Speech),
		Illustrator: imagegen.NewClient(cfg.Images),
		Exporter: &export.Exporter{
			Dir:      cfg.Export.Dir,
			QRCode:   cfg.Export.QRCode,
			Uploader: d.uploader,
			Prefix:   cfg.Export.Prefix,
		},
		NewCompiler: func() pipeline.VideoCompiler { return engine.NewCompiler(cfg) },
		Video:       cfg.Video,
		Limit:       cfg.Sources.Limit,
		Warn:        warn,
	}
}
