package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/warnings"
)

// Narrator озвучивает текст внешней командой TTS. Шаблон
// получает {in} (текстовый файл), {out}, {voice}.
type Narrator struct {
	Command  string
	Voice    string
	Attempts int
	Delay    time.Duration
	Runner   Runner
}

func NewNarrator(cfg config.SpeechConfig) *Narrator {
	return &Narrator{
		Command:  cfg.TTSCommand,
		Voice:    cfg.Voice,
		Attempts: cfg.Attempts,
		Delay:    2 * time.Second,
		Runner:   ExecRunner{},
	}
}

func (n *Narrator) Narrate(ctx context.Context, text, out string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to narrate")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	script := strings.TrimSuffix(out, filepath.Ext(out)) + ".txt"
	if err := os.WriteFile(script, []byte(text), 0644); err != nil {
		return err
	}

	argv, err := Expand(n.Command, map[string]string{"in": script, "out": out, "voice": n.Voice})
	if err != nil {
		return err
	}

	attempts := max(n.Attempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err = n.Runner.Run(ctx, argv[0], argv[1:]...)
		if err == nil {
			err = nonEmpty(out)
		}
		if err == nil {
			return nil
		}
		log.Printf("[!] Озвучка, попытка %d не удалась: %v", attempt, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * n.Delay):
		}
	}
	return fmt.Errorf("tts failed after %d attempts: %w", attempts, err)
}

func nonEmpty(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("no output: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}

// Transcriber получает субтитры с таймингом командой распознавания речи.
// Шаблон получает {in} (аудио) и {dir}; утилита пишет <base>.srt.
type Transcriber struct {
	Command string
	Runner  Runner
}

func NewTranscriber(cfg config.SpeechConfig) *Transcriber {
	return &Transcriber{Command: cfg.WhisperCommand, Runner: ExecRunner{}}
}

// Transcribe возвращает dir/subtitles.srt, проверив, что он разбирается.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, dir string, warn *warnings.List) (string, []subtitle.Segment, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, err
	}
	argv, err := Expand(t.Command, map[string]string{"in": audioPath, "dir": dir})
	if err != nil {
		return "", nil, err
	}
	if _, err := t.Runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		return "", nil, fmt.Errorf("transcription failed: %w", err)
	}

	target := filepath.Join(dir, "subtitles.srt")
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	produced := filepath.Join(dir, base+".srt")
	if produced != target {
		if err := os.Rename(produced, target); err != nil && !os.IsNotExist(err) {
			return "", nil, err
		}
	}

	segs, err := subtitle.ReadFile(target, warn)
	if err != nil {
		return "", nil, err
	}
	if len(segs) == 0 {
		return "", nil, fmt.Errorf("%s has no segments", target)
	}
	log.Printf("[*] Субтитры: %d сегментов, %.1fs", len(segs), subtitle.TotalDuration(segs))
	return target, segs, nil
}
