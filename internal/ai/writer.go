package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/warnings"
)

// Writer превращает истории и куски субтитров в сценарий озвучки, описания
// сцен и промпты для изображений.
type Writer struct {
	Gen      Generator
	Attempts int
	// Delay это шаг паузы: попытка n ждёт (n+1)*2*Delay после
	// ответа 429.
	Delay time.Duration
	Style string
	Warn  *warnings.List

	sleep func(ctx context.Context, d time.Duration) error
}

func NewWriter(gen Generator, style string, warn *warnings.List) *Writer {
	return &Writer{Gen: gen, Attempts: 3, Delay: 2 * time.Second, Style: style, Warn: warn}
}

func (w *Writer) wait(ctx context.Context, d time.Duration) error {
	if w.sleep != nil {
		return w.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ask повторяет только вызовы, упёршиеся в лимит. Прочие ошибки возвращаются сразу.
func (w *Writer) ask(ctx context.Context, preamble, prompt string) (string, error) {
	attempts := max(w.Attempts, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var text string
		text, err = w.Gen.Generate(ctx, preamble, prompt)
		if err == nil {
			return clean(text), nil
		}
		if !IsRateLimited(err) || attempt == attempts-1 {
			break
		}
		backoff := time.Duration(attempt+1) * 2 * w.Delay
		w.Warn.Addf("ai", "лимит запросов, ждём %s", backoff)
		if werr := w.wait(ctx, backoff); werr != nil {
			return "", werr
		}
	}
	return "", err
}

// Enhance переписывает историю в сценарий озвучки со вступлением и концовкой.
func (w *Writer) Enhance(ctx context.Context, story string) (string, error) {
	if strings.TrimSpace(story) == "" {
		return "", errors.New("empty story")
	}
	text, err := w.ask(ctx, narratorPreamble, enhancePrompt(story))
	if err != nil {
		return "", fmt.Errorf("enhance story: %w", err)
	}
	return text, nil
}

// DescribeScenes возвращает по записи на каждый кусок с заполненным
// описанием сцены. Если модель не справилась, ставится запасное описание,
// и окна сцен остаются выровнены с субтитрами.
func (w *Writer) DescribeScenes(ctx context.Context, chunks []director.Chunk) ([]director.Prompt, error) {
	scenes := make([]director.Prompt, 0, len(chunks))
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		desc, err := w.ask(ctx, directorPreamble, scenePrompt(ch.Text))
		if err != nil || desc == "" {
			w.Warn.Addf("ai", "сцена %d: запасное описание (%v)", i+1, err)
			desc = FallbackDescription
		}
		scenes = append(scenes, director.Prompt{
			Start:               ch.Window.Start,
			End:                 ch.Window.End,
			OriginalDescription: desc,
		})
	}
	return scenes, nil
}

// ImagePrompts заполняет Prompt каждой сцены по её описанию.
func (w *Writer) ImagePrompts(ctx context.Context, scenes []director.Prompt) ([]director.Prompt, error) {
	out := make([]director.Prompt, len(scenes))
	for i, s := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := w.ask(ctx, artistPreamble, imagePrompt(s.OriginalDescription, w.Style))
		if err != nil || text == "" {
			w.Warn.Addf("ai", "промпт %d: запасной вариант (%v)", i+1, err)
			s.Prompt = FallbackImagePrompt(s.OriginalDescription)
		} else {
			s.Prompt = text + DetailSuffix
		}
		out[i] = s
	}
	return out, nil
}
