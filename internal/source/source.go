package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
)

// Story один текст для озвучки.
type Story struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Text      string    `json:"text" yaml:"text"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
	Source    string    `json:"source" yaml:"source"`
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`
}

type Source interface {
	Fetch(ctx context.Context, limit int) ([]Story, error)
}

// Claimer помечает id истории как использованный. Claim возвращает false,
// если id уже занят.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
}

// FirstUnused забирает и возвращает первую ещё не использованную историю.
// С nil Claimer берётся первая история.
func FirstUnused(ctx context.Context, stories []Story, c Claimer) (Story, error) {
	if c == nil && len(stories) > 0 {
		return stories[0], nil
	}
	for _, s := range stories {
		ok, err := c.Claim(ctx, s.ID)
		if err != nil {
			return Story{}, fmt.Errorf("claim %s: %w", s.ID, err)
		}
		if ok {
			return s, nil
		}
	}
	return Story{}, fmt.Errorf("no unused stories among %d", len(stories))
}

// PDFSource читает текстовый слой PDF как одну историю.
type PDFSource struct {
	Path string
}

func (p PDFSource) Fetch(ctx context.Context, limit int) ([]Story, error) {
	doc, err := fitz.New(p.Path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s has no text layer", p.Path)
	}

	name := strings.TrimSuffix(filepath.Base(p.Path), filepath.Ext(p.Path))
	return []Story{{
		ID:     "pdf:" + name,
		Title:  name,
		Text:   normalizeText(strings.Join(pages, "\n\n")),
		Source: "pdf",
	}}, nil
}

// normalizeText схлопывает пустые строки и обрезает пробелы в каждой строке.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var out []string
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
