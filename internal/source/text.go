package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextSource читает текстовый или markdown-файл. Первая непустая строка
// становится названием.
type TextSource struct {
	Path string
}

func (s TextSource) Fetch(ctx context.Context, limit int) ([]Story, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	title, body := splitTitle(string(data))
	if body == "" {
		return nil, fmt.Errorf("%s is empty", s.Path)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	}
	return []Story{{
		ID:     "file:" + filepath.Base(s.Path),
		Title:  title,
		Text:   body,
		Source: "file",
	}}, nil
}

func splitTitle(s string) (string, string) {
	text := normalizeText(strings.TrimPrefix(s, "\ufeff"))
	first, rest, found := strings.Cut(text, "\n")
	if !found {
		return "", text
	}
	title := strings.TrimSpace(strings.TrimLeft(first, "# "))
	return title, strings.TrimSpace(rest)
}
