// Package imagegen скачивает иллюстрации сцен у HTTP-сервиса
// генерации изображений по промпту.
package imagegen

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/warnings"
)

const (
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) story2video"
	// всё, что короче, это страница ошибки, а не картинка
	minImageBytes = 100
)

type Client struct {
	BaseURL  string
	Width    int
	Height   int
	Model    string
	Attempts int
	Delay    time.Duration
	HTTP     *http.Client
}

func NewClient(cfg config.ImagesConfig) *Client {
	return &Client{
		BaseURL:  cfg.BaseURL,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Model:    cfg.Model,
		Attempts: cfg.Attempts,
		Delay:    3 * time.Second,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) requestURL(prompt string, seed int) string {
	return fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(prompt), c.Width, c.Height, url.QueryEscape(c.Model), seed)
}

// Generate скачивает изображение по prompt в out, повторяя с
// растущей паузой.
func (c *Client) Generate(ctx context.Context, prompt string, seed int, out string) error {
	attempts := max(c.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.fetch(ctx, c.requestURL(prompt, seed), out); err == nil {
			return nil
		}
		log.Printf("[!] Иллюстрация, попытка %d не удалась: %v", attempt, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.Delay):
		}
	}
	return fmt.Errorf("image failed after %d attempts: %w", attempts, err)
}

func (c *Client) fetch(ctx context.Context, u, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < minImageBytes {
		return fmt.Errorf("response too small (%d bytes)", len(data))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return err
	}
	return os.WriteFile(out, data, 0644)
}

// GenerateAll пишет scene_NNN.png для каждого промпта в dir. Неудачные сцены
// попадают в предупреждения и пропускаются; промпты и пути остаются парами.
func (c *Client) GenerateAll(ctx context.Context, prompts []director.Prompt, dir string, warn *warnings.List) ([]director.Prompt, []string, error) {
	var kept []director.Prompt
	var paths []string
	for i, p := range prompts {
		if err := ctx.Err(); err != nil {
			return kept, paths, err
		}
		out := filepath.Join(dir, fmt.Sprintf("scene_%03d.png", i+1))
		log.Printf("[*] Иллюстрация %d/%d", i+1, len(prompts))
		if err := c.Generate(ctx, p.Prompt, 1000+i, out); err != nil {
			warn.Addf("images", "сцена %d: %v", i+1, err)
			continue
		}
		kept = append(kept, p)
		paths = append(paths, out)
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no scene images were generated")
	}
	return kept, paths, nil
}
