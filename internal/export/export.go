// Package export собирает готовую историю в пакет для публикации и
// при необходимости выгружает его.
package export

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/project"
	"github.com/ivlev/story2video/internal/subtitle"
)

// Bundle описывает экспортированный проект.
type Bundle struct {
	Dir      string   `json:"dir"`
	Files    []string `json:"files"`
	VideoURL string   `json:"video_url,omitempty"`
}

type Exporter struct {
	Dir      string
	QRCode   bool
	Uploader Uploader // nil оставляет пакет локальным
	Prefix   string
	URLTTL   time.Duration
}

// Export копирует артефакты проекта в <Dir>/<title>/. Видео обязательно,
// остальное копируется, если есть.
func (e *Exporter) Export(ctx context.Context, p *project.Project) (Bundle, error) {
	if p.VideoPath == "" {
		return Bundle{}, fmt.Errorf("project %s has no video", p.ID)
	}
	name := engine.SanitizeTitle(p.Title)
	b := Bundle{Dir: filepath.Join(e.Dir, name)}
	if err := os.MkdirAll(b.Dir, 0755); err != nil {
		return Bundle{}, err
	}

	add := func(src, rel string) error {
		dst := filepath.Join(b.Dir, rel)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("export %s: %w", rel, err)
		}
		b.Files = append(b.Files, rel)
		return nil
	}

	if err := add(p.VideoPath, filepath.Join("video", "final_video.mp4")); err != nil {
		return Bundle{}, err
	}
	if p.AudioPath != "" {
		if err := add(p.AudioPath, filepath.Join("audio", "narration"+filepath.Ext(p.AudioPath))); err != nil {
			return Bundle{}, err
		}
	}
	if p.SubtitlesPath != "" {
		if err := add(p.SubtitlesPath, filepath.Join("subtitles", "subtitles.srt")); err != nil {
			return Bundle{}, err
		}
	}
	for i, img := range p.ImagePaths {
		rel := filepath.Join("images", fmt.Sprintf("scene_%03d%s", i+1, filepath.Ext(img)))
		if err := add(img, rel); err != nil {
			return Bundle{}, err
		}
	}
	if e.QRCode && p.URL != "" {
		if err := qrcode.WriteFile(p.URL, qrcode.Medium, 256, filepath.Join(b.Dir, "qr.png")); err != nil {
			log.Printf("[!] QR код не создан: %v", err)
		} else {
			b.Files = append(b.Files, "qr.png")
		}
	}
	if err := os.WriteFile(filepath.Join(b.Dir, "README.txt"), []byte(readme(p)), 0644); err != nil {
		return Bundle{}, err
	}
	b.Files = append(b.Files, "README.txt")

	if e.Uploader != nil {
		url, err := e.upload(ctx, name, b)
		if err != nil {
			return b, err
		}
		b.VideoURL = url
	}
	return b, nil
}

func (e *Exporter) key(name, rel string) string {
	parts := []string{name, filepath.ToSlash(rel)}
	if e.Prefix != "" {
		parts = append([]string{strings.Trim(e.Prefix, "/")}, parts...)
	}
	return strings.Join(parts, "/")
}

func (e *Exporter) upload(ctx context.Context, name string, b Bundle) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, rel := range b.Files {
		g.Go(func() error {
			return e.Uploader.Upload(gctx, e.key(name, rel), filepath.Join(b.Dir, rel))
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("upload bundle: %w", err)
	}
	ttl := e.URLTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return e.Uploader.Presign(ctx, e.key(name, filepath.Join("video", "final_video.mp4")), ttl)
}

func readme(p *project.Project) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s\n\n", p.Title, strings.Repeat("=", len([]rune(p.Title))))
	if p.URL != "" {
		fmt.Fprintf(&sb, "Source: %s\n", p.URL)
	}
	fmt.Fprintf(&sb, "Created: %s\n", p.Created.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Scenes: %d\n\n", len(p.Scenes))
	for i, s := range p.Scenes {
		fmt.Fprintf(&sb, "%3d. [%s - %s] %s\n", i+1, subtitle.Format(s.Start), subtitle.Format(s.End), s.OriginalDescription)
	}
	return sb.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
