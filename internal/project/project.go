// Package project хранит запись истории, которую пайплайн заполняет
// этап за этапом.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/story2video/internal/director"
)

const recordName = "project.yaml"

var ErrNotFound = errors.New("project not found")

type Project struct {
	ID            string            `yaml:"id" json:"id"`
	Title         string            `yaml:"title" json:"title"`
	Story         string            `yaml:"story,omitempty" json:"story,omitempty"`
	Enhanced      string            `yaml:"enhanced,omitempty" json:"enhanced,omitempty"`
	URL           string            `yaml:"url,omitempty" json:"url,omitempty"`
	SourceID      string            `yaml:"source_id,omitempty" json:"source_id,omitempty"`
	Style         string            `yaml:"style,omitempty" json:"style,omitempty"`
	AudioPath     string            `yaml:"audio_path,omitempty" json:"audio_path,omitempty"`
	SubtitlesPath string            `yaml:"subtitles_path,omitempty" json:"subtitles_path,omitempty"`
	Scenes        []director.Prompt `yaml:"scenes,omitempty" json:"scenes,omitempty"`
	ImagePaths    []string          `yaml:"image_paths,omitempty" json:"image_paths,omitempty"`
	VideoPath     string            `yaml:"video_path,omitempty" json:"video_path,omitempty"`
	ExportDir     string            `yaml:"export_dir,omitempty" json:"export_dir,omitempty"`
	ShareURL      string            `yaml:"share_url,omitempty" json:"share_url,omitempty"`
	Completed     []string          `yaml:"completed,omitempty" json:"completed,omitempty"`
	Created       time.Time         `yaml:"created" json:"created"`
	Updated       time.Time         `yaml:"updated" json:"updated"`
}

// Done сообщает, завершён ли этап stage для проекта.
func (p *Project) Done(stage string) bool {
	return slices.Contains(p.Completed, stage)
}

func (p *Project) MarkDone(stage string) {
	if !p.Done(stage) {
		p.Completed = append(p.Completed, stage)
	}
}

// Store хранит проекты как <Dir>/<id>/project.yaml.
type Store struct {
	Dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path возвращает рабочую папку проекта id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.Dir, id)
}

// Create заводит новый проект со свежим id и сохраняет его.
func (s *Store) Create(title string) (*Project, error) {
	now := time.Now().UTC()
	p := &Project{
		ID:      uuid.NewString(),
		Title:   strings.TrimSpace(title),
		Created: now,
		Updated: now,
	}
	if err := s.Save(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) Save(p *Project) error {
	if p.ID == "" {
		return fmt.Errorf("project has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.Path(p.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	p.Updated = time.Now().UTC()
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, recordName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, recordName))
}

func (s *Store) Load(id string) (*Project, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.Path(id), recordName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", id, err)
	}
	return &p, nil
}

// List возвращает все читаемые проекты, новые первыми.
func (s *Store) List() ([]*Project, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Project) int {
		return b.Created.Compare(a.Created)
	})
	return out, nil
}
