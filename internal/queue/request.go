package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ivlev/story2video/internal/jobs"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/project"
)

// Request просит запустить пайплайн. Без ProjectID создаётся новый проект
// из Title/Text/URL; без Text история скачивается.
type Request struct {
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	Style     string `json:"style,omitempty"`
	From      string `json:"from,omitempty"`
}

func (r *Request) Validate() error {
	if _, err := pipeline.StagesFrom(r.From); err != nil {
		return err
	}
	if r.ProjectID == "" && r.From != "" && r.From != pipeline.StageFetch {
		return fmt.Errorf("a new project must start at %q, not %q", pipeline.StageFetch, r.From)
	}
	if r.ProjectID != "" && strings.ContainsAny(r.ProjectID, `/\`) {
		return errors.New("invalid project id")
	}
	return nil
}

// NewRequestHandler превращает каждый валидный Request в задачу пайплайна.
func NewRequestHandler(store *project.Store, m *jobs.Manager, newRunner func() pipeline.Runner) *TypedHandler[Request] {
	return &TypedHandler[Request]{
		Validate:   (*Request).Validate,
		AlwaysMark: true,
		Process: func(ctx context.Context, r *Request) error {
			id := r.ProjectID
			if id == "" {
				p, err := store.Create(r.Title)
				if err != nil {
					return err
				}
				p.Story = strings.TrimSpace(r.Text)
				p.URL = r.URL
				p.Style = r.Style
				if err := store.Save(p); err != nil {
					return err
				}
				id = p.ID
			} else if _, err := store.Load(id); err != nil {
				log.Printf("[!] Kafka: проект %s: %v", id, err)
				return nil
			}
			jobID := pipeline.Submit(m, store, newRunner, id, r.From)
			log.Printf("[*] Проект %s поставлен в очередь, задача %s", id, jobID)
			return nil
		},
	}
}
