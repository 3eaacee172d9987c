package pipeline

import (
	"context"

	"github.com/ivlev/story2video/internal/jobs"
	"github.com/ivlev/story2video/internal/project"
)

// Submit ставит на m запуск проекта id с этапа from. Проект загружается
// при старте задачи, а итоговая запись становится результатом задачи.
func Submit(m *jobs.Manager, store *project.Store, newRunner func() Runner, id, from string) string {
	return m.Submit("pipeline", func(ctx context.Context, report jobs.Reporter) (any, error) {
		p, err := store.Load(id)
		if err != nil {
			return nil, err
		}
		err = newRunner().Run(ctx, p, from, func(pr Progress) {
			report(pr.Percent, pr.Stage+": "+pr.Message)
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}
