package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner запускает внешнюю программу и возвращает её объединённый вывод.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s error: %v, output: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Expand разбивает шаблон команды на argv и подставляет {name}
// в каждом аргументе отдельно, значения с пробелами остаются одним аргументом.
func Expand(template string, vars map[string]string) ([]string, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	for i, f := range fields {
		fields[i] = r.Replace(f)
	}
	return fields, nil
}
