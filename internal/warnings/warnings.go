package warnings

import (
	"fmt"
	"log"
	"sync"
)

// Warning нефатальная проблема, встреченная при получении результата.
type Warning struct {
	Stage   string `json:"stage" yaml:"stage"`
	Message string `json:"message" yaml:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}

// List собирает предупреждения. Нулевое значение готово к работе, а nil *List
// всё отбрасывает, так что можно передавать nil.
type List struct {
	mu    sync.Mutex
	items []Warning
	quiet bool
}

// Quiet возвращает список, который записывает без логирования.
func Quiet() *List {
	return &List{quiet: true}
}

func (l *List) Addf(stage, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l == nil {
		log.Printf("[!] %s: %s", stage, msg)
		return
	}
	l.mu.Lock()
	l.items = append(l.items, Warning{Stage: stage, Message: msg})
	l.mu.Unlock()
	if !l.quiet {
		log.Printf("[!] %s: %s", stage, msg)
	}
}

// Merge добавляет уже залогированные предупреждения, не логируя их повторно.
func (l *List) Merge(items ...Warning) {
	if l == nil || len(items) == 0 {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()
}

// Items возвращает копию предупреждений в порядке добавления.
func (l *List) Items() []Warning {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Warning, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Has сообщает, было ли предупреждение для stage.
func (l *List) Has(stage string) bool {
	for _, w := range l.Items() {
		if w.Stage == stage {
			return true
		}
	}
	return false
}
