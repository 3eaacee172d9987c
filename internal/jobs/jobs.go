// Package jobs выполняет долгие задачи в фоне с ограниченным числом
// воркеров и позволяет опрашивать или стримить их статус.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	Pending State = "pending"
	Running State = "running"
	Done    State = "done"
	Failed  State = "failed"
)

func (s State) Terminal() bool {
	return s == Done || s == Failed
}

type Status struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	State    State     `json:"state"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Result   any       `json:"result,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// Reporter обновляет прогресс (0..100) и сообщение выполняемой задачи.
type Reporter func(progress float64, message string)

type Func func(ctx context.Context, report Reporter) (any, error)

type subscriber struct {
	ch     chan Status
	closed bool
}

type Manager struct {
	ctx  context.Context
	sem  chan struct{}
	wg   sync.WaitGroup
	mu   sync.Mutex
	jobs map[string]*Status
	subs map[string][]*subscriber
}

// NewManager выполняет не больше workers задач одновременно. Задачи видят отмену ctx.
func NewManager(ctx context.Context, workers int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		ctx:  ctx,
		sem:  make(chan struct{}, workers),
		jobs: make(map[string]*Status),
		subs: make(map[string][]*subscriber),
	}
}

// Submit ставит fn в очередь и сразу возвращает id задачи.
func (m *Manager) Submit(kind string, fn Func) string {
	now := time.Now().UTC()
	st := &Status{ID: uuid.NewString(), Kind: kind, State: Pending, Created: now, Updated: now}

	m.mu.Lock()
	m.jobs[st.ID] = st
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(st.ID, fn)
	return st.ID
}

func (m *Manager) run(id string, fn Func) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
	case <-m.ctx.Done():
		m.finish(id, nil, m.ctx.Err())
		return
	}
	defer func() { <-m.sem }()

	m.update(id, func(s *Status) { s.State = Running })
	log.Printf("[*] Задача %s запущена", id)

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		result, err = fn(m.ctx, func(progress float64, message string) {
			m.update(id, func(s *Status) {
				s.Progress = min(max(progress, 0), 100)
				s.Message = message
			})
		})
	}()
	m.finish(id, result, err)
}

func (m *Manager) finish(id string, result any, err error) {
	m.update(id, func(s *Status) {
		if err != nil {
			s.State = Failed
			s.Reason = err.Error()
			log.Printf("[!] Задача %s завершилась ошибкой: %v", id, err)
			return
		}
		s.State = Done
		s.Progress = 100
		s.Result = result
		log.Printf("[+++] Задача %s выполнена", id)
	})
}

func (m *Manager) update(id string, fn func(*Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(st)
	st.Updated = time.Now().UTC()
	snapshot := *st
	for _, sub := range m.subs[id] {
		deliver(sub, snapshot)
	}
	if snapshot.State.Terminal() {
		delete(m.subs, id)
	}
}

// deliver никогда не блокируется: медленный читатель теряет промежуточные
// обновления, но всегда получает финальное. Вызывается под m.mu.
func deliver(sub *subscriber, st Status) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- st:
	default:
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- st
	}
	if st.State.Terminal() {
		close(sub.ch)
		sub.closed = true
	}
}

// Poll возвращает снимок задачи id.
func (m *Manager) Poll(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

var ErrUnknownJob = errors.New("unknown job")

// Subscribe стримит изменения статуса задачи id, начиная с текущего.
// Канал закрывается после финального статуса или при отмене.
func (m *Manager) Subscribe(id string) (<-chan Status, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[id]
	if !ok {
		return nil, nil, ErrUnknownJob
	}
	sub := &subscriber{ch: make(chan Status, 16)}
	deliver(sub, *st)
	if !sub.closed {
		m.subs[id] = append(m.subs[id], sub)
	}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.subs[id]
		for i, s := range list {
			if s == sub {
				m.subs[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if !sub.closed {
			close(sub.ch)
			sub.closed = true
		}
	}
	return sub.ch, cancel, nil
}

// Wait ждёт завершения всех поставленных задач.
func (m *Manager) Wait() {
	m.wg.Wait()
}
