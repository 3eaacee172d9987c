package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitAndPoll(t *testing.T) {
	m := NewManager(context.Background(), 2)
	id := m.Submit("compile", func(ctx context.Context, report Reporter) (any, error) {
		report(50, "halfway")
		return "/videos/out.mp4", nil
	})
	m.Wait()

	st, ok := m.Poll(id)
	if !ok {
		t.Fatal("job not found")
	}
	if st.State != Done || st.Progress != 100 || st.Result != "/videos/out.mp4" || st.Kind != "compile" {
		t.Errorf("unexpected status %+v", st)
	}
	if _, ok := m.Poll("missing"); ok {
		t.Error("unknown id must not be found")
	}
}

func TestFailedAndPanickingJobs(t *testing.T) {
	m := NewManager(context.Background(), 1)
	failed := m.Submit("run", func(ctx context.Context, report Reporter) (any, error) {
		return nil, errors.New("narration: tts failed")
	})
	panicked := m.Submit("run", func(ctx context.Context, report Reporter) (any, error) {
		panic("boom")
	})
	m.Wait()

	if st, _ := m.Poll(failed); st.State != Failed || st.Reason != "narration: tts failed" {
		t.Errorf("unexpected status %+v", st)
	}
	if st, _ := m.Poll(panicked); st.State != Failed || st.Reason != "panic: boom" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestWorkerLimit(t *testing.T) {
	m := NewManager(context.Background(), 2)
	var running, peak atomic.Int32
	for range 6 {
		m.Submit("x", func(ctx context.Context, report Reporter) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		})
	}
	m.Wait()
	if peak.Load() > 2 {
		t.Errorf("more than 2 jobs ran at once: %d", peak.Load())
	}
}

func TestSubscribeEndsWithTerminalStatus(t *testing.T) {
	m := NewManager(context.Background(), 1)
	release := make(chan struct{})
	id := m.Submit("run", func(ctx context.Context, report Reporter) (any, error) {
		<-release
		report(10, "fetch")
		report(60, "images")
		return nil, nil
	})

	ch, cancel, err := m.Subscribe(id)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()
	close(release)

	var last Status
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case st, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = st
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
	if last.State != Done {
		t.Errorf("last streamed state %s", last.State)
	}

	// subscribing to a finished job yields one status and a closed channel
	ch2, cancel2, _ := m.Subscribe(id)
	defer cancel2()
	if st := <-ch2; st.State != Done {
		t.Errorf("unexpected state %s", st.State)
	}
	if _, ok := <-ch2; ok {
		t.Error("channel should be closed")
	}
	if _, _, err := m.Subscribe("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
}

func TestCancelledManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, 1)
	block := make(chan struct{})
	first := m.Submit("a", func(ctx context.Context, report Reporter) (any, error) {
		<-block
		return nil, ctx.Err()
	})
	for {
		if st, _ := m.Poll(first); st.State == Running {
			break
		}
		time.Sleep(time.Millisecond)
	}
	second := m.Submit("b", func(ctx context.Context, report Reporter) (any, error) {
		return nil, ctx.Err()
	})
	cancel()
	close(block)
	m.Wait()

	for _, id := range []string{first, second} {
		if st, _ := m.Poll(id); st.State != Failed {
			t.Errorf("job %s ended %s after cancel", id, st.State)
		}
	}
}
