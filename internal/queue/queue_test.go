package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"github.com/ivlev/story2video/internal/jobs"
	"github.com/ivlev/story2video/internal/pipeline"
	"github.com/ivlev/story2video/internal/project"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32                               { return nil }
func (s *fakeSession) MemberID() string                                         { return "m" }
func (s *fakeSession) GenerationID() int32                                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)                  {}
func (s *fakeSession) Commit()                                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)                 {}
func (s *fakeSession) Context() context.Context                                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) { s.marked = append(s.marked, msg.Offset) }

type fakeClaim struct{ ch chan *sarama.ConsumerMessage }

func (c fakeClaim) Topic() string                            { return "t" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

type failOn string

func (f failOn) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	if string(message) == string(f) {
		return false, errors.New("retry later")
	}
	return true, nil
}

func TestConsumeClaimMarksHandled(t *testing.T) {
	claim := fakeClaim{ch: make(chan *sarama.ConsumerMessage, 3)}
	claim.ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("a")}
	claim.ch <- &sarama.ConsumerMessage{Offset: 2, Value: []byte("bad")}
	claim.ch <- &sarama.ConsumerMessage{Offset: 3, Value: []byte("c")}
	close(claim.ch)

	s := &fakeSession{ctx: context.Background()}
	h := &groupHandler{handler: failOn("bad")}
	if err := h.ConsumeClaim(s, claim); err != nil {
		t.Fatal(err)
	}
	if len(s.marked) != 2 || s.marked[0] != 1 || s.marked[1] != 3 {
		t.Errorf("marked offsets %v", s.marked)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"new from text", Request{Title: "x", Text: "story"}, true},
		{"new fetched", Request{From: "fetch"}, true},
		{"existing from video", Request{ProjectID: "abc", From: "video"}, true},
		{"new from video", Request{From: "video"}, false},
		{"unknown stage", Request{ProjectID: "abc", From: "upload"}, false},
		{"path in id", Request{ProjectID: "../x", From: "video"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

type recordRunner struct{ from *string }

func (r recordRunner) Run(ctx context.Context, p *project.Project, from string, progress func(pipeline.Progress)) error {
	*r.from = from
	return nil
}

func TestRequestHandlerCreatesProject(t *testing.T) {
	store := project.NewStore(t.TempDir())
	m := jobs.NewManager(context.Background(), 1)
	var from string
	h := NewRequestHandler(store, m, func() pipeline.Runner { return recordRunner{from: &from} })

	body, _ := json.Marshal(Request{Title: "Attic", Text: " a story "})
	mark, err := h.HandleMessage(context.Background(), body)
	if err != nil || !mark {
		t.Fatalf("HandleMessage = %v, %v", mark, err)
	}
	m.Wait()

	list, _ := store.List()
	if len(list) != 1 || list[0].Story != "a story" || list[0].Title != "Attic" {
		t.Errorf("unexpected projects %+v", list)
	}

	if mark, _ := h.HandleMessage(context.Background(), []byte("{not json")); !mark {
		t.Error("undecodable messages are marked and skipped")
	}
	if mark, _ := h.HandleMessage(context.Background(), []byte(`{"from":"images"}`)); !mark {
		t.Error("invalid messages are marked and skipped")
	}
	if list, _ := store.List(); len(list) != 1 {
		t.Error("invalid messages must not create projects")
	}
}
