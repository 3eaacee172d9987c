package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ivlev/story2video/internal/config"
	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/engine"
	"github.com/ivlev/story2video/internal/export"
	"github.com/ivlev/story2video/internal/project"
	"github.com/ivlev/story2video/internal/source"
	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/warnings"
)

type staticSource []source.Story

func (s staticSource) Fetch(ctx context.Context, limit int) ([]source.Story, error) {
	return s, nil
}

type upperEnhancer struct{ err error }

func (e upperEnhancer) Enhance(ctx context.Context, story string) (string, error) {
	return strings.ToUpper(story), e.err
}

type fakeDirector struct{}

func (fakeDirector) DescribeScenes(ctx context.Context, chunks []director.Chunk) ([]director.Prompt, error) {
	out := make([]director.Prompt, len(chunks))
	for i, c := range chunks {
		out[i] = director.Prompt{Start: c.Window.Start, End: c.Window.End, OriginalDescription: c.Text}
	}
	return out, nil
}

func (fakeDirector) ImagePrompts(ctx context.Context, scenes []director.Prompt) ([]director.Prompt, error) {
	for i := range scenes {
		scenes[i].Prompt = "image: " + scenes[i].OriginalDescription
	}
	return scenes, nil
}

type fakeNarrator struct{ text string }

func (n *fakeNarrator) Narrate(ctx context.Context, text, out string) error {
	n.text = text
	os.MkdirAll(filepath.Dir(out), 0755)
	return os.WriteFile(out, []byte("ID3"), 0644)
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, audioPath, dir string, warn *warnings.List) (string, []subtitle.Segment, error) {
	segs := make([]subtitle.Segment, 5)
	for i := range segs {
		segs[i] = subtitle.Segment{Index: i + 1, Start: float64(i), End: float64(i + 1), Text: fmt.Sprintf("line %d", i+1)}
	}
	path := filepath.Join(dir, "subtitles.srt")
	os.MkdirAll(dir, 0755)
	return path, segs, subtitle.WriteFile(path, segs)
}

type fakeIllustrator struct{}

func (fakeIllustrator) GenerateAll(ctx context.Context, prompts []director.Prompt, dir string, warn *warnings.List) ([]director.Prompt, []string, error) {
	paths := make([]string, len(prompts))
	for i := range prompts {
		paths[i] = filepath.Join(dir, fmt.Sprintf("scene_%03d.png", i+1))
	}
	return prompts, paths, nil
}

type fakeCompiler struct {
	req *engine.Request
	res engine.Result
}

func (c *fakeCompiler) Compile(ctx context.Context, req engine.Request) engine.Result {
	*c.req = req
	return c.res
}

type fakeExporter struct{}

func (fakeExporter) Export(ctx context.Context, p *project.Project) (export.Bundle, error) {
	return export.Bundle{Dir: "/exports/" + p.Title, VideoURL: "https://cdn.example/v.mp4"}, nil
}

type claimOnce map[string]bool

func (c claimOnce) Claim(ctx context.Context, id string) (bool, error) {
	if c[id] {
		return false, nil
	}
	c[id] = true
	return true, nil
}

func newPipeline(t *testing.T, res engine.Result, req *engine.Request) (*Pipeline, *fakeNarrator) {
	t.Helper()
	n := &fakeNarrator{}
	cfg := config.Default()
	return &Pipeline{
		Store: project.NewStore(t.TempDir()),
		Sources: []source.Source{staticSource{
			{ID: "used", Title: "Old", Text: "old story"},
			{ID: "fresh", Title: "The Attic", Text: "something in the attic", URL: "https://example.com/attic"},
		}},
		Claimer:     claimOnce{"used": true},
		Enhancer:    upperEnhancer{},
		Director:    fakeDirector{},
		Narrator:    n,
		Transcriber: fakeTranscriber{},
		Illustrator: fakeIllustrator{},
		Exporter:    fakeExporter{},
		NewCompiler: func() VideoCompiler { return &fakeCompiler{req: req, res: res} },
		Video:       cfg.Video,
		Limit:       10,
		Warn:        warnings.Quiet(),
	}, n
}

func TestRunAllStages(t *testing.T) {
	var req engine.Request
	pl, narrator := newPipeline(t, engine.Result{State: engine.Done, Path: "/videos/The_Attic.mp4"}, &req)
	p, err := pl.Store.Create("")
	if err != nil {
		t.Fatal(err)
	}

	var seen []string
	err = pl.Run(context.Background(), p, "", func(pr Progress) {
		if pr.Message != "done" {
			seen = append(seen, pr.Stage)
		}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !reflect.DeepEqual(seen, Stages) {
		t.Errorf("progress stages = %v", seen)
	}

	got, err := pl.Store.Load(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "The Attic" || got.SourceID != "fresh" {
		t.Errorf("wrong story picked: %+v", got)
	}
	if narrator.text != "SOMETHING IN THE ATTIC" {
		t.Errorf("narrated %q", narrator.text)
	}
	// 5 segments with chunks of 2 give 2 scenes, the last segment is dropped
	if len(got.Scenes) != 2 || got.Scenes[1].Prompt != "image: line 3 line 4" {
		t.Errorf("unexpected scenes %+v", got.Scenes)
	}
	if len(req.Images) != 2 || req.Audio != got.AudioPath || req.Subtitles != got.SubtitlesPath {
		t.Errorf("unexpected compile request %+v", req)
	}
	if got.VideoPath != "/videos/The_Attic.mp4" || got.ShareURL == "" {
		t.Errorf("video/export not recorded: %+v", got)
	}
	if len(got.Completed) != len(Stages) {
		t.Errorf("completed = %v", got.Completed)
	}
	if _, err := os.Stat(filepath.Join(pl.Store.Path(p.ID), "scenario.yaml")); err != nil {
		t.Errorf("scenario not written: %v", err)
	}
	if !pl.Warn.Has(StageScenes) {
		t.Error("expected a warning for the dropped segment")
	}
}

func TestRunFromStage(t *testing.T) {
	var req engine.Request
	pl, narrator := newPipeline(t, engine.Result{State: engine.Done, Path: "/v.mp4"}, &req)
	p := &project.Project{ID: "x", Title: "Given", Story: "given text", Enhanced: "given text"}

	if err := pl.Run(context.Background(), p, StageNarration, nil); err != nil {
		t.Fatal(err)
	}
	if narrator.text != "given text" {
		t.Errorf("narrated %q", narrator.text)
	}
	if p.Done(StageFetch) || !p.Done(StageExport) {
		t.Errorf("completed = %v", p.Completed)
	}
}

func TestRunStopsOnVideoFailure(t *testing.T) {
	var req engine.Request
	pl, _ := newPipeline(t, engine.Result{State: engine.Aborted, Reason: "ENCODING: all tiers failed"}, &req)
	p, _ := pl.Store.Create("Doomed")

	err := pl.Run(context.Background(), p, "", nil)
	if err == nil || !strings.Contains(err.Error(), "video: ENCODING") {
		t.Fatalf("unexpected error %v", err)
	}
	got, _ := pl.Store.Load(p.ID)
	if !got.Done(StageImages) || got.Done(StageVideo) {
		t.Errorf("completed = %v", got.Completed)
	}
}

func TestRunReportsSaveErrorAfterStageFailure(t *testing.T) {
	var req engine.Request
	pl, _ := newPipeline(t, engine.Result{State: engine.Aborted, Reason: "ENCODING: all tiers failed"}, &req)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	pl.Store = project.NewStore(blocker)
	p := &project.Project{ID: "x", Title: "Unsaved"}

	err := pl.Run(context.Background(), p, StageVideo, nil)
	if err == nil || !strings.Contains(err.Error(), "video: ENCODING") || !strings.Contains(err.Error(), "save project") {
		t.Fatalf("want both stage and save errors, got %v", err)
	}
}

func TestCompileWarningsMergedOnce(t *testing.T) {
	var req engine.Request
	res := engine.Result{
		State: engine.Done,
		Path:  "/v.mp4",
		Warnings: []warnings.Warning{
			{Stage: "encode", Message: "tier high failed"},
			{Stage: "audio", Message: "no ambient"},
		},
	}
	pl, _ := newPipeline(t, res, &req)
	pl.Exporter = nil
	pl.Warn = &warnings.List{}
	p := &project.Project{ID: "x", Title: "Given"}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	if err := pl.Run(context.Background(), p, StageVideo, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "tier high failed") {
		t.Errorf("compile warning logged again:\n%s", buf.String())
	}
	items := pl.Warn.Items()
	if len(items) != 2 || items[0].Stage != "encode" || items[1].Stage != "audio" {
		t.Errorf("compile warnings not kept: %v", items)
	}
}

func TestEnhanceFailureKeepsStory(t *testing.T) {
	var req engine.Request
	pl, _ := newPipeline(t, engine.Result{}, &req)
	pl.Enhancer = upperEnhancer{err: errors.New("429 too many requests")}
	p := &project.Project{ID: "e", Story: "quiet"}

	if err := pl.runStage(context.Background(), StageEnhance, p); err != nil {
		t.Fatal(err)
	}
	if p.Enhanced != "quiet" || !pl.Warn.Has(StageEnhance) {
		t.Errorf("enhanced = %q", p.Enhanced)
	}
}

func TestStagesFrom(t *testing.T) {
	got, err := StagesFrom(StageVideo)
	if err != nil || !reflect.DeepEqual(got, []string{StageVideo, StageExport}) {
		t.Errorf("StagesFrom(video) = %v, %v", got, err)
	}
	if _, err := StagesFrom("upload"); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
}
