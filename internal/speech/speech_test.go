package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ivlev/story2video/internal/warnings"
)

type fakeRunner struct {
	calls [][]string
	fail  int
	write func(args []string) error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(f.calls) <= f.fail {
		return nil, errors.New("engine busy")
	}
	if f.write != nil {
		return nil, f.write(args)
	}
	return nil, nil
}

func TestExpand(t *testing.T) {
	got, err := Expand("edge-tts --voice {voice} --file {in} --write-media {out}",
		map[string]string{"voice": "en-US-GuyNeural", "in": "/tmp/my story.txt", "out": "/tmp/out.mp3"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"edge-tts", "--voice", "en-US-GuyNeural", "--file", "/tmp/my story.txt", "--write-media", "/tmp/out.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand = %q", got)
	}
	if _, err := Expand("   ", nil); err == nil {
		t.Error("empty template must fail")
	}
}

func TestNarratorRetries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "audio", "narration.mp3")
	r := &fakeRunner{fail: 1, write: func(args []string) error {
		return os.WriteFile(args[len(args)-1], []byte("ID3"), 0644)
	}}
	n := &Narrator{Command: "tts --file {in} --out {out}", Attempts: 3, Runner: r}

	if err := n.Narrate(context.Background(), "Hello there.", out); err != nil {
		t.Fatalf("Narrate failed: %v", err)
	}
	if len(r.calls) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(r.calls))
	}
	script, _ := os.ReadFile(filepath.Join(filepath.Dir(out), "narration.txt"))
	if string(script) != "Hello there." {
		t.Errorf("script file not written: %q", script)
	}
}

func TestNarratorEmptyOutputFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "n.mp3")
	n := &Narrator{Command: "tts {in} {out}", Attempts: 2, Runner: &fakeRunner{}}
	if err := n.Narrate(context.Background(), "text", out); err == nil {
		t.Error("missing output must fail")
	}
}

func TestTranscribe(t *testing.T) {
	dir := t.TempDir()
	srt := "1\n00:00:00,000 --> 00:00:02,000\nHello.\n\n2\n00:00:02,000 --> 00:00:04,500\nGoodbye.\n"
	r := &fakeRunner{write: func(args []string) error {
		return os.WriteFile(filepath.Join(dir, "narration.srt"), []byte(srt), 0644)
	}}
	tr := &Transcriber{Command: "whisper {in} --output_dir {dir}", Runner: r}

	path, segs, err := tr.Transcribe(context.Background(), "/data/narration.mp3", dir, warnings.Quiet())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if filepath.Base(path) != "subtitles.srt" || len(segs) != 2 || segs[1].End != 4.5 {
		t.Errorf("unexpected result %s %+v", path, segs)
	}
	if r.calls[0][1] != "/data/narration.mp3" || r.calls[0][3] != dir {
		t.Errorf("unexpected argv %q", r.calls[0])
	}
}
