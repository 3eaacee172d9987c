package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/story2video/internal/director"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	p, err := s.Create("  The Attic ")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID == "" || p.Title != "The Attic" {
		t.Fatalf("unexpected project %+v", p)
	}

	p.Scenes = []director.Prompt{{Start: 0, End: 2.5, Prompt: "attic", OriginalDescription: "dusty attic"}}
	p.MarkDone("scenes")
	p.MarkDone("scenes")
	if err := s.Save(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Scenes) != 1 || got.Scenes[0].End != 2.5 {
		t.Errorf("scenes not persisted: %+v", got.Scenes)
	}
	if len(got.Completed) != 1 || !got.Done("scenes") {
		t.Errorf("completed stages = %v", got.Completed)
	}
	if _, err := os.Stat(filepath.Join(s.Path(p.ID), "project.yaml")); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"nope", "", "../etc", ".."} {
		if _, err := s.Load(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) err = %v", id, err)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	s := NewStore(t.TempDir())
	old := &Project{ID: "a", Title: "old", Created: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	recent := &Project{ID: "b", Title: "new", Created: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, p := range []*Project{old, recent} {
		if err := s.Save(p); err != nil {
			t.Fatal(err)
		}
	}
	os.MkdirAll(filepath.Join(s.Dir, "junk"), 0755)

	list, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "b" {
		t.Errorf("unexpected order %v", list)
	}

	empty, err := NewStore(filepath.Join(t.TempDir(), "none")).List()
	if err != nil || len(empty) != 0 {
		t.Errorf("missing dir: %v %v", empty, err)
	}
}
