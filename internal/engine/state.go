package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ivlev/story2video/internal/audio"
	"github.com/ivlev/story2video/internal/director"
	"github.com/ivlev/story2video/internal/subtitle"
	"github.com/ivlev/story2video/internal/timeline"
	"github.com/ivlev/story2video/internal/warnings"
)

// State шаг одной сборки.
type State int

const (
	Validating State = iota
	BuildingClips
	CompositingVideo
	AddingOverlays
	MixingAudio
	Encoding
	Done
	Aborted
)

var stateNames = [...]string{
	"VALIDATING",
	"BUILDING_CLIPS",
	"COMPOSITING_VIDEO",
	"ADDING_OVERLAYS",
	"MIXING_AUDIO",
	"ENCODING",
	"DONE",
	"ABORTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Progress доля пройденного пути сборки в процентах. Aborted считается
// завершённым.
func (s State) Progress() float64 {
	if s >= Done {
		return 100
	}
	if s < 0 {
		return 0
	}
	return float64(s) / float64(Done) * 100
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrNoAudio  = errors.New("audio file not found")
	ErrNoImages = errors.New("no valid images")
	ErrNoClips  = timeline.ErrNoClips
)

// Request всё, что оркестратор передаёт на сборку.
type Request struct {
	Prompts     []director.Prompt `json:"prompts"`
	Images      []string          `json:"images"`
	Audio       string            `json:"audio"`
	Title       string            `json:"title"`
	Subtitles   string            `json:"subtitles,omitempty"`
	Ambient     string            `json:"ambient,omitempty"`
	Quality     string            `json:"quality,omitempty"`
	AspectRatio string            `json:"aspect_ratio,omitempty"`
	Overlay     bool              `json:"overlay"`
}

// RenderJob проверенные и зафиксированные входные данные рендера. Строится
// один раз в VALIDATING и дальше только читается.
type RenderJob struct {
	Timeline    timeline.Timeline
	Mix         audio.Mix
	Subtitles   []subtitle.Segment
	OutputPath  string
	Quality     string
	AspectRatio string
	FPS         int
	Overlay     bool
}

// Result результат Compile. Path пуст, если State не Done.
type Result struct {
	Path     string             `json:"path,omitempty"`
	Poster   string             `json:"poster,omitempty"`
	State    State              `json:"state"`
	Reason   string             `json:"reason,omitempty"`
	Tier     string             `json:"tier,omitempty"`
	Clips    int                `json:"clips"`
	Duration float64            `json:"duration"`
	Elapsed  time.Duration      `json:"elapsed"`
	Warnings []warnings.Warning `json:"warnings,omitempty"`
}

func (r Result) OK() bool {
	return r.State == Done && r.Path != ""
}

// SanitizeTitle превращает название истории в имя файла без расширения.
func SanitizeTitle(title string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.TrimSpace(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSep = false
		case r == '-' || r == '_' || unicode.IsSpace(r):
			if !lastSep {
				b.WriteRune('_')
				lastSep = true
			}
		}
	}
	name := strings.TrimRight(b.String(), "_")
	if runes := []rune(name); len(runes) > 100 {
		name = strings.TrimRight(string(runes[:100]), "_")
	}
	if name == "" {
		name = "video"
	}
	return name
}

// OutputPath куда попадает видео с этим названием внутри dir.
func OutputPath(dir, title string) string {
	return filepath.Join(dir, SanitizeTitle(title)+".mp4")
}
