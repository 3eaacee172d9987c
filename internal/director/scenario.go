package director

import (
	"github.com/ivlev/story2video/internal/subtitle"
)

// Scenario список сцен, запланированных для одной истории.
type Scenario struct {
	Version string   `yaml:"version"`
	Style   string   `yaml:"style,omitempty"`
	Scenes  []Prompt `yaml:"scenes"`
}

// Window полуинтервал [Start, End) в секундах.
type Window struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Chunk группа подряд идущих сегментов субтитров, слитых в одну сцену.
type Chunk struct {
	Window   Window
	Text     string
	Segments []subtitle.Segment
}

// Prompt описывает изображение сцены и время его показа.
type Prompt struct {
	Start               float64 `yaml:"start" json:"start"`
	End                 float64 `yaml:"end" json:"end"`
	Prompt              string  `yaml:"prompt" json:"prompt"`
	OriginalDescription string  `yaml:"original_description" json:"original_description"`
}

// Timing возвращает окно в нотации SRT.
func (p Prompt) Timing() (string, string) {
	return subtitle.Format(p.Start), subtitle.Format(p.End)
}

func (p Prompt) Window() Window {
	return Window{Start: p.Start, End: p.End}
}
