package effects

import (
	"fmt"

	"github.com/ivlev/story2video/internal/timeline"
)

// StaticEffect показывает вписанное изображение без движения и наклона.
// Переход сохраняется.
type StaticEffect struct{}

func (e *StaticEffect) GenerateFilter(c timeline.Clip, fps int) string {
	return fmt.Sprintf("scale=%d:%d,crop=%d:%d,fps=%d,format=yuva420p%s",
		c.CoverW, c.CoverH, c.FrameW, c.FrameH, fps, fadeFilter(c))
}

// ByName возвращает эффект по значению из конфига; для неизвестных имён KenBurns.
func ByName(name string) Effect {
	switch name {
	case "static", "none":
		return &StaticEffect{}
	default:
		return &KenBurns{}
	}
}
