package director

import (
	"strings"

	"github.com/ivlev/story2video/internal/subtitle"
)

const DefaultChunkSize = 2

// Chunks группирует сегменты в подряд идущие куски по k. Хвост короче k
// отбрасывается, поэтому len(result) == len(segs)/k.
func Chunks(segs []subtitle.Segment, k int) []Chunk {
	if k <= 0 {
		k = DefaultChunkSize
	}

	chunks := make([]Chunk, 0, len(segs)/k)
	for i := 0; i+k <= len(segs); i += k {
		group := segs[i : i+k]

		texts := make([]string, 0, k)
		for _, s := range group {
			if t := strings.TrimSpace(s.Text); t != "" {
				texts = append(texts, t)
			}
		}

		chunks = append(chunks, Chunk{
			Window:   Window{Start: group[0].Start, End: group[k-1].End},
			Text:     strings.Join(texts, " "),
			Segments: group,
		})
	}
	return chunks
}

// Resolve возвращает только окна из Chunks.
func Resolve(segs []subtitle.Segment, k int) []Window {
	chunks := Chunks(segs, k)
	windows := make([]Window, len(chunks))
	for i, c := range chunks {
		windows[i] = c.Window
	}
	return windows
}

// Dropped сообщает, сколько последних сегментов Chunks не использует.
func Dropped(segs []subtitle.Segment, k int) int {
	if k <= 0 {
		k = DefaultChunkSize
	}
	return len(segs) % k
}
