package renderer

import (
	"fmt"
	"strings"

	"github.com/ivlev/story2video/internal/effects"
	"github.com/ivlev/story2video/internal/timeline"
)

// Graph накапливает входы ffmpeg и filter_complex одного рендера.
type Graph struct {
	Width, Height int
	FPS           int
	Duration      float64

	inputs  [][]string
	filters []string
	labels  int

	// Video и Audio потоки, которые попадают в выход.
	Video string
	Audio string
}

func NewGraph(width, height, fps int, duration float64) *Graph {
	return &Graph{Width: width, Height: height, FPS: fps, Duration: duration}
}

// AddInput регистрирует вход (args должны заканчиваться на "-i", путь) и
// возвращает его индекс.
func (g *Graph) AddInput(args ...string) int {
	g.inputs = append(g.inputs, args)
	return len(g.inputs) - 1
}

func (g *Graph) InputCount() int {
	return len(g.inputs)
}

func (g *Graph) AddFilter(format string, args ...any) {
	g.filters = append(g.filters, fmt.Sprintf(format, args...))
}

func (g *Graph) newLabel(prefix string) string {
	g.labels++
	return fmt.Sprintf("[%s%d]", prefix, g.labels)
}

func (g *Graph) FilterComplex() string {
	return strings.Join(g.filters, ";")
}

// Args возвращает часть команды ffmpeg со входами, фильтрами и маппингом.
// Флаги кодера и путь выхода добавляет вызывающий код.
func (g *Graph) Args() []string {
	args := []string{"-y"}
	for _, in := range g.inputs {
		args = append(args, in...)
	}
	if len(g.filters) > 0 {
		args = append(args, "-filter_complex", g.FilterComplex())
	}
	if g.Video != "" {
		args = append(args, "-map", g.Video)
	}
	if g.Audio != "" {
		args = append(args, "-map", g.Audio)
	}
	args = append(args, "-t", fmt.Sprintf("%.3f", g.Duration))
	return args
}

// ComposeTimeline кладёт каждый клип на чёрный холст в момент его начала и
// возвращает метку итогового потока.
func ComposeTimeline(g *Graph, tl timeline.Timeline, eff effects.Effect) string {
	base := g.newLabel("base")
	g.AddFilter("color=c=black:s=%dx%d:r=%d:d=%.3f,format=yuva420p%s", g.Width, g.Height, g.FPS, g.Duration, base)

	last := base
	for _, c := range tl.Clips {
		length := c.Duration + c.Hold
		idx := g.AddInput("-loop", "1", "-framerate", fmt.Sprintf("%d", g.FPS), "-t", fmt.Sprintf("%.3f", length), "-i", c.Image)

		clipLabel := g.newLabel("clip")
		g.AddFilter("[%d:v]%s,setpts=PTS-STARTPTS+%.3f/TB%s", idx, eff.GenerateFilter(c, g.FPS), c.Start, clipLabel)

		out := g.newLabel("v")
		g.AddFilter("%s%soverlay=x=0:y=0:eof_action=pass:enable='between(t,%.3f,%.3f)'%s",
			last, clipLabel, c.Start, c.VisibleEnd(), out)
		last = out
	}
	return last
}

// BlendDust накладывает зацикленную пыль на in в режиме screen с заданной непрозрачностью.
func BlendDust(g *Graph, in, dustPath string, opacity float64) string {
	idx := g.AddInput("-stream_loop", "-1", "-i", dustPath)

	dust := g.newLabel("dust")
	g.AddFilter("[%d:v]scale=%d:%d,fps=%d,trim=duration=%.3f,setpts=PTS-STARTPTS,format=gbrp%s",
		idx, g.Width, g.Height, g.FPS, g.Duration, dust)

	main := g.newLabel("pre")
	g.AddFilter("%sformat=gbrp%s", in, main)

	out := g.newLabel("dusted")
	g.AddFilter("%s%sblend=all_mode=screen:all_opacity=%.2f:shortest=1%s", main, dust, opacity, out)
	return out
}

// OverlayCaptions накладывает прозрачный поток субтитров, читаемый через
// concat demuxer.
func OverlayCaptions(g *Graph, in, concatPath string) string {
	idx := g.AddInput("-f", "concat", "-safe", "0", "-i", concatPath)

	caps := g.newLabel("cap")
	g.AddFilter("[%d:v]format=rgba,setpts=PTS-STARTPTS%s", idx, caps)

	out := g.newLabel("captioned")
	g.AddFilter("%s%soverlay=x=0:y=0:eof_action=pass:format=auto%s", in, caps, out)
	return out
}

// Finalize приводит поток к размеру и частоте кадров выхода.
func Finalize(g *Graph, in string) {
	g.AddFilter("%sfps=%d,scale=%d:%d,setsar=1,format=yuv420p[vout]", in, g.FPS, g.Width, g.Height)
	g.Video = "[vout]"
}

// AttachAudio подключает сведённую озвучку как аудиопоток выхода.
func AttachAudio(g *Graph, audioPath string) {
	idx := g.AddInput("-i", audioPath)
	g.Audio = fmt.Sprintf("%d:a", idx)
}
