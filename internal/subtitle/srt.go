package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ivlev/story2video/internal/warnings"
)

// Segment одна запись субтитров с таймингом. Время в секундах от начала
// озвучки.
type Segment struct {
	Index int     `json:"index" yaml:"index"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ReadSRT разбирает блоки SRT. Блоки без пригодной строки тайминга
// пропускаются с предупреждением; один плохой таймкод в строке тайминга
// превращается в 0 через Seconds.
func ReadSRT(r io.Reader, w *warnings.List) ([]Segment, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var segs []Segment
	var block []string
	flush := func() {
		if len(block) == 0 {
			return
		}
		if seg, ok := parseBlock(block, w); ok {
			segs = append(segs, seg)
		}
		block = block[:0]
	}

	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	flush()

	for i := range segs {
		if segs[i].Index == 0 {
			segs[i].Index = i + 1
		}
	}
	return segs, nil
}

func parseBlock(lines []string, w *warnings.List) (Segment, bool) {
	var seg Segment
	i := 0
	if n, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
		seg.Index = n
		i++
	}
	if i >= len(lines) || !strings.Contains(lines[i], "-->") {
		w.Addf("subtitles", "блок без таймкода пропущен: %q", strings.Join(lines, " "))
		return seg, false
	}

	start, end, _ := strings.Cut(lines[i], "-->")
	// whisper может дописывать настройки после времени конца
	endFields := strings.Fields(end)
	if len(endFields) == 0 {
		w.Addf("subtitles", "блок без времени конца пропущен: %q", lines[i])
		return seg, false
	}
	seg.Start = Seconds(start, w)
	seg.End = Seconds(endFields[0], w)
	seg.Text = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
	return seg, true
}

// ReadFile разбирает файл SRT.
func ReadFile(path string, w *warnings.List) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSRT(f, w)
}

// WriteSRT пишет сегменты нумерованными блоками SRT, нумерация с 1.
func WriteSRT(w io.Writer, segs []Segment) error {
	bw := bufio.NewWriter(w)
	for i, s := range segs {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, Format(s.Start), Format(s.End), strings.TrimSpace(s.Text)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func WriteFile(path string, segs []Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSRT(f, segs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TotalDuration конец последнего сегмента.
func TotalDuration(segs []Segment) float64 {
	end := 0.0
	for _, s := range segs {
		if s.End > end {
			end = s.End
		}
	}
	return end
}
