package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

const (
	VideoCodec     = "libx264"
	AudioCodec     = "aac"
	DefaultBitrate = "4000k"
)

var ErrAllTiersFailed = errors.New("all encoder tiers failed")

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*(k|M)?$`)

// Tier одна ступень лестницы кодера. Нулевые значения оставляют настройку
// на усмотрение кодера.
type Tier struct {
	Name    string
	Bitrate string
	CRF     int
	Threads int
	Preset  string
}

// Args возвращает флаги кодека для ступени.
func (t Tier) Args() []string {
	args := []string{"-c:v", VideoCodec, "-c:a", AudioCodec}
	if t.Bitrate != "" {
		args = append(args, "-b:v", t.Bitrate)
	}
	if t.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(t.CRF))
	}
	if t.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(t.Threads))
	}
	if t.Preset != "" {
		args = append(args, "-preset", t.Preset)
	}
	return args
}

// NormalizeBitrate возвращает пригодный для ffmpeg битрейт, иначе
// DefaultBitrate, если q пуст или некорректен.
func NormalizeBitrate(q string) (string, bool) {
	if bitratePattern.MatchString(q) {
		return q, true
	}
	return DefaultBitrate, q == ""
}

// Tiers строит лестницу: запрошенное качество, безопасный пресет 4000k и
// голые флаги кодека. capThreads ограничивает потоки возможностями хоста.
func Tiers(bitrate string, capThreads func(int) int) []Tier {
	if capThreads == nil {
		capThreads = func(n int) int { return n }
	}
	bitrate, _ = NormalizeBitrate(bitrate)
	return []Tier{
		{Name: "high", Bitrate: bitrate, CRF: 18, Threads: capThreads(4), Preset: "medium"},
		{Name: "safe", Bitrate: DefaultBitrate, CRF: 23, Threads: capThreads(2), Preset: "faster"},
		{Name: "minimal"},
	}
}

// Encoder выполняет один вызов ffmpeg.
type Encoder interface {
	Encode(ctx context.Context, args []string) error
}

type FFmpegEncoder struct {
	Binary string
}

func (e *FFmpegEncoder) Encode(ctx context.Context, args []string) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg encode error: %v, output: %s", err, tail(out, 2048))
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

// EncodeWithFallback пробует ступени по порядку с base args (входы, фильтры
// и маппинг) и пишет out. Частичный файл неудачной ступени удаляется перед
// следующей попыткой. onFail вызывается на каждую неудачную ступень.
func EncodeWithFallback(ctx context.Context, enc Encoder, base []string, tiers []Tier, out string, onFail func(Tier, error)) (Tier, error) {
	for _, t := range tiers {
		args := append(append([]string{}, base...), t.Args()...)
		args = append(args, out)

		err := enc.Encode(ctx, args)
		if err == nil {
			return t, nil
		}
		if onFail != nil {
			onFail(t, err)
		}
		os.Remove(out)
		if ctx.Err() != nil {
			return Tier{}, fmt.Errorf("%w: %v", ErrAllTiersFailed, ctx.Err())
		}
	}
	return Tier{}, ErrAllTiersFailed
}
