package audio

import (
	"context"
	"fmt"
	"math"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DefaultGainDB ослабление фона относительно озвучки.
const DefaultGainDB = -15.0

// Gain переводит децибелы в линейный множитель амплитуды.
func Gain(db float64) float64 {
	return math.Pow(10, db/20)
}

// Mix план озвучки с необязательным фоном. Duration всегда равна
// длине озвучки; фоновый трек повторяется Loops лишних раз
// и обрезается до Duration.
type Mix struct {
	Primary         string
	Ambient         string
	AmbientDuration float64
	Duration        float64
	GainDB          float64
	Loops           int
}

// Plan строит микс для озвучки длиной primaryDur секунд. Фоновый трек
// без пригодной длительности выкидывается из плана.
func Plan(primary string, primaryDur float64, ambient string, ambientDur, gainDB float64) Mix {
	m := Mix{Primary: primary, Duration: primaryDur, GainDB: gainDB}
	if ambient == "" || ambientDur <= 0 || primaryDur <= 0 {
		return m
	}
	m.Ambient = ambient
	m.AmbientDuration = ambientDur
	if ambientDur < primaryDur {
		m.Loops = int(math.Ceil(primaryDur/ambientDur)) - 1
	}
	return m
}

func (m Mix) HasAmbient() bool {
	return m.Ambient != ""
}

func (m Mix) Gain() float64 {
	return Gain(m.GainDB)
}

// Covered сколько секунд звучит зацикленный фон до обрезки.
func (m Mix) Covered() float64 {
	return m.AmbientDuration * float64(m.Loops+1)
}

// Filter это filter_complex для входов [0:a] озвучка, [1:a] фон.
func (m Mix) Filter() string {
	if !m.HasAmbient() {
		return fmt.Sprintf("[0:a]atrim=duration=%.3f,asetpts=PTS-STARTPTS[aout]", m.Duration)
	}
	return fmt.Sprintf("[0:a]atrim=duration=%.3f,asetpts=PTS-STARTPTS[narr];"+
		"[1:a]atrim=duration=%.3f,asetpts=PTS-STARTPTS,volume=%.6f[amb];"+
		"[narr][amb]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]",
		m.Duration, m.Duration, m.Gain())
}

// Premixer сводит Mix в один аудиофайл.
type Premixer interface {
	Premix(ctx context.Context, m Mix, out string) error
}

// FFmpegMixer сводит микс через ffmpeg-go.
type FFmpegMixer struct{}

func (FFmpegMixer) Premix(ctx context.Context, m Mix, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.HasAmbient() {
		return fmt.Errorf("no ambient track to mix")
	}
	duration := fmt.Sprintf("%.3f", m.Duration)

	narration := ffmpeg.Input(m.Primary).Audio().
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": duration}).
		Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"})

	ambient := ffmpeg.Input(m.Ambient, ffmpeg.KwArgs{"stream_loop": m.Loops}).Audio().
		Filter("atrim", ffmpeg.Args{}, ffmpeg.KwArgs{"duration": duration}).
		Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"}).
		Filter("volume", ffmpeg.Args{fmt.Sprintf("%.6f", m.Gain())})

	mixed := ffmpeg.Filter([]*ffmpeg.Stream{narration, ambient}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
		"inputs":             2,
		"duration":           "first",
		"dropout_transition": 0,
		"normalize":          0,
	})

	err := ffmpeg.Output([]*ffmpeg.Stream{mixed}, out, ffmpeg.KwArgs{
		"c:a": "aac",
		"b:a": "192k",
		"t":   duration,
	}).OverWriteOutput().Run()
	if err != nil {
		return fmt.Errorf("ffmpeg premix error: %w", err)
	}
	return nil
}
