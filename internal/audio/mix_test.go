package audio

import (
	"math"
	"strings"
	"testing"
)

func TestGain(t *testing.T) {
	if g := Gain(-15); math.Abs(g-0.177828) > 1e-6 {
		t.Errorf("Gain(-15) = %f", g)
	}
	if Gain(0) != 1 {
		t.Error("0 dB must be unity")
	}
}

func TestPlanDuration(t *testing.T) {
	tests := []struct {
		name       string
		ambientDur float64
		loops      int
	}{
		{"shorter ambient loops", 3, 3},
		{"exact divisor", 2.5, 3},
		{"longer ambient is cut", 60, 0},
		{"equal length", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Plan("narration.mp3", 10, "rain.mp3", tt.ambientDur, DefaultGainDB)
			if m.Duration != 10 {
				t.Errorf("Duration = %f, want narration length", m.Duration)
			}
			if m.Loops != tt.loops {
				t.Errorf("Loops = %d, want %d", m.Loops, tt.loops)
			}
			if m.Covered() < m.Duration {
				t.Errorf("ambient covers %f, less than %f", m.Covered(), m.Duration)
			}
		})
	}
}

func TestPlanWithoutAmbient(t *testing.T) {
	for _, m := range []Mix{
		Plan("n.mp3", 4, "", 0, DefaultGainDB),
		Plan("n.mp3", 4, "broken.mp3", 0, DefaultGainDB),
	} {
		if m.HasAmbient() || m.Duration != 4 {
			t.Errorf("unexpected plan %+v", m)
		}
		if !strings.Contains(m.Filter(), "atrim=duration=4.000") || strings.Contains(m.Filter(), "amix") {
			t.Errorf("unexpected filter %s", m.Filter())
		}
	}
}

func TestFilter(t *testing.T) {
	f := Plan("n.mp3", 42.5, "amb.mp3", 30, -15).Filter()
	for _, want := range []string{
		"[1:a]atrim=duration=42.500",
		"volume=0.177828",
		"amix=inputs=2:duration=first",
		"normalize=0[aout]",
	} {
		if !strings.Contains(f, want) {
			t.Errorf("filter %q missing %q", f, want)
		}
	}
	if strings.Contains(f, "[0:a]atrim=duration=42.500,asetpts=PTS-STARTPTS,volume") {
		t.Error("narration must stay unattenuated")
	}
}
