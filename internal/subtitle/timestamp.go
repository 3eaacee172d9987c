package subtitle

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ivlev/story2video/internal/warnings"
)

var ErrMalformed = errors.New("malformed timestamp")

// MaxSeconds самый длинный таймкод, 999999:59:59,999.
const MaxSeconds = 999999*3600 + 59*60 + 59.999

// digits разбирает поле из одних цифр ASCII, без знака и пробелов.
func digits(field string, max int) (int, bool) {
	if field == "" || len(field) > max {
		return 0, false
	}
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(field)
	return n, err == nil
}

// Parse переводит "HH:MM:SS,mmm" в секунды. Разделитель '.' тоже
// допустим. Некорректный ввод даёт 0 и ErrMalformed.
func Parse(text string) (float64, error) {
	s := strings.TrimSpace(text)
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	h, okH := digits(parts[0], 6)
	m, okM := digits(parts[1], 2)
	if !okH || !okM || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	secPart := strings.Replace(parts[2], ",", ".", 1)
	whole, frac, hasFrac := strings.Cut(secPart, ".")
	sec, ok := digits(whole, 2)
	if !ok || sec > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	ms := 0
	if hasFrac {
		// "5" это 500 мс, "05" это 50 мс
		for len(frac) > 0 && len(frac) < 3 {
			frac += "0"
		}
		if ms, ok = digits(frac, 3); !ok {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
	}

	total := h*3600000 + m*60000 + sec*1000 + ms
	return float64(total) / 1000, nil
}

// Seconds мягкая форма Parse для рендера: плохой таймкод
// становится 0 и предупреждением вместо ошибки.
func Seconds(text string, w *warnings.List) float64 {
	v, err := Parse(text)
	if err != nil {
		w.Addf("timestamp", "%v, используется 0", err)
		return 0
	}
	return v
}

// Format выводит секунды как "HH:MM:SS,mmm". Миллисекунды отбрасываются,
// значения вне [0, MaxSeconds] прижимаются к границе.
func Format(seconds float64) string {
	switch {
	case seconds < 0 || math.IsNaN(seconds):
		seconds = 0
	case seconds > MaxSeconds:
		seconds = MaxSeconds
	}
	// эпсилон не даёт 1.001 превратиться в 1.000 из-за округления float
	totalMs := int64(math.Floor(seconds*1000 + 1e-6))
	h := totalMs / 3600000
	m := (totalMs / 60000) % 60
	s := (totalMs / 1000) % 60
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
