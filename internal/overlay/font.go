package overlay

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FallbackFont имя встроенного шрифта на случай, когда жирного нет.
const FallbackFont = "Go-Bold"

// FontDirs места поиска жирного шрифта для субтитров.
func FontDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{"/Library/Fonts", "/System/Library/Fonts", filepath.Join(home, "Library", "Fonts")}
	case "windows":
		return []string{filepath.Join(os.Getenv("WINDIR"), "Fonts")}
	default:
		return []string{"/usr/share/fonts", "/usr/local/share/fonts", filepath.Join(home, ".fonts"), filepath.Join(home, ".local", "share", "fonts")}
	}
}

// FindBoldFont ищет в dirs жирный TrueType/OpenType. Сначала Arial Bold,
// потом любой файл с "bold" в имени.
func FindBoldFont(dirs ...string) (string, bool) {
	var anyBold string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		var arial string
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			name := strings.ToLower(d.Name())
			if !strings.HasSuffix(name, ".ttf") && !strings.HasSuffix(name, ".otf") {
				return nil
			}
			if !strings.Contains(name, "bold") || strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
				return nil
			}
			if strings.Contains(name, "arial") {
				arial = path
				return fs.SkipAll
			}
			if anyBold == "" {
				anyBold = path
			}
			return nil
		})
		if arial != "" {
			return arial, true
		}
	}
	return anyBold, anyBold != ""
}

// LoadFace открывает path размером size пунктов. Пустой path загружает
// встроенный шрифт.
func LoadFace(path string, size float64) (font.Face, error) {
	data := gobold.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
