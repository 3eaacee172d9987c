package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir string        `yaml:"data_dir"`
	Video   VideoConfig   `yaml:"video"`
	Overlay OverlayConfig `yaml:"overlay"`
	AI      AIConfig      `yaml:"ai"`
	Speech  SpeechConfig  `yaml:"speech"`
	Images  ImagesConfig  `yaml:"images"`
	Sources SourcesConfig `yaml:"sources"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Export  ExportConfig  `yaml:"export"`
}

type VideoConfig struct {
	OutputDir     string  `yaml:"output_dir"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	FPS           int     `yaml:"fps"`
	Quality       string  `yaml:"quality"`
	AspectRatio   string  `yaml:"aspect_ratio"`
	ChunkSize     int     `yaml:"chunk_size"`
	AmbientGainDB float64 `yaml:"ambient_gain_db"`
	AmbientDir    string  `yaml:"ambient_dir"`
	Poster        bool    `yaml:"poster"`
	Workers       int     `yaml:"workers"`
	Effect        string  `yaml:"effect"`
}

type OverlayConfig struct {
	Dust      bool   `yaml:"dust"`
	Captions  bool   `yaml:"captions"`
	FontPath  string `yaml:"font_path"`
	FontSize  int    `yaml:"font_size"`
	DustDots  int    `yaml:"dust_dots"`
	DustFrame int    `yaml:"dust_frames"`
}

type AIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Style       string  `yaml:"style"`
	Attempts    int     `yaml:"attempts"`
}

type SpeechConfig struct {
	TTSCommand     string `yaml:"tts_command"`
	WhisperCommand string `yaml:"whisper_command"`
	Voice          string `yaml:"voice"`
	Attempts       int    `yaml:"attempts"`
}

type ImagesConfig struct {
	BaseURL  string `yaml:"base_url"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Model    string `yaml:"model"`
	Attempts int    `yaml:"attempts"`
}

type SourcesConfig struct {
	Subreddits []string `yaml:"subreddits"`
	TimeFilter string   `yaml:"time_filter"`
	Limit      int      `yaml:"limit"`
	MinLength  int      `yaml:"min_length"`
}

type CacheConfig struct {
	Backend       string `yaml:"backend"` // sqlite или redis
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisKey      string `yaml:"redis_key"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Workers int    `yaml:"workers"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type ExportConfig struct {
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	QRCode   bool   `yaml:"qr_code"`
	PathMode bool   `yaml:"path_style"`
}

// Default возвращает конфигурацию на случай, когда файл не задан.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Video: VideoConfig{
			OutputDir:     filepath.Join("output", "videos"),
			Width:         1920,
			Height:        1080,
			FPS:           24,
			Quality:       "4000k",
			AspectRatio:   "16:9",
			ChunkSize:     2,
			AmbientGainDB: -15,
			AmbientDir:    filepath.Join("input", "ambient"),
			Poster:        true,
			Workers:       runtime.NumCPU(),
			Effect:        "kenburns",
		},
		Overlay: OverlayConfig{
			Dust:      true,
			Captions:  true,
			FontSize:  40,
			DustDots:  1000,
			DustFrame: 24,
		},
		AI: AIConfig{
			Model:       "command-r",
			Temperature: 0.7,
			Style:       "cinematic",
			Attempts:    3,
		},
		Speech: SpeechConfig{
			TTSCommand:     "edge-tts --voice {voice} --file {in} --write-media {out}",
			WhisperCommand: "whisper {in} --model base --output_format srt --output_dir {dir}",
			Voice:          "en-US-GuyNeural",
			Attempts:       3,
		},
		Images: ImagesConfig{
			BaseURL:  "https://image.pollinations.ai",
			Width:    1920,
			Height:   1080,
			Model:    "flux",
			Attempts: 3,
		},
		Sources: SourcesConfig{
			Subreddits: []string{"nosleep", "shortscarystories", "creepypasta", "LetsNotMeet", "TrueScaryStories"},
			TimeFilter: "week",
			Limit:      30,
			MinLength:  1000,
		},
		Cache: CacheConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join("data", "used_stories.db"),
			RedisAddr:  "localhost:6379",
			RedisKey:   "story2video:used",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Workers: 2,
		},
		Kafka: KafkaConfig{
			Topic:   "story2video.requests",
			GroupID: "story2video",
		},
		Export: ExportConfig{
			Dir:    filepath.Join("output", "exports"),
			Prefix: "story2video",
			QRCode: true,
		},
	}
}

// Load читает YAML поверх значений по умолчанию и применяет переменные окружения.
// Пустой путь или отсутствующий файл дают значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STORY2VIDEO_DATA"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("COHERE_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("TTS_COMMAND"); v != "" {
		c.Speech.TTSCommand = v
	}
	if v := os.Getenv("WHISPER_COMMAND"); v != "" {
		c.Speech.WhisperCommand = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASS"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Cache.RedisDB = db
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Export.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Export.Region = v
	}
}

func (c *Config) Validate() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.Video.FPS)
	}
	if c.Video.ChunkSize <= 0 {
		c.Video.ChunkSize = 2
	}
	switch c.Video.Effect {
	case "", "kenburns", "static", "none":
	default:
		return fmt.Errorf("unknown video effect %q", c.Video.Effect)
	}
	switch c.Cache.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// ProjectsDir папка с записями проектов.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.DataDir, "projects")
}
