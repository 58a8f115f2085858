package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLrclibGetURL    = "https://lrclib.net/api/get"
	DefaultLrclibSearchURL = "https://lrclib.net/api/search"
	HTTPTimeoutSeconds     = 10

	DefaultFrameRate     = 30
	DefaultMaxDuration   = 30.0
	DefaultPaletteSize   = 5
	DefaultThumbnailSize = 128

	envPrefix = "LYRICMOTION_"
)

type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Export   ExportConfig   `toml:"export" yaml:"export"`
	Analysis AnalysisConfig `toml:"analysis" yaml:"analysis"`
	Palette  PaletteConfig  `toml:"palette" yaml:"palette"`
	FFmpeg   FFmpegConfig   `toml:"ffmpeg" yaml:"ffmpeg"`
	Lyrics   LyricsConfig   `toml:"lyrics" yaml:"lyrics"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type ExportConfig struct {
	Format      string  `toml:"format" yaml:"format"`
	Quality     string  `toml:"quality" yaml:"quality"`
	Codec       string  `toml:"codec" yaml:"codec"`
	FrameRate   int     `toml:"frame_rate" yaml:"frame_rate"`
	MaxDuration float64 `toml:"max_duration_seconds" yaml:"max_duration_seconds"`
	OutputDir   string  `toml:"output_dir" yaml:"output_dir"`
}

type AnalysisConfig struct {
	WindowSize      int     `toml:"window_size" yaml:"window_size"`
	HopSize         int     `toml:"hop_size" yaml:"hop_size"`
	ThresholdK      float64 `toml:"threshold_k" yaml:"threshold_k"`
	ThresholdWindow float64 `toml:"threshold_window_seconds" yaml:"threshold_window_seconds"`
	MinBeatInterval float64 `toml:"min_beat_interval_seconds" yaml:"min_beat_interval_seconds"`
}

type PaletteConfig struct {
	Size          int    `toml:"size" yaml:"size"`
	Method        string `toml:"method" yaml:"method"`
	ThumbnailSize int    `toml:"thumbnail_size" yaml:"thumbnail_size"`
}

type FFmpegConfig struct {
	// Path is resolved through PATH when it has no separator. Empty disables ffmpeg.
	Path string `toml:"path" yaml:"path"`
}

type LyricsConfig struct {
	LrclibGetURL    string `toml:"lrclib_get_url" yaml:"lrclib_get_url"`
	LrclibSearchURL string `toml:"lrclib_search_url" yaml:"lrclib_search_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

type NotifyConfig struct {
	Desktop bool `toml:"desktop" yaml:"desktop"`
}

type MetricsConfig struct {
	// Addr enables a Prometheus /metrics listener when non-empty, e.g. ":9464".
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Export: ExportConfig{
			Format:      "vertical",
			Quality:     "high",
			Codec:       "mjpeg",
			FrameRate:   DefaultFrameRate,
			MaxDuration: DefaultMaxDuration,
			OutputDir:   ".",
		},
		Analysis: AnalysisConfig{
			WindowSize:      1024,
			HopSize:         512,
			ThresholdK:      1.5,
			ThresholdWindow: 1.0,
			MinBeatInterval: 0.1,
		},
		Palette: PaletteConfig{
			Size:          DefaultPaletteSize,
			Method:        "binning",
			ThumbnailSize: DefaultThumbnailSize,
		},
		FFmpeg: FFmpegConfig{Path: "ffmpeg"},
		Lyrics: LyricsConfig{
			LrclibGetURL:    DefaultLrclibGetURL,
			LrclibSearchURL: DefaultLrclibSearchURL,
			TimeoutSeconds:  HTTPTimeoutSeconds,
		},
	}
}

// Load builds a config from defaults, the optional file at path, and the
// environment. The file format is chosen by extension (.toml, .yaml, .yml).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(cfg, f, filepath.Ext(path)); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes r on top of the defaults without touching the environment.
func LoadFromReader(r io.Reader, ext string) (*Config, error) {
	cfg := Default()
	if err := decode(cfg, r, ext); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, r io.Reader, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode toml: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}
	return nil
}

// ApplyEnv overrides fields from LYRICMOTION_* variables.
func (c *Config) ApplyEnv() error {
	var errs []error

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
	c.Export.Format = getEnvOrDefault("EXPORT_FORMAT", c.Export.Format)
	c.Export.Quality = getEnvOrDefault("EXPORT_QUALITY", c.Export.Quality)
	c.Export.Codec = getEnvOrDefault("EXPORT_CODEC", c.Export.Codec)
	c.Export.OutputDir = getEnvOrDefault("OUTPUT_DIR", c.Export.OutputDir)
	c.Palette.Method = getEnvOrDefault("PALETTE_METHOD", c.Palette.Method)
	c.FFmpeg.Path = getEnvOrDefault("FFMPEG_PATH", c.FFmpeg.Path)
	c.Lyrics.LrclibGetURL = getEnvOrDefault("LRCLIB_GET_URL", c.Lyrics.LrclibGetURL)
	c.Lyrics.LrclibSearchURL = getEnvOrDefault("LRCLIB_SEARCH_URL", c.Lyrics.LrclibSearchURL)
	c.Metrics.Addr = getEnvOrDefault("METRICS_ADDR", c.Metrics.Addr)

	if v := getEnvOrDefault("EXPORT_FRAME_RATE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEXPORT_FRAME_RATE: %w", envPrefix, err))
		} else {
			c.Export.FrameRate = n
		}
	}
	if v := getEnvOrDefault("EXPORT_MAX_DURATION", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEXPORT_MAX_DURATION: %w", envPrefix, err))
		} else {
			c.Export.MaxDuration = f
		}
	}
	if v := getEnvOrDefault("NOTIFY_DESKTOP", ""); v != "" {
		c.Notify.Desktop = v == "1" || v == "true" || v == "yes"
	}

	return errors.Join(errs...)
}

// Validate returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.Export.Format {
	case "vertical", "horizontal":
	default:
		errs = append(errs, fmt.Errorf("export.format %q is invalid; valid values: vertical, horizontal", c.Export.Format))
	}
	switch c.Export.Quality {
	case "low", "medium", "high":
	default:
		errs = append(errs, fmt.Errorf("export.quality %q is invalid; valid values: low, medium, high", c.Export.Quality))
	}
	switch c.Export.Codec {
	case "mjpeg", "vp9":
	default:
		errs = append(errs, fmt.Errorf("export.codec %q is invalid; valid values: mjpeg, vp9", c.Export.Codec))
	}
	if c.Export.FrameRate <= 0 || c.Export.FrameRate > 120 {
		errs = append(errs, errors.New("export.frame_rate must be between 1 and 120"))
	}
	if c.Export.MaxDuration <= 0 {
		errs = append(errs, errors.New("export.max_duration_seconds must be positive"))
	}

	if c.Analysis.WindowSize < 64 || c.Analysis.WindowSize&(c.Analysis.WindowSize-1) != 0 {
		errs = append(errs, errors.New("analysis.window_size must be a power of two >= 64"))
	}
	if c.Analysis.HopSize <= 0 || c.Analysis.HopSize > c.Analysis.WindowSize {
		errs = append(errs, errors.New("analysis.hop_size must be in (0, window_size]"))
	}
	if c.Analysis.ThresholdK <= 0 {
		errs = append(errs, errors.New("analysis.threshold_k must be positive"))
	}
	if c.Analysis.ThresholdWindow <= 0 {
		errs = append(errs, errors.New("analysis.threshold_window_seconds must be positive"))
	}
	if c.Analysis.MinBeatInterval <= 0 {
		errs = append(errs, errors.New("analysis.min_beat_interval_seconds must be positive"))
	}

	if c.Palette.Size <= 0 || c.Palette.Size > 16 {
		errs = append(errs, errors.New("palette.size must be between 1 and 16"))
	}
	switch c.Palette.Method {
	case "binning", "kmeans":
	default:
		errs = append(errs, fmt.Errorf("palette.method %q is invalid; valid values: binning, kmeans", c.Palette.Method))
	}
	if c.Palette.ThumbnailSize < 16 {
		errs = append(errs, errors.New("palette.thumbnail_size must be at least 16"))
	}

	if c.Lyrics.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("lyrics.timeout_seconds must be positive"))
	}

	return errors.Join(errs...)
}

// HTTPTimeout returns the lrclib request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Lyrics.TimeoutSeconds) * time.Second
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return fallback
	}
	return value
}
