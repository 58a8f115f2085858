package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Export.FrameRate != 30 || cfg.Export.MaxDuration != 30 {
		t.Errorf("unexpected export defaults: %+v", cfg.Export)
	}
	if cfg.Palette.Size != 5 {
		t.Errorf("palette size = %d, want 5", cfg.Palette.Size)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[export]
format = "horizontal"
codec = "vp9"
quality = "medium"

[palette]
size = 3
method = "kmeans"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.Format != "horizontal" || cfg.Export.Codec != "vp9" || cfg.Export.Quality != "medium" {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Palette.Size != 3 || cfg.Palette.Method != "kmeans" {
		t.Errorf("palette = %+v", cfg.Palette)
	}
	// untouched sections keep defaults
	if cfg.Analysis.WindowSize != 1024 {
		t.Errorf("window size = %d", cfg.Analysis.WindowSize)
	}
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("export:\n  colour: red\n"), ".yaml")
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestLoadYAML(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("export:\n  frame_rate: 24\nmetrics:\n  addr: \":9464\"\n"), ".yml")
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Export.FrameRate != 24 {
		t.Errorf("frame rate = %d", cfg.Export.FrameRate)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LYRICMOTION_EXPORT_FORMAT", "horizontal")
	t.Setenv("LYRICMOTION_EXPORT_MAX_DURATION", "12.5")
	t.Setenv("LYRICMOTION_NOTIFY_DESKTOP", "yes")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Export.Format != "horizontal" {
		t.Errorf("format = %q", cfg.Export.Format)
	}
	if cfg.Export.MaxDuration != 12.5 {
		t.Errorf("max duration = %v", cfg.Export.MaxDuration)
	}
	if !cfg.Notify.Desktop {
		t.Error("expected desktop notifications enabled")
	}
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("LYRICMOTION_EXPORT_FRAME_RATE", "fast")
	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Export.Format = "square"
	cfg.Export.Codec = "h265"
	cfg.Analysis.WindowSize = 1000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"export.format", "export.codec", "analysis.window_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(path, []byte("x=1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for .ini")
	}
}
