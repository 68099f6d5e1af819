package config

import (
	_ "embed"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagecrop/pagecrop/backend-go/internal/editor"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
)

//go:embed defaults/editor.yaml
var defaultEditorYAML []byte

// EditorSettings are the per-operator editor preferences used by the CLI.
type EditorSettings struct {
	Precision      int           `yaml:"precision"`
	MaxRotation    float64       `yaml:"max_rotation"`
	RepeatInterval time.Duration `yaml:"repeat_interval"`
	Style          StyleSettings `yaml:"style"`
	Preview        struct {
		MaxSide int `yaml:"max_side"`
	} `yaml:"preview"`
}

type StyleSettings struct {
	Outline   string  `yaml:"outline"`
	Selected  string  `yaml:"selected"`
	Dim       string  `yaml:"dim"`
	LineWidth float64 `yaml:"line_width"`
}

// LoadEditor loads editor settings.
// Search order: customPath -> ~/.pagecrop/editor.yaml -> ./configs/editor.yaml -> embedded default
func LoadEditor(customPath string) (EditorSettings, error) {
	cfg, err := DefaultEditorSettings()
	if err != nil {
		return cfg, err
	}

	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, cfg.Validate()
	}

	for _, path := range []string{userConfigPath("editor.yaml"), filepath.Join("configs", "editor.yaml")} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		// Layer over the defaults so partial files work.
		next := cfg
		if err := yaml.Unmarshal(data, &next); err == nil && next.Validate() == nil {
			return next, nil
		}
	}
	return cfg, nil
}

// DefaultEditorSettings decodes the embedded defaults.
func DefaultEditorSettings() (EditorSettings, error) {
	var cfg EditorSettings
	if err := yaml.Unmarshal(defaultEditorYAML, &cfg); err != nil {
		return cfg, fmt.Errorf("parse embedded editor defaults: %w", err)
	}
	return cfg, nil
}

// DefaultEditorYAML returns the embedded defaults for `pagectl config init`.
func DefaultEditorYAML() []byte {
	return defaultEditorYAML
}

func (s EditorSettings) Validate() error {
	if s.Precision < 0 || s.Precision > 6 {
		return fmt.Errorf("precision must be between 0 and 6, got %d", s.Precision)
	}
	if s.MaxRotation <= 0 || s.MaxRotation > 90 {
		return fmt.Errorf("max_rotation must be in (0, 90], got %v", s.MaxRotation)
	}
	if s.RepeatInterval <= 0 {
		return fmt.Errorf("repeat_interval must be positive")
	}
	for _, c := range []string{s.Style.Outline, s.Style.Selected, s.Style.Dim} {
		if _, err := ParseHexColor(c); err != nil {
			return err
		}
	}
	return nil
}

func (s EditorSettings) Engine() page.Engine {
	return page.Engine{Precision: s.Precision, MaxRotation: s.MaxRotation}
}

// EditorStyle returns the outline colors. Settings are validated on load.
func (s EditorSettings) EditorStyle() editor.Style {
	outline, _ := ParseHexColor(s.Style.Outline)
	selected, _ := ParseHexColor(s.Style.Selected)
	return editor.Style{Outline: outline, Selected: selected}
}

func (s EditorSettings) DimColor() color.NRGBA {
	c, _ := ParseHexColor(s.Style.Dim)
	return c
}

// ParseHexColor reads #rrggbb or #rrggbbaa.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok || (len(hex) != 6 && len(hex) != 8) {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func userConfigPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pagecrop", name)
}
