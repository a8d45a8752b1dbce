package media

import (
	_ "embed"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed media_types.toml
var mediaTypesTOML []byte

// Type is the kind of viewer an attachment needs.
type Type int

const (
	TypeUnknown Type = iota
	TypeImage
	TypePDF
)

func (t Type) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypePDF:
		return "pdf"
	default:
		return "unknown"
	}
}

type TypeConfig struct {
	Extensions  []string `toml:"extensions"`
	URLPatterns []string `toml:"url_patterns"`
}

type TypesConfig struct {
	Image     TypeConfig                `toml:"image"`
	PDF       TypeConfig                `toml:"pdf"`
	Platforms map[string]PlatformConfig `toml:"platforms"`
}

type PlatformConfig struct {
	DefaultOpener string `toml:"default_opener"`
}

// TypeDetector classifies attachment URLs by extension, then by URL pattern.
type TypeDetector struct {
	config TypesConfig
}

func NewTypeDetector() (*TypeDetector, error) {
	var cfg TypesConfig
	if err := toml.Unmarshal(mediaTypesTOML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing media_types.toml: %w", err)
	}
	return &TypeDetector{config: cfg}, nil
}

// Extension returns the lowercased extension of the URL path, without the
// dot. Query and fragment are ignored.
func Extension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

func (d *TypeDetector) DetectType(raw string) Type {
	if ext := Extension(raw); ext != "" {
		switch {
		case slices.Contains(d.config.Image.Extensions, ext):
			return TypeImage
		case slices.Contains(d.config.PDF.Extensions, ext):
			return TypePDF
		}
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return TypeUnknown
	}
	switch {
	case matchesAny(lower, d.config.PDF.URLPatterns):
		return TypePDF
	case matchesAny(lower, d.config.Image.URLPatterns):
		return TypeImage
	}
	return TypeUnknown
}

// DefaultOpener is the platform's generic "open this" command.
func (d *TypeDetector) DefaultOpener() string {
	if p, ok := d.config.Platforms[runtime.GOOS]; ok && p.DefaultOpener != "" {
		return p.DefaultOpener
	}
	if p, ok := d.config.Platforms["fallback"]; ok && p.DefaultOpener != "" {
		return p.DefaultOpener
	}
	return "open"
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
