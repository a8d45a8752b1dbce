package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrPathTraversal = errors.New("directory traversal not allowed")
	ErrPathOutside   = errors.New("path not within allowed directories")
)

// PathValidator keeps the session database and log files inside known
// directories.
type PathValidator struct {
	// AllowedBaseDirs is empty to allow any directory.
	AllowedBaseDirs []string
	MaxPathLength   int
}

// NewPathValidator restricts paths to ~/.profe, ~/.config/profe and the
// temp dir.
func NewPathValidator() *PathValidator {
	homeDir, _ := os.UserHomeDir()
	return &PathValidator{
		AllowedBaseDirs: []string{
			filepath.Join(homeDir, ".profe"),
			filepath.Join(homeDir, ".config", "profe"),
			os.TempDir(),
		},
		MaxPathLength: 4096,
	}
}

// NewPermissivePathValidator allows any directory; traversal and control
// characters are still refused.
func NewPermissivePathValidator() *PathValidator {
	return &PathValidator{MaxPathLength: 4096}
}

// Clean expands ~/, makes path absolute and checks it.
func (v *PathValidator) Clean(p string) (string, error) {
	if p == "" {
		return "", ErrEmptyPath
	}
	if v.MaxPathLength > 0 && len(p) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	for _, r := range p {
		if r == 0 || (r < 32 && r != '\t') {
			return "", fmt.Errorf("path contains control characters")
		}
	}
	for _, part := range strings.FieldsFunc(filepath.ToSlash(p), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}

	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		p = filepath.Join(home, p[2:])
	} else if strings.HasPrefix(p, "~") {
		return "", fmt.Errorf("invalid tilde usage in %q", p)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	if err := v.within(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (v *PathValidator) within(abs string) error {
	if len(v.AllowedBaseDirs) == 0 {
		return nil
	}
	for _, base := range v.AllowedBaseDirs {
		absBase, err := filepath.Abs(base)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absBase, abs)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPathOutside, abs)
}

// DBPath validates the session database path and creates its parent
// directory. The special ":memory:" path is passed through.
func (v *PathValidator) DBPath(p string) (string, error) {
	if p == ":memory:" {
		return p, nil
	}
	if p == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, ".profe", "session.db")
	}
	clean, err := v.Clean(p)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(clean); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", clean)
	}
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}
	return clean, nil
}
