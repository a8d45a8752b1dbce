// Package media opens note attachments in external viewers.
package media

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/validation"
)

// ErrNoViewer is returned when nothing on this system can open a URL.
var ErrNoViewer = errors.New("no application found to open attachment")

type Launcher struct {
	imageViewer   string
	pdfViewer     string
	defaultOpener string

	registry  *PlayerRegistry
	detector  *TypeDetector
	validator *validation.URLValidator

	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
	log      *debuglog.FieldLogger
}

// UserPlayersPath is where personal viewer definitions are read from.
func UserPlayersPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".profe", "players.toml")
}

// NewLauncher picks the first installed viewer of each type from cfg for
// the running platform, falling back to the default opener.
func NewLauncher(cfg config.MediaConfig) *Launcher {
	return newLauncher(cfg, exec.LookPath, UserPlayersPath())
}

func newLauncher(cfg config.MediaConfig, lookPath func(string) (string, error), overrides ...string) *Launcher {
	registry, err := NewPlayerRegistry(overrides...)
	if err != nil {
		debuglog.Errorf("player definitions: %v", err)
		registry = &PlayerRegistry{players: map[string]PlayerDefinition{}, goos: runtime.GOOS}
	}
	detector, err := NewTypeDetector()
	if err != nil {
		debuglog.Errorf("media types: %v", err)
		detector = &TypeDetector{}
	}

	l := &Launcher{
		registry:      registry,
		detector:      detector,
		validator:     validation.NewAttachmentURLValidator(),
		defaultOpener: cfg.DefaultOpener,
		lookPath:      lookPath,
		start:         startDetached,
		log:           debuglog.WithFields(map[string]any{"component": "media"}),
	}
	if l.defaultOpener == "" {
		l.defaultOpener = detector.DefaultOpener()
	}

	var players config.MediaPlayers
	switch runtime.GOOS {
	case "linux":
		players = cfg.Linux
	case "windows":
		players = cfg.Windows
	default:
		players = cfg.Darwin
	}
	l.imageViewer = l.findViewer(players.Image)
	l.pdfViewer = l.findViewer(players.PDF)
	return l
}

func (l *Launcher) findViewer(candidates []string) string {
	for _, name := range candidates {
		if _, err := l.lookPath(l.registry.Executable(name)); err == nil {
			return name
		}
	}
	return l.defaultOpener
}

// Viewer reports which program handles attachments of type t.
func (l *Launcher) Viewer(t Type) string {
	switch t {
	case TypeImage:
		return l.imageViewer
	case TypePDF:
		return l.pdfViewer
	default:
		return l.defaultOpener
	}
}

// DetectType classifies raw without opening it.
func (l *Launcher) DetectType(raw string) Type {
	return l.detector.DetectType(raw)
}

// Open validates raw and hands it to a detached viewer process.
func (l *Launcher) Open(raw string) error {
	target, err := l.validator.ValidateAndNormalize(raw)
	if err != nil {
		return fmt.Errorf("invalid attachment URL: %w", err)
	}

	t := l.detector.DetectType(target)
	viewer := l.Viewer(t)
	if viewer == "" {
		return ErrNoViewer
	}

	cmd, err := l.registry.Command(viewer, t, target)
	if err != nil {
		l.log.Debugf("%v; using %s", err, viewer)
		cmd = exec.Command(l.registry.Executable(viewer), target)
	}

	l.log.Infof("opening %s attachment with %s", t, viewer)
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("starting %s: %w", viewer, err)
	}
	return nil
}

// OpenAll opens every attachment and reports all failures together.
func (l *Launcher) OpenAll(urls []string) error {
	if len(urls) == 0 {
		return errors.New("note has no attachments")
	}
	var errs []error
	for _, u := range urls {
		if err := l.Open(u); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
		}
	}
	return errors.Join(errs...)
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
