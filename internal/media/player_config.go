package media

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"runtime"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/profe/internal/debuglog"
)

//go:embed players.toml
var playersTOML []byte

// PlayerDefinition describes how to invoke a viewer. Command overrides the
// executable when the entry name is only an alias (e.g. "preview" runs
// "open -a Preview").
type PlayerDefinition struct {
	Description string      `toml:"description"`
	Command     string      `toml:"command,omitempty"`
	Platforms   []string    `toml:"platforms"`
	Image       *PlayerArgs `toml:"image,omitempty"`
	PDF         *PlayerArgs `toml:"pdf,omitempty"`
}

// PlayerArgs holds the arguments placed before the URL. Platform-specific
// lists win over Args.
type PlayerArgs struct {
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type PlayersConfig struct {
	Players map[string]PlayerDefinition `toml:"players"`
}

type PlayerRegistry struct {
	players map[string]PlayerDefinition
	goos    string
}

// NewPlayerRegistry loads the built-in definitions and merges any user
// files found at overrides, later files winning.
func NewPlayerRegistry(overrides ...string) (*PlayerRegistry, error) {
	var cfg PlayersConfig
	if err := toml.Unmarshal(playersTOML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing players.toml: %w", err)
	}
	r := &PlayerRegistry{players: cfg.Players, goos: runtime.GOOS}
	if r.players == nil {
		r.players = make(map[string]PlayerDefinition)
	}
	for _, p := range overrides {
		if err := r.merge(p); err != nil {
			debuglog.Warnf("ignoring player overrides in %s: %v", p, err)
		}
	}
	return r, nil
}

func (r *PlayerRegistry) merge(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var user PlayersConfig
	if err := toml.Unmarshal(data, &user); err != nil {
		return err
	}
	maps.Copy(r.players, user.Players)
	return nil
}

// Names lists the known player names, sorted.
func (r *PlayerRegistry) Names() []string {
	return slices.Sorted(maps.Keys(r.players))
}

// Executable is the program that runs for player.
func (r *PlayerRegistry) Executable(player string) string {
	if def, ok := r.players[player]; ok && def.Command != "" {
		return def.Command
	}
	return player
}

// Command builds the invocation of player for an attachment of type t.
// Players without a definition are run as "<player> <url>".
func (r *PlayerRegistry) Command(player string, t Type, target string) (*exec.Cmd, error) {
	def, ok := r.players[player]
	if !ok {
		return exec.Command(player, target), nil
	}
	if !slices.Contains(def.Platforms, r.goos) {
		return nil, fmt.Errorf("%s is not available on %s", player, r.goos)
	}

	var pa *PlayerArgs
	switch t {
	case TypeImage:
		pa = def.Image
	case TypePDF:
		pa = def.PDF
	}
	if pa == nil {
		return nil, fmt.Errorf("%s cannot open %s attachments", player, t)
	}

	args := append(slices.Clone(r.args(pa)), target)
	return exec.Command(r.Executable(player), args...), nil
}

func (r *PlayerRegistry) args(pa *PlayerArgs) []string {
	var specific []string
	switch r.goos {
	case "darwin":
		specific = pa.ArgsDarwin
	case "linux":
		specific = pa.ArgsLinux
	case "windows":
		specific = pa.ArgsWindows
	}
	if len(specific) > 0 {
		return specific
	}
	return pa.Args
}
