package media

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func testRegistry(goos string) *PlayerRegistry {
	return &PlayerRegistry{
		goos: goos,
		players: map[string]PlayerDefinition{
			"zathura": {
				Platforms: []string{"linux"},
				PDF:       &PlayerArgs{Args: []string{"--fork"}},
			},
			"preview": {
				Command:   "open",
				Platforms: []string{"darwin"},
				Image:     &PlayerArgs{Args: []string{"-g"}, ArgsDarwin: []string{"-a", "Preview"}},
				PDF:       &PlayerArgs{ArgsDarwin: []string{"-a", "Preview"}},
			},
		},
	}
}

func TestRegistryCommand(t *testing.T) {
	const target = "https://cdn.profe.app/a.pdf"

	tests := []struct {
		name    string
		goos    string
		player  string
		typ     Type
		want    []string
		wantErr bool
	}{
		{name: "plain args", goos: "linux", player: "zathura", typ: TypePDF, want: []string{"zathura", "--fork", target}},
		{name: "platform args and command alias", goos: "darwin", player: "preview", typ: TypeImage, want: []string{"open", "-a", "Preview", target}},
		{name: "unsupported type", goos: "linux", player: "zathura", typ: TypeImage, wantErr: true},
		{name: "wrong platform", goos: "darwin", player: "zathura", typ: TypePDF, wantErr: true},
		{name: "undefined player", goos: "linux", player: "mupdf", typ: TypePDF, want: []string{"mupdf", target}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := testRegistry(tt.goos).Command(tt.player, tt.typ, target)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Command() = %v, want error", cmd.Args)
				}
				return
			}
			if err != nil {
				t.Fatalf("Command() error = %v", err)
			}
			if !slices.Equal(cmd.Args, tt.want) {
				t.Errorf("Command() args = %v, want %v", cmd.Args, tt.want)
			}
		})
	}
}

func TestRegistryArgsAreNotShared(t *testing.T) {
	r := testRegistry("linux")
	first, _ := r.Command("zathura", TypePDF, "https://a.example/1.pdf")
	second, _ := r.Command("zathura", TypePDF, "https://a.example/2.pdf")
	if first.Args[2] == second.Args[2] {
		t.Errorf("commands share backing args: %v and %v", first.Args, second.Args)
	}
	if got := r.players["zathura"].PDF.Args; len(got) != 1 {
		t.Errorf("definition args mutated: %v", got)
	}
}

func TestEmbeddedPlayers(t *testing.T) {
	r, err := NewPlayerRegistry()
	if err != nil {
		t.Fatalf("NewPlayerRegistry() error = %v", err)
	}
	for _, name := range []string{"zathura", "evince", "feh", "sxiv", "preview"} {
		if !slices.Contains(r.Names(), name) {
			t.Errorf("built-in player %q missing", name)
		}
	}
	if got := r.Executable("preview"); got != "open" {
		t.Errorf("Executable(preview) = %q, want open", got)
	}
}

func TestUserOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.toml")
	data := `
[players.zathura]
description = "mine"
platforms = ["linux", "darwin"]
pdf = { args = ["--mode=presentation"] }

[players.mupdf]
platforms = ["linux"]
pdf = { args = [] }
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	r, err := NewPlayerRegistry(path, filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("NewPlayerRegistry() error = %v", err)
	}
	if got := r.players["zathura"].Description; got != "mine" {
		t.Errorf("override not applied, description = %q", got)
	}
	if !slices.Contains(r.Names(), "mupdf") {
		t.Error("user player not added")
	}
	if !slices.Contains(r.Names(), "feh") {
		t.Error("built-ins lost after merge")
	}
}

func TestBrokenUserOverridesAreIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.toml")
	if err := os.WriteFile(path, []byte("[players\nbroken"), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := NewPlayerRegistry(path)
	if err != nil {
		t.Fatalf("NewPlayerRegistry() error = %v", err)
	}
	if len(r.Names()) == 0 {
		t.Error("built-ins should survive a broken override file")
	}
}
