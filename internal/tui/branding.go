package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/profe/internal/config"
)

const AppName = "profe"

const Tagline = "Professor reviews and class notes"

// LogoLines is the block-letter wordmark.
var LogoLines = []string{
	"█▀█ █▀█ █▀█ █▀▀ █▀▀",
	"█▀▀ █▀▄ █▄█ █▀  ██▄",
}

const CompactLogo = `profe ›`

var (
	PrimaryColor    = lipgloss.Color("#FF6B6B")
	SecondaryColor  = lipgloss.Color("#4ECDC4")
	AccentColor     = lipgloss.Color("#95E1D3")
	BackgroundColor = lipgloss.Color("#1A1A2E")
	SurfaceColor    = lipgloss.Color("#16213E")
	TextColor       = lipgloss.Color("#EAEAEA")
	MutedColor      = lipgloss.Color("#94A3B8")
	ErrorColor      = lipgloss.Color("#F87171")
	SuccessColor    = lipgloss.Color("#4ADE80")
	WarnColor       = lipgloss.Color("#FFE66D")
)

var (
	LogoStyle          lipgloss.Style
	TitleStyle         lipgloss.Style
	HeaderStyle        lipgloss.Style
	StatusBarStyle     lipgloss.Style
	ItemTitleStyle     lipgloss.Style
	SelectedItemStyle  lipgloss.Style
	ItemDetailStyle    lipgloss.Style
	HelpStyle          lipgloss.Style
	TagStyle           lipgloss.Style
	StarStyle          lipgloss.Style
	SeparatorStyle     lipgloss.Style
	StatusInfoStyle    lipgloss.Style
	StatusSuccessStyle lipgloss.Style
	StatusWarnStyle    lipgloss.Style
	StatusErrorStyle   lipgloss.Style
	CurrentPageStyle   lipgloss.Style
)

func init() {
	buildStyles()
}

// ApplyTheme replaces the palette with the [ui.colors] section. Empty
// entries keep the built-in color.
func ApplyTheme(c config.UIColors) {
	set := func(dst *lipgloss.Color, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&PrimaryColor, c.Primary)
	set(&SecondaryColor, c.Secondary)
	set(&AccentColor, c.Accent)
	set(&BackgroundColor, c.Background)
	set(&SurfaceColor, c.Surface)
	set(&TextColor, c.Text)
	set(&MutedColor, c.Muted)
	set(&ErrorColor, c.Error)
	set(&SuccessColor, c.Success)
	buildStyles()
}

func buildStyles() {
	LogoStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	TitleStyle = lipgloss.NewStyle().
		Foreground(TextColor).
		Background(SurfaceColor).
		Bold(true).
		Padding(0, 2)
	HeaderStyle = lipgloss.NewStyle().Foreground(SecondaryColor).Bold(true)
	StatusBarStyle = lipgloss.NewStyle().Foreground(MutedColor).Padding(0, 1)
	ItemTitleStyle = lipgloss.NewStyle().Foreground(TextColor)
	SelectedItemStyle = lipgloss.NewStyle().
		Foreground(BackgroundColor).
		Background(AccentColor).
		Bold(true)
	ItemDetailStyle = lipgloss.NewStyle().Foreground(MutedColor)
	HelpStyle = lipgloss.NewStyle().Foreground(MutedColor).Italic(true)
	TagStyle = lipgloss.NewStyle().
		Foreground(BackgroundColor).
		Background(SecondaryColor).
		Padding(0, 1)
	StarStyle = lipgloss.NewStyle().Foreground(WarnColor)
	SeparatorStyle = lipgloss.NewStyle().Foreground(MutedColor)
	StatusInfoStyle = lipgloss.NewStyle().Foreground(MutedColor)
	StatusSuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	StatusWarnStyle = lipgloss.NewStyle().Foreground(WarnColor)
	StatusErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	CurrentPageStyle = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true).Underline(true)
}

// GetWelcomeMessage is shown while the landing list is still empty.
func GetWelcomeMessage(modifier string) string {
	return GetCompactBanner(fmt.Sprintf("Type to search schools • %s+p professors", modifier))
}

func GetCompactBanner(message string) string {
	lines := make([]string, 0, len(LogoLines))
	for _, line := range LogoLines {
		lines = append(lines, LogoStyle.Render(line))
	}
	return lipgloss.JoinVertical(
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...),
		"",
		HelpStyle.Render(message),
	)
}

// Banner renders the wordmark, tagline and version inside a double border.
func Banner(version string) string {
	tagline := Tagline
	if version != "" && version != "dev" {
		if !strings.HasPrefix(strings.ToLower(version), "v") {
			version = "v" + version
		}
		tagline += " " + version
	}

	lines := make([]string, 0, len(LogoLines)+2)
	for _, line := range LogoLines {
		lines = append(lines, LogoStyle.Render(line))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(SecondaryColor).Render(tagline))

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(SecondaryColor).
		Padding(1, 3).
		Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func ShowBanner(version string) {
	fmt.Println(lipgloss.NewStyle().
		Width(60).
		Align(lipgloss.Center).
		MarginTop(1).
		MarginBottom(1).
		Render(Banner(version)))
}
