package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/profe/internal/catalog"
	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/debuglog"
	"github.com/pders01/profe/internal/media"
	"github.com/pders01/profe/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	dbPath     string
	offline    bool
	quiet      bool
}

func main() {
	err := newRootCmd().Execute()
	debuglog.Close()
	if err != nil {
		if isAPIError(err) {
			fmt.Fprintf(os.Stderr, "Hint: check api.base_url in %s or PROFE_API_BASE_URL\n", config.DefaultPath())
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "profe",
		Short:        "Browse professor reviews and class notes",
		Long:         "profe searches schools, professors and class notes of the rating platform from the terminal.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVar(&opts.dbPath, "db", "", "path to the session database (overrides config)")
	flags.BoolVar(&opts.offline, "offline", false, "search what this session remembered instead of the API")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "skip startup banner")

	cmd.AddCommand(
		newTUICmd(opts),
		newSearchCmd(opts),
		newNotesCmd(opts),
		newOpenCmd(opts),
		newLogoutCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w\nrun '%s --help' for usage", err, c.CommandPath())
	})
	return cmd
}

// loadConfig reads configuration, applies flag overrides and starts file
// logging.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}
	return cfg, nil
}

func openCatalog(opts *options) (*config.Config, *catalog.Manager, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cat, nil
}

func newTUICmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive browser (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "skip startup banner")
	return cmd
}

func runTUI(_ *cobra.Command, opts *options) error {
	cfg, cat, err := openCatalog(opts)
	if err != nil {
		return err
	}
	defer cat.Close()

	if opts.offline && !cat.Offline() {
		return catalog.ErrOfflineUnavailable
	}
	if !opts.quiet {
		tui.ShowBanner(Version)
	}

	app := tui.NewApp(cat, media.NewLauncher(cfg.Media), cfg, opts.offline)
	defer app.Close()

	debuglog.Infof("starting TUI (offline=%t, api=%s)", opts.offline, cat.Client().BaseURL())
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
