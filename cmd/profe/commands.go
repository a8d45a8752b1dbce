package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/profe/internal/api"
	"github.com/pders01/profe/internal/catalog"
	"github.com/pders01/profe/internal/config"
	"github.com/pders01/profe/internal/media"
	"github.com/pders01/profe/internal/pagination"
	"github.com/pders01/profe/internal/searchctl"
	"github.com/pders01/profe/internal/storage"
)

// listFlags are shared by the commands that print a page of results.
type listFlags struct {
	page   int
	output string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page of results to print")
	cmd.Flags().StringVarP(&f.output, "output", "o", outputTable, "output format: table or json")
}

func (f *listFlags) validate() error {
	if f.page < 1 {
		return fmt.Errorf("--page: %w, got %d", pagination.ErrInvalidPage, f.page)
	}
	return validateOutput(f.output)
}

// collect runs one query through a search controller and selects page.
// A blank query pages through source.
func collect[T any](name string, cfg *config.Config, rc config.ResourceConfig, fetch searchctl.SearchFunc[T], query string, page int, source []T) (searchctl.Snapshot[T], error) {
	ctl := searchctl.New(fetch, searchctl.Config{
		Name:       name,
		Timeout:    cfg.Search.Timeout,
		PageSize:   rc.PageSize,
		EmptyQuery: searchctl.EmptyShowsSource,
	}, searchctl.WithSource(source))
	defer ctl.Close()

	ctl.SetQuery(strings.TrimSpace(query))
	ctl.Submit()
	ctl.Wait()
	ctl.SetPage(page)

	snap := ctl.Snapshot()
	return snap, snap.Err
}

func newSearchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search schools or professors",
	}
	cmd.AddCommand(newSearchSchoolsCmd(opts), newSearchProfessorsCmd(opts))
	return cmd
}

func newSearchSchoolsCmd(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "schools <query>",
		Aliases: []string{"school"},
		Short:   "Search schools by name or address",
		Example: `  profe search schools ingenieria
  profe search schools "escuela norte" --page 2 --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lf.validate(); err != nil {
				return err
			}
			cfg, cat, err := openCatalog(opts)
			if err != nil {
				return err
			}
			defer cat.Close()

			snap, err := collect("schools", cfg, cfg.Search.Schools, cat.Schools(opts.offline), strings.Join(args, " "), lf.page, nil)
			if err != nil {
				return err
			}
			return writeSchools(cmd.OutOrStdout(), lf.output, snap)
		},
	}
	lf.register(cmd)
	return cmd
}

func newSearchProfessorsCmd(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "professors <query>",
		Aliases: []string{"professor", "prof"},
		Short:   "Search professors by name or subject",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lf.validate(); err != nil {
				return err
			}
			cfg, cat, err := openCatalog(opts)
			if err != nil {
				return err
			}
			defer cat.Close()

			snap, err := collect("professors", cfg, cfg.Search.Professors, cat.Professors(opts.offline), strings.Join(args, " "), lf.page, nil)
			if err != nil {
				return err
			}

			names := map[int64]string{}
			if !opts.offline {
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout)
				names, err = cat.SchoolNames(ctx, snap.Items)
				cancel()
				if err != nil {
					cmd.PrintErrf("Warning: %v\n", err)
				}
			}
			return writeProfessors(cmd.OutOrStdout(), lf.output, snap, names)
		},
	}
	lf.register(cmd)
	return cmd
}

func newNotesCmd(opts *options) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:   "notes <professorID> [query]",
		Short: "List or search a professor's class notes",
		Long: `Without a query every note of the professor is listed, which needs an
API token (api.token or PROFE_API_TOKEN). Without a token the notes remembered
by this session are listed instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := lf.validate(); err != nil {
				return err
			}
			professorID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || professorID <= 0 {
				return fmt.Errorf("invalid professor ID %q", args[0])
			}
			query := strings.Join(args[1:], " ")

			cfg, cat, err := openCatalog(opts)
			if err != nil {
				return err
			}
			defer cat.Close()

			var source []storage.Note
			if strings.TrimSpace(query) == "" {
				source, err = allNotes(cmd.Context(), cfg, cat, professorID, opts.offline)
				if err != nil {
					return err
				}
			}
			snap, err := collect("notes", cfg, cfg.Search.Notes, cat.Notes(professorID, opts.offline), query, lf.page, source)
			if err != nil {
				return err
			}
			if name := cat.ProfessorName(professorID); name != "" && lf.output == outputTable {
				fmt.Fprintf(cmd.OutOrStdout(), "Notes of %s\n", name)
			}
			return writeNotes(cmd.OutOrStdout(), lf.output, snap)
		},
	}
	lf.register(cmd)
	return cmd
}

func allNotes(ctx context.Context, cfg *config.Config, cat *catalog.Manager, professorID int64, offline bool) ([]storage.Note, error) {
	if offline || !cat.Client().HasToken() {
		return cat.Store().GetNotes(professorID)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.API.Timeout)
	defer cancel()
	return cat.AllNotes(ctx, professorID)
}

func newOpenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "open <url>...",
		Short: "Open note attachments in an external viewer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := media.NewLauncher(cfg.Media).OpenAll(args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %d attachment(s)\n", len(args))
			return nil
		},
	}
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget everything this session remembered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cat, err := openCatalog(opts)
			if err != nil {
				return err
			}
			defer cat.Close()
			if err := cat.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	var force bool
	gen := &cobra.Command{
		Use:   "generate [path]",
		Short: "Write the default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
			}
			if err := config.GenerateDefaultConfig(path); err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", abs)
			return nil
		},
	}
	gen.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(gen)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "profe %s\n", Version)
			fmt.Fprintln(out, "Professor reviews and class notes")
			fmt.Fprintln(out, "github.com/pders01/profe")
		},
	}
}

// isAPIError reports errors worth a hint about the API settings.
func isAPIError(err error) bool {
	var se *api.StatusError
	return errors.As(err, &se) || api.IsNetwork(err)
}
