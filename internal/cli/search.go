package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/frisk/internal/backup"
	"github.com/eargollo/frisk/internal/config"
	"github.com/eargollo/frisk/internal/db"
	"github.com/eargollo/frisk/internal/history"
	"github.com/eargollo/frisk/internal/pattern"
	"github.com/eargollo/frisk/internal/search"
	"github.com/eargollo/frisk/internal/watch"
)

type searchOptions struct {
	filespecs     []string
	replace       string
	regex         bool
	filespecRegex bool
	caseSensitive bool
	filespecCase  bool
	noRecursive   bool
	backup        bool
	noBackup      bool
	backupExt     string
	contextLines  int
	maxSize       string
	trim          bool
	excludes      []string
	saved         string
	saveAs        string
	watch         bool
	record        bool
	color         colorMode
}

func newSearchCmd(a *app) *cobra.Command {
	o := &searchOptions{color: colorAuto}

	cmd := &cobra.Command{
		Use:   "search [flags] MATCH [PATH...]",
		Short: "Search (and optionally replace) text in files",
		Long: `Search every file below PATH (default ".") whose name matches a filespec
for MATCH, a literal string unless --regex is given.

With --replace every match is replaced in place. A backup of each rewritten
file is kept as FILE.<ext> unless --no-backup is given.

Examples:
  frisk search TODO src
  frisk search -f "*.go;*.md" --regex "func (\w+)" .
  frisk search -r NewName OldName -f "*.go" ./pkg
  frisk search --saved todo
  frisk search --watch -C 2 FIXME .`,
		Args: func(cmd *cobra.Command, args []string) error {
			if o.saved == "" && len(args) == 0 {
				return fmt.Errorf("requires a MATCH argument or --saved")
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if o.watch && flags.Changed("replace") {
				return fmt.Errorf("--watch cannot be combined with --replace")
			}
			if flags.Changed("backup") && flags.Changed("no-backup") {
				return fmt.Errorf("--backup and --no-backup are mutually exclusive")
			}
			if o.contextLines < 0 {
				return fmt.Errorf("--context must not be negative, got %d", o.contextLines)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.store.Get()
			req, err := o.request(cfg, cmd.Flags().Changed, args)
			if err != nil {
				return err
			}
			if o.watch && req.Flags.Replace {
				return fmt.Errorf("--watch cannot be used with a replacing saved search")
			}
			return a.runSearch(cmd, req, o)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.filespecs, "filespec", "f", nil,
		`file name patterns, ';' or ',' separated (default "*")`)
	f.StringVarP(&o.replace, "replace", "r", "",
		"replace every match with this text")
	f.BoolVar(&o.regex, "regex", false,
		"treat MATCH as a regular expression")
	f.BoolVar(&o.filespecRegex, "filespec-regex", false,
		"treat filespecs as regular expressions instead of wildcards")
	f.BoolVarP(&o.caseSensitive, "case-sensitive", "s", false,
		"case-sensitive matching")
	f.BoolVar(&o.filespecCase, "filespec-case-sensitive", false,
		"case-sensitive filespec matching")
	f.BoolVar(&o.noRecursive, "no-recursive", false,
		"do not descend into subdirectories")
	f.BoolVar(&o.backup, "backup", true,
		"keep a backup of every rewritten file")
	f.BoolVar(&o.noBackup, "no-backup", false,
		"do not keep backups when replacing")
	f.StringVar(&o.backupExt, "backup-ext", "",
		"backup file extension (default from config)")
	f.IntVarP(&o.contextLines, "context", "C", 0,
		"lines of context around each hit")
	f.StringVar(&o.maxSize, "max-size", "",
		`skip files larger than this (e.g. "5 MB"; "0" for no limit)`)
	f.BoolVar(&o.trim, "trim", false,
		"print file names relative to the first PATH")
	f.StringSliceVar(&o.excludes, "exclude", nil,
		`glob of paths to skip, relative to PATH (e.g. "vendor/**")`)
	f.StringVar(&o.saved, "saved", "",
		"start from the saved search NAME")
	f.StringVar(&o.saveAs, "save-as", "",
		"save this search under NAME")
	f.BoolVar(&o.watch, "watch", false,
		"search again whenever files change")
	f.BoolVar(&o.record, "record", false,
		"record the run in the history database")
	f.Var(&o.color, "color",
		"colorize output: auto, always, never")
	return cmd
}

// request builds the search from the config defaults, an optional saved
// search, the positional arguments and the flags the user set.
func (o *searchOptions) request(cfg config.Config, changed func(string) bool, args []string) (search.Request, error) {
	var (
		req search.Request
		err error
	)
	if o.saved != "" {
		saved, err := cfg.FindSaved(o.saved)
		if err != nil {
			return req, err
		}
		if req, err = saved.Request(&cfg); err != nil {
			return req, err
		}
	} else if req, err = cfg.NewRequest(); err != nil {
		return req, err
	}

	if len(args) > 0 {
		req.Match = args[0]
	}
	if len(args) > 1 {
		req.Paths = args[1:]
	}
	if len(req.Paths) == 0 {
		req.Paths = []string{"."}
	}

	if changed("filespec") {
		req.Filespecs = nil
		for _, f := range o.filespecs {
			req.Filespecs = append(req.Filespecs, config.SplitList(f)...)
		}
	}
	if len(req.Filespecs) == 0 {
		req.Filespecs = []string{"*"}
	}
	if changed("replace") {
		req.Replace = o.replace
		req.Flags.Replace = true
	}
	if changed("regex") {
		req.Flags.MatchRegex = o.regex
	}
	if changed("filespec-regex") {
		req.Flags.FilespecRegex = o.filespecRegex
	}
	if changed("case-sensitive") {
		req.Flags.MatchCaseSensitive = o.caseSensitive
	}
	if changed("filespec-case-sensitive") {
		req.Flags.FilespecCaseSensitive = o.filespecCase
	}
	if changed("no-recursive") {
		req.Flags.Recursive = !o.noRecursive
	}
	if changed("backup") {
		req.Flags.Backup = o.backup
	}
	if changed("no-backup") {
		req.Flags.Backup = !o.noBackup
	}
	if changed("backup-ext") {
		req.BackupExtension = strings.TrimPrefix(o.backupExt, ".")
	}
	if changed("context") {
		req.ContextLines = o.contextLines
	}
	if changed("max-size") {
		if req.MaxFileSize, err = config.ParseSize(o.maxSize); err != nil {
			return req, fmt.Errorf("invalid --max-size: %w", err)
		}
	}
	if changed("trim") {
		req.Flags.TrimFilenames = o.trim
	}
	if changed("exclude") {
		req.Excludes = append(req.Excludes, o.excludes...)
	}
	return req, nil
}

// runSearch runs req to completion, printing its output. With --watch it
// keeps searching again after every change until interrupted.
func (a *app) runSearch(cmd *cobra.Command, req search.Request, o *searchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.store.Get()
	pr := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Colors, o.color.enabled())

	var rec *history.Recorder
	if o.record {
		database, err := db.OpenMigrated(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		rec = history.NewRecorder(database)
	}

	states := make(chan search.State, 16)
	var eng *search.Engine
	eng = search.New(search.Options{
		OnPoke: func(p search.Poke) {
			if eng.IsCurrent(p) {
				pr.Batch(p.Batch)
			}
		},
		OnState: func(st search.State) {
			if rec != nil {
				if err := rec.Record(context.Background(), st); err != nil {
					slog.Warn("record search run", "error", err)
				}
			}
			if !st.Running {
				select {
				case states <- st:
				default:
				}
			}
		},
	})
	defer eng.Close()

	start := func(by string) (uint64, error) {
		gen, err := eng.Submit(req)
		if err == nil && rec != nil {
			rec.Label(ctx, gen, by)
		}
		return gen, err
	}

	gen, err := start("cli")
	if err != nil {
		return err
	}
	a.saveConfig(func(c *config.Config) error {
		c.RememberRequest(req)
		if o.saveAs != "" {
			c.PutSaved(config.SavedFromRequest(o.saveAs, req))
		}
		return nil
	})

	st, err := waitIdle(ctx, states, gen)
	if err != nil {
		eng.Cancel()
		pr.Noticef("Search cancelled.")
		return nil
	}
	if st.Outcome == search.OutcomeFailed {
		return fmt.Errorf("search failed: %w", st.Err)
	}
	if !o.watch {
		return nil
	}
	return watchLoop(ctx, req, pr, states, start)
}

// waitIdle blocks until generation gen reports idle.
func waitIdle(ctx context.Context, states <-chan search.State, gen uint64) (search.State, error) {
	for {
		select {
		case <-ctx.Done():
			return search.State{}, ctx.Err()
		case st := <-states:
			if st.Generation == gen {
				return st, nil
			}
		}
	}
}

// watchLoop reruns the search after every batch of changes below its roots.
func watchLoop(ctx context.Context, req search.Request, pr *printer, states <-chan search.State, start func(string) (uint64, error)) error {
	excludes, err := pattern.CompileExcludes(req.Excludes)
	if err != nil {
		return err
	}
	ext := req.BackupExtension
	if ext == "" {
		ext = backup.DefaultExtension
	}
	w, err := watch.New(watch.Options{
		Roots:     req.Paths,
		Recursive: req.Flags.Recursive,
		Excludes:  excludes,
		Ignore:    func(p string) bool { return strings.HasSuffix(p, "."+ext) },
	})
	if err != nil {
		return err
	}
	defer w.Close()

	changes := make(chan []string, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(paths []string) {
			select {
			case changes <- paths:
			case <-ctx.Done():
			}
		})
	}()
	pr.Noticef("Watching %d directories for changes (Ctrl-C to stop).", len(w.Dirs()))

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case paths := <-changes:
			pr.Noticef("%d paths changed, searching again.", len(paths))
			if _, err := start("watch"); err != nil {
				return err
			}
		case st := <-states:
			if st.Outcome == search.OutcomeFailed {
				slog.Warn("search failed", "generation", st.Generation, "error", st.Err)
			}
		}
	}
}
