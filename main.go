// xclocsync moves Xcode localizations between an Xcode project and a
// translation repository that keeps one XLIFF file per locale.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l10nkit/xclocsync/config"
	"github.com/l10nkit/xclocsync/i18n"
	"github.com/l10nkit/xclocsync/langmeta"
	"github.com/l10nkit/xclocsync/localemap"
	"github.com/l10nkit/xclocsync/lockfile"
	"github.com/l10nkit/xclocsync/pipeline"
	"github.com/l10nkit/xclocsync/xcloc"
	"github.com/l10nkit/xclocsync/xcodebuild"
	"github.com/l10nkit/xclocsync/xliff"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	verbose    bool
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xclocsync",
		Short: i18n.T("Synchronize Xcode localizations with a translation repository"),
		Long: `xclocsync moves strings between an Xcode project and a translation
repository that stores one XLIFF file per locale.

Commands:
  export      Export strings from Xcode into the repository
  import      Import translations from the repository into Xcode
  templates   Write the untranslated template XLIFF
  status      Show repository locales and their state
  locales     List repository locales

Settings are read from .xclocsync.yaml in --root, then XCLOCSYNC_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := localemap.Default().Validate(); err != nil {
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", i18n.T("Project root directory"))
	root.PersistentFlags().StringVar(&configPath, "config", "", i18n.T("Config file (default: <root>/.xclocsync.yaml)"))
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, i18n.T("Show xcodebuild output"))

	root.AddCommand(
		newExportCmd(),
		newImportCmd(),
		newTemplatesCmd(),
		newStatusCmd(),
		newLocalesCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "xclocsync version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared flag handling
// ---------------------------------------------------------------------------

// commonFlags are the per-command overrides of config values.
type commonFlags struct {
	project     string
	repo        string
	locales     []string
	concurrency int
}

func (f *commonFlags) register(cmd *cobra.Command, withProject, withLocales bool) {
	if withProject {
		cmd.Flags().StringVar(&f.project, "project", "", i18n.T("Xcode project (.xcodeproj)"))
	}
	cmd.Flags().StringVar(&f.repo, "repo", "", i18n.T("Translation repository directory"))
	if withLocales {
		cmd.Flags().StringSliceVar(&f.locales, "locale", nil, i18n.T("Only process these repository locales (repeatable, comma-separated)"))
		_ = cmd.RegisterFlagCompletionFunc("locale", completeLocales)
	}
}

// loadConfig layers flags that were explicitly set over file and env.
func loadConfig(cmd *cobra.Command, f *commonFlags) (*config.Config, error) {
	cfg, err := config.Load(rootDir, configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("project") {
		cfg.Project = f.project
	}
	if flags.Changed("repo") {
		cfg.Repo = f.repo
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if err := cfg.Finalize(rootDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveLocales returns the repository locales to work on.
func resolveLocales(cfg *config.Config, only []string) ([]string, error) {
	available := cfg.Locales
	if len(available) == 0 {
		discovered, invalid, err := config.DiscoverLocales(cfg.Repo)
		if err != nil {
			return nil, err
		}
		for _, l := range invalid {
			logWarning(i18n.T("Directory %q does not look like a locale code"), l)
		}
		available = discovered
	}

	selected, missing := config.SelectLocales(available, only)
	for _, l := range missing {
		logWarning(i18n.T("Locale %s is not in the repository, skipping"), l)
	}
	if len(selected) == 0 {
		return nil, errors.New(i18n.T("no locales to process"))
	}
	return selected, nil
}

func completeLocales(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(rootDir, configPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if repo, _ := cmd.Flags().GetString("repo"); repo != "" {
		cfg.Repo = repo
	}
	if cfg.Finalize(rootDir) != nil || cfg.Repo == "" {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	locales, _, err := config.DiscoverLocales(cfg.Repo)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return locales, cobra.ShellCompDirectiveNoFileComp
}

func newTool(cfg *config.Config) *xcodebuild.Runner {
	r := &xcodebuild.Runner{Executable: cfg.Xcodebuild}
	if verbose {
		r.Stdout = os.Stderr
	}
	return r
}

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logWarning(i18n.T("Interrupted, finishing current locales..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// finish prints every per-locale failure and turns the report into the
// command's error.
func finish(report *pipeline.Report, singular, plural string) error {
	for _, f := range report.Failed() {
		if f.Path != "" {
			logError("%s [%s] %s: %v", f.Locale, f.Stage, f.Path, f.Err)
		} else {
			logError("%s [%s]: %v", f.Locale, f.Stage, f.Err)
		}
	}

	failed := len(report.Failed())
	ok := report.Succeeded() - report.Skipped()
	if ok > 0 {
		logSuccess(i18n.N(singular, plural, ok), ok)
	}
	if n := report.Skipped(); n > 0 {
		logInfo(i18n.N("%d locale unchanged", "%d locales unchanged", n), n)
	}
	if failed > 0 {
		return fmt.Errorf(i18n.N("%d locale failed", "%d locales failed", failed), failed)
	}
	return nil
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var (
		flags       commonFlags
		skipExtract bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: i18n.T("Export strings from Xcode into the repository"),
		Long: `Run xcodebuild -exportLocalizations for every repository locale, filter
the exported XLIFF files and copy them into <repo>/<locale>/<xliff_name>.

Examples:
  xclocsync export --project Client.xcodeproj --repo ../firefoxios-l10n
  xclocsync export --locale de,fr --concurrency 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			return runExport(cfg, flags.locales, skipExtract)
		},
	}

	flags.register(cmd, true, true)
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, i18n.T("Parallel locale workers (0 = automatic)"))
	cmd.Flags().BoolVar(&skipExtract, "skip-extract", false, i18n.T("Reuse an existing export directory"))

	return cmd
}

func runExport(cfg *config.Config, only []string, skipExtract bool) error {
	if err := cfg.RequireProject(); err != nil {
		return err
	}
	if err := cfg.RequireRepo(); err != nil {
		return err
	}
	locales, err := resolveLocales(cfg, only)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	e := &pipeline.Exporter{
		Tool:         newTool(cfg),
		Project:      cfg.Project,
		ExportDir:    cfg.ExportDir,
		RepoDir:      cfg.Repo,
		FileName:     cfg.XLIFFName,
		CommentsPath: cfg.CommentsFile,
		Mapper:       localemap.Default(),
		Policy:       cfg.ExportPolicy(),
		Concurrency:  cfg.Concurrency,
		SkipExtract:  skipExtract,
		Hooks:        pipeline.Hooks{OnLog: logInfo, OnError: logWarning},
	}
	report, err := e.Run(ctx, locales)
	if err != nil {
		return err
	}
	return finish(report, "%d locale exported", "%d locales exported")
}

// ---------------------------------------------------------------------------
// import
// ---------------------------------------------------------------------------

func newImportCmd() *cobra.Command {
	var (
		flags commonFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: i18n.T("Import translations from the repository into Xcode"),
		Long: `Build an .xcloc bundle from each repository XLIFF and run
xcodebuild -importLocalizations on it. Locales whose XLIFF has not
changed since the last successful import are skipped unless --force.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.ImportConcurrency = flags.concurrency
			}
			return runImport(cfg, flags.locales, force)
		},
	}

	flags.register(cmd, true, true)
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 1, i18n.T("Parallel imports (xcodebuild must tolerate it)"))
	cmd.Flags().BoolVar(&force, "force", false, i18n.T("Import unchanged locales too"))

	return cmd
}

func runImport(cfg *config.Config, only []string, force bool) error {
	if err := cfg.RequireProject(); err != nil {
		return err
	}
	if err := cfg.RequireRepo(); err != nil {
		return err
	}
	locales, err := resolveLocales(cfg, only)
	if err != nil {
		return err
	}

	lock, err := lockfile.Load(rootDir)
	if err != nil {
		return err
	}
	if len(only) == 0 {
		lock.Clean(locales)
	}

	ctx, cancel := signalContext()
	defer cancel()

	im := &pipeline.Importer{
		Tool:     newTool(cfg),
		Project:  cfg.Project,
		RepoDir:  cfg.Repo,
		FileName: cfg.XLIFFName,
		Builder: &xcloc.Builder{
			Dir:               cfg.ImportDir,
			DevelopmentRegion: cfg.DevelopmentRegion,
			Project:           cfg.ProjectName,
			Mapper:            localemap.Default(),
		},
		Mapper:      localemap.Default(),
		Policy:      cfg.ImportPolicy(),
		Lock:        lock,
		Force:       force,
		Concurrency: cfg.ImportConcurrency,
		Hooks:       pipeline.Hooks{OnLog: logInfo, OnError: logWarning},
	}
	report, err := im.Run(ctx, locales)
	if err != nil {
		logWarning(i18n.T("Could not save %s: %v"), lock.Path(), err)
	}
	return finish(report, "%d locale imported", "%d locales imported")
}

// ---------------------------------------------------------------------------
// templates
// ---------------------------------------------------------------------------

func newTemplatesCmd() *cobra.Command {
	var (
		flags       commonFlags
		skipExtract bool
	)

	cmd := &cobra.Command{
		Use:   "templates",
		Short: i18n.T("Write the untranslated template XLIFF"),
		Long: `Export the source language and write <repo>/templates/<xliff_name>
with excluded strings, targets and target-language removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if err := cfg.RequireProject(); err != nil {
				return err
			}
			if err := cfg.RequireRepo(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			t := &pipeline.Templates{
				Tool:        newTool(cfg),
				Project:     cfg.Project,
				ExportDir:   cfg.ExportDir,
				Dest:        cfg.TemplatePath(),
				Policy:      cfg.ExportPolicy(),
				SkipExtract: skipExtract,
				Hooks:       pipeline.Hooks{OnLog: logInfo, OnError: logWarning},
			}
			stats, err := t.Run(ctx)
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Template written to %s (%d excluded strings, %d empty files removed)"), t.Dest, stats.Dropped, stats.Pruned)
			return nil
		},
	}

	flags.register(cmd, true, false)
	cmd.Flags().BoolVar(&skipExtract, "skip-extract", false, i18n.T("Reuse an existing export directory"))

	return cmd
}

// ---------------------------------------------------------------------------
// status (read-only)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: i18n.T("Show repository locales and their state"),
		Long: `List every repository locale with its Xcode code, display name,
translation progress and whether it changed since the last import.
Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if err := cfg.RequireRepo(); err != nil {
				return err
			}
			lock, err := lockfile.Load(rootDir)
			if err != nil {
				return err
			}
			locales, err := resolveLocales(cfg, flags.locales)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), cfg, lock, locales)
			return nil
		},
	}

	flags.register(cmd, false, true)
	return cmd
}

// localeStatus is one row of the status table.
type localeStatus struct {
	Locale     string
	IDE        string
	Mapped     bool
	Meta       langmeta.Meta
	Exists     bool
	Translated int
	Total      int
	Lock       string
}

func collectStatus(cfg *config.Config, lock *lockfile.LockFile, locale string) localeStatus {
	mapper := localemap.Default()
	ide, mapped := mapper.IDEMapping(locale)
	if !mapped {
		ide = locale
	}
	st := localeStatus{Locale: locale, IDE: ide, Mapped: mapped, Meta: langmeta.Resolve(locale), Lock: "new"}

	path := cfg.RepoArtifact(locale)
	translated, total, err := translationProgress(path)
	if err != nil {
		st.Lock = "-"
		return st
	}
	st.Exists = true
	st.Translated, st.Total = translated, total

	if _, ok := lock.Lookup(locale); ok {
		st.Lock = "imported"
		if sum, err := lockfile.HashFile(path); err == nil && lock.IsChanged(locale, sum) {
			st.Lock = "changed"
		}
	}
	return st
}

// translationProgress counts units with a non-empty target.
func translationProgress(path string) (translated, total int, err error) {
	doc, err := xliff.ParseFile(path)
	if err != nil {
		return 0, 0, err
	}
	for _, f := range doc.Files {
		for _, u := range f.Units {
			total++
			if t, ok := u.Target(); ok && t != "" {
				translated++
			}
		}
	}
	return translated, total, nil
}

func printStatus(w io.Writer, cfg *config.Config, lock *lockfile.LockFile, locales []string) {
	fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, i18n.T("Repository"), colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 72))
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Path:"), cfg.Repo)
	fmt.Fprintf(w, "  %-12s %s\n", i18n.T("File:"), cfg.XLIFFName)
	if cfg.Project != "" {
		fmt.Fprintf(w, "  %-12s %s\n", i18n.T("Project:"), cfg.Project)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-10s %-10s %-22s %-8s %s\n", "Locale", "Xcode", "Name", "Import", "Translated")
	fmt.Fprintln(w, strings.Repeat("─", 72))
	for _, l := range locales {
		st := collectStatus(cfg, lock, l)
		ide := st.IDE
		if st.Mapped {
			ide += "*"
		}
		progress := i18n.T("missing")
		if st.Exists {
			progress = progressBar(percent(st.Translated, st.Total), 20)
		}
		fmt.Fprintf(w, "%-10s %-10s %-22s %-8s %s\n", st.Locale, ide, truncate(st.Meta.Label(), 22), st.Lock, progress)
	}
	fmt.Fprintln(w, strings.Repeat("─", 72))
	fmt.Fprintln(w, i18n.T("* Xcode uses a different code for this locale"))
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 100 / total
}

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100

	color := colorGreen
	switch {
	case percent < 30:
		color = colorRed
	case percent < 100:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset + fmt.Sprintf(" %3d%%", percent)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// ---------------------------------------------------------------------------
// locales
// ---------------------------------------------------------------------------

func newLocalesCmd() *cobra.Command {
	var (
		flags commonFlags
		ide   bool
	)

	cmd := &cobra.Command{
		Use:   "locales",
		Short: i18n.T("List repository locales"),
		Long: `Print the repository locales one per line, or their Xcode spellings
with --ide. Useful for scripting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if err := cfg.RequireRepo(); err != nil {
				return err
			}
			locales, err := resolveLocales(cfg, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, l := range locales {
				if ide {
					l = localemap.Default().ToIDE(l)
				}
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}

	flags.register(cmd, false, false)
	cmd.Flags().BoolVar(&ide, "ide", false, i18n.T("Print Xcode locale codes"))

	return cmd
}
