package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/l10nkit/xclocsync/atomicfile"
	"github.com/l10nkit/xclocsync/comments"
	"github.com/l10nkit/xclocsync/localemap"
	"github.com/l10nkit/xclocsync/unitfilter"
	"github.com/l10nkit/xclocsync/xcloc"
	"github.com/l10nkit/xclocsync/xcodebuild"
	"github.com/l10nkit/xclocsync/xliff"
)

// Exporter moves strings from the Xcode project into the repository.
type Exporter struct {
	Tool Tool
	// Project is the .xcodeproj path.
	Project string
	// ExportDir receives the <locale>.xcloc bundles from the tool.
	ExportDir string
	// RepoDir is the translation repository root.
	RepoDir string
	// FileName is the XLIFF name inside each repository locale directory.
	FileName string
	// CommentsPath is the override sidecar; a missing file is fine.
	CommentsPath string
	Mapper       *localemap.Mapper
	// Policy defaults to unitfilter.ExportPolicy().
	Policy *unitfilter.Policy
	// Concurrency bounds the locale workers; 0 picks DefaultConcurrency.
	Concurrency int
	// SkipExtract reuses bundles already present in ExportDir.
	SkipExtract bool
	Hooks
}

// Run exports the given repository locales. The returned error is only
// set when the run could not start at all; per-locale failures are in
// the Report.
func (e *Exporter) Run(ctx context.Context, locales []string) (*Report, error) {
	mapper := e.Mapper
	if mapper == nil {
		mapper = localemap.Default()
	}
	policy := e.Policy
	if policy == nil {
		policy = unitfilter.ExportPolicy()
	}

	ide := make([]string, len(locales))
	for i, l := range locales {
		ide[i] = mapper.ToIDE(l)
	}

	if !e.SkipExtract {
		e.log("Exporting %d locales from %s", len(ide), e.Project)
		if err := e.Tool.Export(ctx, e.Project, e.ExportDir, ide); err != nil {
			if !errors.Is(err, xcodebuild.ErrFailed) {
				return nil, fmt.Errorf("exporting localizations: %w", err)
			}
			// Bundles that were produced are still usable; the
			// missing ones fail individually below.
			e.warn("%v", err)
		}
	}

	overrides, err := comments.Load(e.CommentsPath)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		e.log("Loaded %d comment overrides from %s", len(overrides), e.CommentsPath)
	}

	results := runLocales(ctx, locales, e.Concurrency, func(_ context.Context, locale string) Result {
		return e.exportLocale(locale, mapper, policy, overrides)
	})
	return &Report{Results: results}, nil
}

func (e *Exporter) exportLocale(locale string, mapper *localemap.Mapper, policy *unitfilter.Policy, overrides comments.Overrides) Result {
	ide := mapper.ToIDE(locale)
	res := Result{Locale: locale, IDELocale: ide}
	src := xcloc.XLIFFPath(e.ExportDir, ide)

	doc, err := xliff.ParseFile(src)
	if err != nil {
		return fail(res, StageParse, src, err)
	}

	MapTargetLanguage(doc, mapper)
	res.Stats = policy.ApplyExport(doc)
	overrides.Apply(doc)

	if err := doc.WriteFile(src); err != nil {
		return fail(res, StageWrite, src, err)
	}

	dst := filepath.Join(e.RepoDir, mapper.ToRepository(ide), e.FileName)
	if err := atomicfile.Replace(dst, src); err != nil {
		return fail(res, StageCopy, dst, err)
	}
	res.Path = dst
	e.log("%s: %d units dropped, %d empty files removed", locale, res.Stats.Dropped, res.Stats.Pruned)
	return res
}

// MapTargetLanguage rewrites every file's target-language from IDE to
// repository spelling. Files without the attribute are left alone.
func MapTargetLanguage(doc *xliff.Document, mapper *localemap.Mapper) {
	for _, f := range doc.Files {
		if tl, ok := f.TargetLanguage(); ok {
			f.SetTargetLanguage(mapper.ToRepository(tl))
		}
	}
}
