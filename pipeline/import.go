package pipeline

import (
	"context"
	"path/filepath"

	"github.com/l10nkit/xclocsync/localemap"
	"github.com/l10nkit/xclocsync/lockfile"
	"github.com/l10nkit/xclocsync/unitfilter"
	"github.com/l10nkit/xclocsync/xcloc"
	"github.com/l10nkit/xclocsync/xliff"
)

// Importer moves translations from the repository into the Xcode project.
type Importer struct {
	Tool Tool
	// Project is the .xcodeproj path.
	Project string
	// RepoDir is the translation repository root.
	RepoDir string
	// FileName is the XLIFF name inside each repository locale directory.
	FileName string
	// Builder materializes the bundles handed to the tool.
	Builder *xcloc.Builder
	Mapper  *localemap.Mapper
	// Policy defaults to unitfilter.ImportPolicy().
	Policy *unitfilter.Policy
	// Lock enables skipping unchanged artifacts. Nil imports everything.
	Lock *lockfile.LockFile
	// Force ignores Lock when deciding what to import.
	Force bool
	// Concurrency above 1 imports locales in parallel.
	Concurrency int
	Hooks
}

// Run imports the given repository locales. The returned error is set
// only when the lock file could not be saved.
func (im *Importer) Run(ctx context.Context, locales []string) (*Report, error) {
	mapper := im.Mapper
	if mapper == nil {
		mapper = localemap.Default()
	}
	policy := im.Policy
	if policy == nil {
		policy = unitfilter.ImportPolicy()
	}
	limit := im.Concurrency
	if limit < 1 {
		limit = 1
	}

	results := runLocales(ctx, locales, limit, func(ctx context.Context, locale string) Result {
		return im.importLocale(ctx, locale, mapper, policy)
	})
	report := &Report{Results: results}

	if im.Lock != nil {
		if err := im.Lock.Save(); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (im *Importer) importLocale(ctx context.Context, locale string, mapper *localemap.Mapper, policy *unitfilter.Policy) Result {
	res := Result{Locale: locale, IDELocale: mapper.ToIDE(locale)}
	src := filepath.Join(im.RepoDir, locale, im.FileName)

	var sum string
	if im.Lock != nil {
		if s, err := lockfile.HashFile(src); err == nil {
			sum = s
			if !im.Force && !im.Lock.IsChanged(locale, sum) {
				im.log("%s: unchanged, skipping", locale)
				res.Skipped = true
				return res
			}
		}
	}

	bundle, err := im.Builder.Build(locale, src)
	if err != nil {
		return fail(res, StageBundle, src, err)
	}
	res.Path = bundle.XLIFFPath

	doc, err := xliff.ParseFile(bundle.XLIFFPath)
	if err != nil {
		return fail(res, StageParse, bundle.XLIFFPath, err)
	}

	if ide, ok := mapper.IDEMapping(locale); ok {
		for _, f := range doc.Files {
			f.SetTargetLanguage(ide)
		}
	}
	res.Stats, err = policy.ApplyImport(doc)
	if err != nil {
		return fail(res, StageTransform, bundle.XLIFFPath, err)
	}

	if err := doc.WriteFileUTF16(bundle.XLIFFPath); err != nil {
		return fail(res, StageWrite, bundle.XLIFFPath, err)
	}

	im.log("%s: importing %s", locale, bundle.Dir)
	if err := im.Tool.Import(ctx, im.Project, bundle.Dir); err != nil {
		return fail(res, StageImport, bundle.Dir, err)
	}

	if im.Lock != nil && sum != "" {
		im.Lock.Record(locale, sum)
	}
	return res
}
