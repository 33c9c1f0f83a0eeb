package pipeline

import (
	"context"
	"fmt"

	"github.com/l10nkit/xclocsync/localemap"
	"github.com/l10nkit/xclocsync/unitfilter"
	"github.com/l10nkit/xclocsync/xcloc"
	"github.com/l10nkit/xclocsync/xliff"
)

// Templates produces the untranslated template XLIFF that the
// repository hands to translators for new locales.
type Templates struct {
	Tool Tool
	// Project is the .xcodeproj path.
	Project string
	// ExportDir receives the source-language bundle.
	ExportDir string
	// Dest is the template file to write.
	Dest string
	// Policy defaults to unitfilter.ExportPolicy().
	Policy      *unitfilter.Policy
	SkipExtract bool
	Hooks
}

// Run extracts the source language and writes Dest. It returns the
// filtering stats of the written template.
func (t *Templates) Run(ctx context.Context) (unitfilter.Stats, error) {
	policy := t.Policy
	if policy == nil {
		policy = unitfilter.ExportPolicy()
	}

	if !t.SkipExtract {
		t.log("Exporting source language from %s", t.Project)
		if err := t.Tool.Export(ctx, t.Project, t.ExportDir, []string{localemap.SourceIDE}); err != nil {
			return unitfilter.Stats{}, fmt.Errorf("exporting source language: %w", err)
		}
	}

	src := xcloc.XLIFFPath(t.ExportDir, localemap.SourceIDE)
	doc, err := xliff.ParseFile(src)
	if err != nil {
		return unitfilter.Stats{}, err
	}

	stats := StripTemplate(doc, policy)
	if err := doc.WriteFile(t.Dest); err != nil {
		return stats, err
	}
	t.log("Wrote template with %d units to %s", doc.UnitCount(), t.Dest)
	return stats, nil
}

// StripTemplate turns a source-language export into a template: excluded
// units go, every target goes, target-language goes, and empty files are
// pruned.
func StripTemplate(doc *xliff.Document, policy *unitfilter.Policy) unitfilter.Stats {
	var s unitfilter.Stats
	s.Dropped = policy.Exclude(doc)
	for _, f := range doc.Files {
		f.Attrs.Remove("target-language")
		for _, u := range f.Units {
			u.RemoveTarget()
		}
	}
	s.Pruned = unitfilter.Prune(doc)
	return s
}
