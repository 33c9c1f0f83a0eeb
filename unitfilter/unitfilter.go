// Package unitfilter decides which trans-units reach translators (export)
// and which reach Xcode (import), and backfills the units Xcode must never
// receive empty.
package unitfilter

import (
	"strings"

	"github.com/l10nkit/xclocsync/xliff"
)

// DisplayNameID is excluded everywhere except in the designated extension's
// InfoPlist.strings, where it is the only user-visible name of the widget.
const DisplayNameID = "CFBundleDisplayName"

// Default markers identifying the extension InfoPlist file by its
// <file original="…"> path.
const (
	DefaultExtensionMarker = "WidgetKit/"
	DefaultPlistName       = "InfoPlist.strings"
)

// ImportExcluded are ids never handed back to Xcode.
var ImportExcluded = []string{
	"CFBundleName",
	"CFBundleDisplayName",
	"CFBundleShortVersionString",
}

// ExportExcluded are ids never shown to translators. It is ImportExcluded
// plus the password-manager extension label.
var ExportExcluded = append(append([]string(nil), ImportExcluded...),
	"1Password Fill Browser Action",
)

// Required are ids whose target must be non-empty after import; a missing
// usage description makes the app crash or fail store review.
var Required = []string{
	"NSCameraUsageDescription",
	"NSLocationWhenInUseUsageDescription",
	"NSMicrophoneUsageDescription",
	"NSPhotoLibraryAddUsageDescription",
	"ShortcutItemTitleNewPrivateTab",
	"ShortcutItemTitleNewTab",
	"ShortcutItemTitleQRCode",
}

// Decision is the outcome of classifying one unit.
type Decision int

const (
	Keep Decision = iota
	Drop
)

func (d Decision) String() string {
	if d == Drop {
		return "drop"
	}
	return "keep"
}

// Context describes the file containing a unit.
type Context struct {
	// ExtensionPlist is true when the file is the designated extension's
	// InfoPlist.strings.
	ExtensionPlist bool
}

// Policy is one direction's filtering rules.
type Policy struct {
	Excluded        map[string]bool
	Required        map[string]bool
	ExtensionMarker string
	PlistName       string
}

// ExportPolicy returns the export-direction policy. extra ids are excluded
// in addition to ExportExcluded.
func ExportPolicy(extra ...string) *Policy {
	return newPolicy(ExportExcluded, nil, extra)
}

// ImportPolicy returns the import-direction policy, including the required
// backfill set. extra ids are excluded in addition to ImportExcluded.
func ImportPolicy(extra ...string) *Policy {
	return newPolicy(ImportExcluded, Required, extra)
}

func newPolicy(excluded, required, extra []string) *Policy {
	return &Policy{
		Excluded:        toSet(excluded, extra),
		Required:        toSet(required, nil),
		ExtensionMarker: DefaultExtensionMarker,
		PlistName:       DefaultPlistName,
	}
}

func toSet(a, b []string) map[string]bool {
	s := make(map[string]bool, len(a)+len(b))
	for _, id := range a {
		s[id] = true
	}
	for _, id := range b {
		s[id] = true
	}
	return s
}

// ContextFor returns the classification context of a file.
func (p *Policy) ContextFor(f *xliff.File) Context {
	return Context{ExtensionPlist: p.IsExtensionPlist(f.Original())}
}

// IsExtensionPlist reports whether original names the extension's
// InfoPlist.strings.
func (p *Policy) IsExtensionPlist(original string) bool {
	return strings.Contains(original, p.ExtensionMarker) && strings.Contains(original, p.PlistName)
}

// Classify decides whether the unit with the given id is kept.
func (p *Policy) Classify(id string, ctx Context) Decision {
	if id == DisplayNameID && ctx.ExtensionPlist {
		return Keep
	}
	if p.Excluded[id] {
		return Drop
	}
	return Keep
}

// Exclude detaches every dropped unit from doc and returns the count.
// Units without an id are kept. Empty files are not pruned here; see Prune.
func (p *Policy) Exclude(doc *xliff.Document) int {
	dropped := 0
	for _, f := range doc.Files {
		ctx := p.ContextFor(f)
		dropped += f.RemoveUnits(func(u *xliff.Unit) bool {
			id := u.ID()
			return id != "" && p.Classify(id, ctx) == Drop
		})
	}
	return dropped
}

// Backfill gives every required unit with an absent or empty target a
// target equal to its source. Existing non-empty targets are never touched,
// so applying it twice equals applying it once.
func (p *Policy) Backfill(doc *xliff.Document) (int, error) {
	filled := 0
	for _, f := range doc.Files {
		for _, u := range f.Units {
			if !p.Required[u.ID()] {
				continue
			}
			if t, ok := u.Target(); ok && t != "" {
				continue
			}
			src, err := u.SourceText()
			if err != nil {
				return filled, err
			}
			u.SetTarget(src)
			filled++
		}
	}
	return filled, nil
}

// Prune removes files left without units.
func Prune(doc *xliff.Document) int {
	return doc.PruneEmptyFiles()
}

// Stats summarises one filtering pass.
type Stats struct {
	Dropped int
	Filled  int
	Pruned  int
}

// ApplyExport runs the export pass: exclusion then pruning.
func (p *Policy) ApplyExport(doc *xliff.Document) Stats {
	var s Stats
	s.Dropped = p.Exclude(doc)
	s.Pruned = Prune(doc)
	return s
}

// ApplyImport runs the import pass: exclusion, required backfill, pruning.
func (p *Policy) ApplyImport(doc *xliff.Document) (Stats, error) {
	var s Stats
	s.Dropped = p.Exclude(doc)
	filled, err := p.Backfill(doc)
	s.Filled = filled
	if err != nil {
		return s, err
	}
	s.Pruned = Prune(doc)
	return s, nil
}
