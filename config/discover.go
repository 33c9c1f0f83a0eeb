package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// TemplatesDir is the reserved repository directory holding the template
// XLIFF. It is never treated as a locale.
const TemplatesDir = "templates"

// DiscoverLocales lists the locale directories of a translation
// repository: every immediate subdirectory except TemplatesDir and hidden
// ones, sorted. Names that are not valid BCP 47 tags are also returned in
// invalid so the caller can warn; they stay in locales.
func DiscoverLocales(repo string) (locales, invalid []string, err error) {
	entries, err := os.ReadDir(repo)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", repo, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == TemplatesDir || strings.HasPrefix(name, ".") {
			continue
		}
		locales = append(locales, name)
		if !IsLocaleCode(name) {
			invalid = append(invalid, name)
		}
	}
	sort.Strings(locales)
	sort.Strings(invalid)
	return locales, invalid, nil
}

// IsLocaleCode reports whether s parses as a BCP 47 tag.
func IsLocaleCode(s string) bool {
	_, err := language.Parse(s)
	return err == nil
}

// SelectLocales narrows available to the ones named in only, preserving
// the order of available. Entries may be comma-separated. An empty only
// selects everything. Requested codes that are not available are
// returned in missing.
func SelectLocales(available, only []string) (selected, missing []string) {
	if len(only) == 0 {
		return available, nil
	}

	want := make(map[string]bool)
	var order []string
	for _, entry := range only {
		for _, l := range strings.Split(entry, ",") {
			l = strings.TrimSpace(l)
			if l != "" && !want[l] {
				want[l] = true
				order = append(order, l)
			}
		}
	}

	have := make(map[string]bool, len(available))
	for _, l := range available {
		have[l] = true
		if want[l] {
			selected = append(selected, l)
		}
	}
	for _, l := range order {
		if !have[l] {
			missing = append(missing, l)
		}
	}
	return selected, missing
}
