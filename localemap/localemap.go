// Package localemap translates locale codes between the Xcode (IDE) code
// space and the translation repository (Pontoon) code space.
//
// A single canonical table of (IDE, repository) pairs backs both directions,
// so the export and import views cannot drift apart. Codes that are not in
// the table map to themselves.
package localemap

import (
	"fmt"
	"sort"
	"strings"
)

// Pair is one explicit IDE <-> repository spelling difference.
type Pair struct {
	IDE        string
	Repository string
}

// DefaultPairs are the spellings Xcode and Pontoon disagree on.
var DefaultPairs = []Pair{
	{IDE: "es", Repository: "es-ES"},
	{IDE: "fil", Repository: "tl"},
	{IDE: "ga", Repository: "ga-IE"},
	{IDE: "nb", Repository: "nb-NO"},
	{IDE: "nn", Repository: "nn-NO"},
	{IDE: "sat-Olck", Repository: "sat"},
	{IDE: "sv", Repository: "sv-SE"},
	{IDE: "tzm", Repository: "zgh"},
}

// SourceIDE and SourceRepository are the development-language spellings.
// Exporting "en" always lands in the repository's "en-US" directory.
const (
	SourceIDE        = "en"
	SourceRepository = "en-US"
)

// Mapper holds the two directional views of one canonical table.
type Mapper struct {
	pairs  []Pair
	toRepo map[string]string
	toIDE  map[string]string
}

// New builds a Mapper from pairs. Duplicate codes on either side are kept
// as the first occurrence; Validate reports them.
func New(pairs []Pair) *Mapper {
	m := &Mapper{
		pairs:  append([]Pair(nil), pairs...),
		toRepo: make(map[string]string, len(pairs)),
		toIDE:  make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if _, ok := m.toRepo[p.IDE]; !ok {
			m.toRepo[p.IDE] = p.Repository
		}
		if _, ok := m.toIDE[p.Repository]; !ok {
			m.toIDE[p.Repository] = p.IDE
		}
	}
	return m
}

var defaultMapper = New(DefaultPairs)

// Default returns the Mapper for DefaultPairs.
func Default() *Mapper { return defaultMapper }

// ToRepository returns the repository spelling of an IDE code (export direction).
func (m *Mapper) ToRepository(ide string) string {
	if ide == SourceIDE {
		return SourceRepository
	}
	if r, ok := m.toRepo[ide]; ok {
		return r
	}
	return ide
}

// ToIDE returns the IDE spelling of a repository code (import direction).
func (m *Mapper) ToIDE(repo string) string {
	if i, ok := m.toIDE[repo]; ok {
		return i
	}
	return repo
}

// RepositoryMapping returns the explicit repository spelling for an IDE
// code, or ok=false when the table has no pair for it. The "en" special
// case is not part of the table and is not reported here.
func (m *Mapper) RepositoryMapping(ide string) (string, bool) {
	r, ok := m.toRepo[ide]
	return r, ok
}

// IDEMapping returns the explicit IDE spelling for a repository code, or
// ok=false when no remapping exists. Callers use it to leave target-language
// untouched for locales the table does not know about.
func (m *Mapper) IDEMapping(repo string) (string, bool) {
	i, ok := m.toIDE[repo]
	return i, ok
}

// Pairs returns a copy of the canonical table sorted by IDE code.
func (m *Mapper) Pairs() []Pair {
	out := append([]Pair(nil), m.pairs...)
	sort.Slice(out, func(i, j int) bool { return out[i].IDE < out[j].IDE })
	return out
}

// Validate checks that both views are exact inverses: no code appears twice
// on one side and no pair is an identity.
func (m *Mapper) Validate() error {
	var problems []string
	seenIDE := make(map[string]bool)
	seenRepo := make(map[string]bool)
	for _, p := range m.pairs {
		switch {
		case p.IDE == "" || p.Repository == "":
			problems = append(problems, fmt.Sprintf("empty code in pair %q <-> %q", p.IDE, p.Repository))
			continue
		case p.IDE == p.Repository:
			problems = append(problems, fmt.Sprintf("identity pair %q", p.IDE))
		}
		if seenIDE[p.IDE] {
			problems = append(problems, fmt.Sprintf("IDE code %q mapped twice", p.IDE))
		}
		if seenRepo[p.Repository] {
			problems = append(problems, fmt.Sprintf("repository code %q mapped twice", p.Repository))
		}
		seenIDE[p.IDE] = true
		seenRepo[p.Repository] = true
	}

	for _, p := range m.pairs {
		if got := m.ToIDE(m.ToRepository(p.IDE)); got != p.IDE && p.IDE != SourceIDE {
			problems = append(problems, fmt.Sprintf("IDE %q round-trips to %q", p.IDE, got))
		}
		if got := m.ToRepository(m.ToIDE(p.Repository)); got != p.Repository {
			problems = append(problems, fmt.Sprintf("repository %q round-trips to %q", p.Repository, got))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("inconsistent locale mapping: %s", strings.Join(problems, "; "))
	}
	return nil
}
