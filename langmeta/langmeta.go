// Package langmeta provides locale display metadata (native and English
// names, emoji flags) for status output.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Meta describes locale display metadata.
type Meta struct {
	Code    string
	Name    string
	English string
	Flag    string
}

var englishNamer = display.English.Tags()

// canonicalize returns the BCP 47 spelling of lang ("pt_br" -> "pt-BR").
// Codes that do not parse are returned trimmed.
func canonicalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// Resolve returns display metadata for a locale code. Unknown codes get
// the code itself as name and no flag.
func Resolve(lang string) Meta {
	code := canonicalize(lang)
	m := Meta{Code: code, Name: code, English: code}

	tag, err := language.Parse(code)
	if err != nil {
		return m
	}
	if name := display.Self.Name(tag); name != "" {
		m.Name = name
	}
	if name := englishNamer.Name(tag); name != "" {
		m.English = name
	}
	m.Flag = flag(tag)
	return m
}

// flag builds the regional-indicator pair for the tag's (possibly
// inferred) country.
func flag(tag language.Tag) string {
	region, conf := tag.Region()
	if conf == language.No || !region.IsCountry() {
		return ""
	}
	code := region.String()
	if len(code) != 2 {
		return ""
	}
	var b strings.Builder
	for _, c := range code {
		b.WriteRune(0x1F1E6 + c - 'A')
	}
	return b.String()
}

// Label formats Meta for listings: "🇩🇪 Deutsch (German)".
func (m Meta) Label() string {
	var b strings.Builder
	if m.Flag != "" {
		b.WriteString(m.Flag)
		b.WriteByte(' ')
	}
	b.WriteString(m.Name)
	if m.English != "" && m.English != m.Name {
		b.WriteString(" (")
		b.WriteString(m.English)
		b.WriteByte(')')
	}
	return b.String()
}
