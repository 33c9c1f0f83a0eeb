// Package i18n translates xclocsync's own messages. It never touches the
// XLIFF content being synchronized.
//
// Catalogs live in locales/<lang>/LC_MESSAGES/xclocsync.po and are
// compiled into the binary.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const domain = "xclocsync"

// EnvOverride selects the message language ahead of the POSIX variables.
const EnvOverride = "XCLOCSYNC_LANG"

var (
	po     *gotext.Locale
	active = "en"
)

// Init loads the catalog for lang, or for the environment's language when
// lang is empty. Unknown languages fall through to the untranslated
// English msgids.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	active = lang

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language selected by the last Init.
func Language() string {
	return active
}

// T returns the translation of msgid, or msgid itself.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N picks the plural form of a message for n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage walks XCLOCSYNC_LANG, then LANGUAGE (a colon list),
// LC_ALL, LC_MESSAGES and LANG, and returns the first usable entry.
func detectLanguage() string {
	var candidates []string
	candidates = append(candidates, os.Getenv(EnvOverride))
	candidates = append(candidates, strings.Split(os.Getenv("LANGUAGE"), ":")...)
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		candidates = append(candidates, os.Getenv(env))
	}

	for _, c := range candidates {
		if lang, ok := normalize(c); ok {
			return lang
		}
	}
	return "en"
}

// normalize turns a POSIX locale ("pt_BR.UTF-8@euro") into the catalog
// directory form ("pt_BR"). C and POSIX mean no translation.
func normalize(val string) (string, bool) {
	if i := strings.IndexAny(val, ".@"); i >= 0 {
		val = val[:i]
	}
	if val == "" || val == "C" || val == "POSIX" {
		return "", false
	}

	tag, err := language.Parse(val)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.Exact {
		return base.String() + "_" + region.String(), true
	}
	return base.String(), true
}
