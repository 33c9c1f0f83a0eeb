// Package comments loads translator-comment overrides and injects them
// into exported trans-units.
//
// The overrides file is plain text with one KEY=text pair per line:
//
//	ShortcutItemTitleNewTab=Title of the home screen quick action that opens a new tab
//
// A line is split on '=' and the first field is the key, the last field is
// the text. Lines without '=' are skipped. A missing file yields no
// overrides.
package comments

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/l10nkit/xclocsync/atomicfile"
	"github.com/l10nkit/xclocsync/xliff"
)

// DefaultFileName is the overrides file looked up next to the Xcode project.
const DefaultFileName = "l10n_comments.txt"

// Overrides maps a trans-unit id to replacement note text. It is read-only
// after Load and safe to share between goroutines.
type Overrides map[string]string

// PathFor returns the default overrides location for an Xcode project path.
func PathFor(projectPath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(projectPath)), DefaultFileName)
}

// Load reads the overrides file at path. A missing file is not an error.
func Load(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Overrides{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, path, err)
	}
	return Parse(data), nil
}

// Parse parses overrides content. Malformed lines are skipped.
func Parse(data []byte) Overrides {
	o := Overrides{}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "=")
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		if key == "" {
			continue
		}
		o[key] = fields[len(fields)-1]
	}
	return o
}

// Lookup returns the override for id.
func (o Overrides) Lookup(id string) (string, bool) {
	v, ok := o[id]
	return v, ok
}

// Apply replaces the note of every unit that has an override and returns
// how many notes were set. Targets are never touched.
func (o Overrides) Apply(doc *xliff.Document) int {
	if len(o) == 0 {
		return 0
	}
	n := 0
	for _, f := range doc.Files {
		for _, u := range f.Units {
			if text, ok := o.Lookup(u.ID()); ok {
				u.SetNote(text)
				n++
			}
		}
	}
	return n
}
