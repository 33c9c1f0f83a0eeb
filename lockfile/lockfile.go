// Package lockfile implements .xclocsync.lock, which records the MD5
// checksum of each repository XLIFF that was last imported into the
// Xcode project. Import skips locales whose artifact is unchanged.
//
// The lock file is stored alongside .xclocsync.yaml.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/l10nkit/xclocsync/atomicfile"
)

// LockFileName is the default lock file name.
const LockFileName = ".xclocsync.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the .xclocsync.lock file structure.
type LockFile struct {
	Version int               `yaml:"version"`
	Imports map[string]string `yaml:"imports"` // repository locale -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version: Version,
		Imports: make(map[string]string),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Imports == nil {
		lf.Imports = make(map[string]string)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported lock file version %d", path, lf.Version)
	}

	return lf, nil
}

// Save writes the lock file to disk atomically.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	return atomicfile.WriteFile(lf.path, data, 0644)
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a byte slice.
func Hash(b []byte) string {
	return fmt.Sprintf("%x", md5.Sum(b))
}

// HashFile computes the MD5 hex digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// IsChanged reports whether the artifact for locale differs from the one
// last recorded. Unknown locales are always changed.
func (lf *LockFile) IsChanged(locale, sum string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	old, ok := lf.Imports[locale]
	return !ok || old != sum
}

// Record stores the checksum of a successfully imported artifact.
func (lf *LockFile) Record(locale, sum string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Imports[locale] = sum
}

// Lookup returns the recorded checksum for locale.
func (lf *LockFile) Lookup(locale string) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	sum, ok := lf.Imports[locale]
	return sum, ok
}

// Forget removes the entry for locale.
func (lf *LockFile) Forget(locale string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Imports, locale)
}

// Clean removes entries for locales no longer present in the repository.
func (lf *LockFile) Clean(current []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(current))
	for _, l := range current {
		valid[l] = true
	}
	for l := range lf.Imports {
		if !valid[l] {
			delete(lf.Imports, l)
		}
	}
}

// Locales returns the sorted list of recorded locales.
func (lf *LockFile) Locales() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	out := make([]string, 0, len(lf.Imports))
	for l := range lf.Imports {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
