// Package xcloc lays out the .xcloc bundles xcodebuild exchanges
// localizations through:
//
//	<locale>.xcloc/
//	    contents.json
//	    Localized Contents/<locale>.xliff
//	    Source Contents/temp.txt
package xcloc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/l10nkit/xclocsync/atomicfile"
	"github.com/l10nkit/xclocsync/localemap"
)

// Layout names inside a bundle.
const (
	Extension         = ".xcloc"
	LocalizedContents = "Localized Contents"
	SourceContents    = "Source Contents"
	ManifestName      = "contents.json"
	PlaceholderName   = "temp.txt"
)

// ErrSourceMissing means the repository artifact for a locale does not exist.
var ErrSourceMissing = errors.New("repository xliff not found")

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// BundlePath returns <base>/<locale>.xcloc.
func BundlePath(base, ideLocale string) string {
	return filepath.Join(base, ideLocale+Extension)
}

// XLIFFPath returns the localized-contents XLIFF inside a bundle under base.
// xcodebuild -exportLocalizations writes its output at this same path.
func XLIFFPath(base, ideLocale string) string {
	return filepath.Join(BundlePath(base, ideLocale), LocalizedContents, ideLocale+".xliff")
}

// ---------------------------------------------------------------------------
// Manifest
// ---------------------------------------------------------------------------

// ToolInfo identifies the Xcode build the bundle claims to come from.
type ToolInfo struct {
	ToolBuildNumber string `json:"toolBuildNumber"`
	ToolID          string `json:"toolID"`
	ToolName        string `json:"toolName"`
	ToolVersion     string `json:"toolVersion"`
}

// Manifest is contents.json.
type Manifest struct {
	DevelopmentRegion string   `json:"developmentRegion"`
	Project           string   `json:"project"`
	TargetLocale      string   `json:"targetLocale"`
	ToolInfo          ToolInfo `json:"toolInfo"`
	Version           string   `json:"version"`
}

// DefaultToolInfo is the tool block written into every manifest.
var DefaultToolInfo = ToolInfo{
	ToolBuildNumber: "13A233",
	ToolID:          "com.apple.dt.xcode",
	ToolName:        "Xcode",
	ToolVersion:     "13.0",
}

// ManifestVersion is the contents.json format version.
const ManifestVersion = "1.0"

// ---------------------------------------------------------------------------
// Builder
// ---------------------------------------------------------------------------

// Builder materialises import bundles from repository artifacts.
type Builder struct {
	// Dir is the directory bundles are created in.
	Dir string
	// DevelopmentRegion is written to every manifest (e.g. "en-US").
	DevelopmentRegion string
	// Project is the Xcode project file name (e.g. "Client.xcodeproj").
	Project string
	// Mapper converts repository codes to the IDE codes bundles are named by.
	Mapper *localemap.Mapper
}

// Bundle is a materialised import bundle.
type Bundle struct {
	// RepoLocale and Locale are the repository and IDE codes.
	RepoLocale string
	Locale     string
	// Dir is the .xcloc directory passed to xcodebuild.
	Dir string
	// XLIFFPath is the placed localized-contents file.
	XLIFFPath string
}

// Build places the repository artifact at src into the bundle for
// repoLocale and writes its manifest. An existing bundle is reused: its
// source-contents placeholder is left alone and its XLIFF replaced
// atomically.
func (b *Builder) Build(repoLocale, src string) (*Bundle, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
		return nil, fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, src, err)
	}

	mapper := b.Mapper
	if mapper == nil {
		mapper = localemap.Default()
	}
	locale := mapper.ToIDE(repoLocale)
	bundle := &Bundle{
		RepoLocale: repoLocale,
		Locale:     locale,
		Dir:        BundlePath(b.Dir, locale),
		XLIFFPath:  XLIFFPath(b.Dir, locale),
	}

	if _, err := os.Stat(bundle.Dir); errors.Is(err, fs.ErrNotExist) {
		if err := b.createSkeleton(bundle.Dir); err != nil {
			return nil, err
		}
	}

	if err := atomicfile.Replace(bundle.XLIFFPath, src); err != nil {
		return nil, err
	}
	if err := b.writeManifest(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (b *Builder) createSkeleton(dir string) error {
	for _, d := range []string{filepath.Join(dir, LocalizedContents), filepath.Join(dir, SourceContents)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("%w: %s: %w", atomicfile.ErrMkdir, d, err)
		}
	}
	placeholder := filepath.Join(dir, SourceContents, PlaceholderName)
	if err := os.WriteFile(placeholder, nil, 0644); err != nil {
		return fmt.Errorf("%w: %s: %w", atomicfile.ErrWrite, placeholder, err)
	}
	return nil
}

func (b *Builder) writeManifest(bundle *Bundle) error {
	m := Manifest{
		DevelopmentRegion: b.DevelopmentRegion,
		Project:           b.Project,
		TargetLocale:      bundle.Locale,
		ToolInfo:          DefaultToolInfo,
		Version:           ManifestVersion,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return atomicfile.WriteFile(filepath.Join(bundle.Dir, ManifestName), append(data, '\n'), 0644)
}

// ReadManifest reads contents.json from a bundle directory.
func ReadManifest(bundleDir string) (*Manifest, error) {
	path := filepath.Join(bundleDir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", atomicfile.ErrRead, path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}
