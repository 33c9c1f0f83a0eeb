// Package config loads xclocsync settings.
//
// Values are layered: built-in defaults, then .xclocsync.yaml in the
// project root, then XCLOCSYNC_* environment variables, then command-line
// flags (applied by the caller before Finalize).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/l10nkit/xclocsync/comments"
	"github.com/l10nkit/xclocsync/localemap"
	"github.com/l10nkit/xclocsync/unitfilter"
)

// FileName is the default config file name.
const FileName = ".xclocsync.yaml"

// Defaults for fields left empty after all layers are applied.
const (
	DefaultXLIFFName         = "firefox-ios.xliff"
	DefaultExportDirName     = "ios-localization"
	DefaultImportDirName     = "ios-localization-import"
	DefaultImportConcurrency = 1
	DefaultXcodebuild        = "xcodebuild"
)

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Config is the merged configuration.
type Config struct {
	// Project is the .xcodeproj path.
	Project string `yaml:"project,omitempty" env:"XCLOCSYNC_PROJECT"`
	// Repo is the translation repository checkout.
	Repo string `yaml:"repo,omitempty" env:"XCLOCSYNC_REPO"`
	// ExportDir receives xcodebuild's export bundles.
	ExportDir string `yaml:"export_dir,omitempty" env:"XCLOCSYNC_EXPORT_DIR"`
	// ImportDir holds the bundles built for import.
	ImportDir string `yaml:"import_dir,omitempty" env:"XCLOCSYNC_IMPORT_DIR"`
	// XLIFFName is the file name inside each repository locale directory.
	XLIFFName string `yaml:"xliff_name,omitempty" env:"XCLOCSYNC_XLIFF_NAME"`
	// CommentsFile is the id=note override file.
	CommentsFile string `yaml:"comments_file,omitempty" env:"XCLOCSYNC_COMMENTS_FILE"`
	// Concurrency bounds export workers (0 = automatic).
	Concurrency int `yaml:"concurrency,omitempty" env:"XCLOCSYNC_CONCURRENCY"`
	// ImportConcurrency bounds import workers (default 1, sequential).
	ImportConcurrency int `yaml:"import_concurrency,omitempty" env:"XCLOCSYNC_IMPORT_CONCURRENCY"`
	// DevelopmentRegion is written to every bundle manifest.
	DevelopmentRegion string `yaml:"development_region,omitempty"`
	// ProjectName is written to every bundle manifest.
	ProjectName string `yaml:"project_name,omitempty"`
	// ExtensionMarker and PlistName identify the extension's InfoPlist.strings.
	ExtensionMarker string `yaml:"extension_marker,omitempty"`
	PlistName       string `yaml:"plist_name,omitempty"`
	// ExtraExcluded ids are hidden from translators in both directions.
	ExtraExcluded []string `yaml:"extra_excluded,omitempty"`
	// Locales pins the repository locale list and disables discovery.
	Locales []string `yaml:"locales,omitempty" env:"XCLOCSYNC_LOCALES" envSeparator:","`
	// Xcodebuild is the executable to run.
	Xcodebuild string `yaml:"xcodebuild,omitempty" env:"XCLOCSYNC_XCODEBUILD"`

	path string
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the config file and environment. If path is empty,
// <rootDir>/.xclocsync.yaml is used and may be absent; an explicit path
// must exist. Defaults are not applied; call Finalize after flags.
func Load(rootDir, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(rootDir, FileName)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.path = path
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParseEnv applies XCLOCSYNC_* environment variables on top of cfg.
// Unset variables leave fields untouched.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Path returns the config file that was read, or "" when none was.
func (c *Config) Path() string {
	return c.path
}

// ---------------------------------------------------------------------------
// Defaults and validation
// ---------------------------------------------------------------------------

// Finalize resolves relative paths against rootDir, fills defaults and
// validates the result.
func (c *Config) Finalize(rootDir string) error {
	c.Project = resolve(rootDir, c.Project)
	c.Repo = resolve(rootDir, c.Repo)
	c.CommentsFile = resolve(rootDir, c.CommentsFile)
	c.ExportDir = resolve(rootDir, c.ExportDir)
	c.ImportDir = resolve(rootDir, c.ImportDir)

	if c.ExportDir == "" {
		c.ExportDir = filepath.Join(os.TempDir(), DefaultExportDirName)
	}
	if c.ImportDir == "" {
		c.ImportDir = filepath.Join(os.TempDir(), DefaultImportDirName)
	}
	if c.XLIFFName == "" {
		c.XLIFFName = DefaultXLIFFName
	}
	if c.CommentsFile == "" && c.Project != "" {
		c.CommentsFile = comments.PathFor(c.Project)
	}
	if c.ImportConcurrency == 0 {
		c.ImportConcurrency = DefaultImportConcurrency
	}
	if c.DevelopmentRegion == "" {
		c.DevelopmentRegion = localemap.SourceRepository
	}
	if c.ProjectName == "" && c.Project != "" {
		c.ProjectName = filepath.Base(c.Project)
	}
	if c.ExtensionMarker == "" {
		c.ExtensionMarker = unitfilter.DefaultExtensionMarker
	}
	if c.PlistName == "" {
		c.PlistName = unitfilter.DefaultPlistName
	}
	if c.Xcodebuild == "" {
		c.Xcodebuild = DefaultXcodebuild
	}

	return c.validate()
}

func (c *Config) validate() error {
	src := c.path
	if src == "" {
		src = "configuration"
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%s: concurrency must not be negative (got %d)", src, c.Concurrency)
	}
	if c.ImportConcurrency < 0 {
		return fmt.Errorf("%s: import_concurrency must not be negative (got %d)", src, c.ImportConcurrency)
	}
	if strings.ContainsAny(c.XLIFFName, `/\`) {
		return fmt.Errorf("%s: xliff_name must be a file name, not a path (got %q)", src, c.XLIFFName)
	}
	for i, id := range c.ExtraExcluded {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%s: extra_excluded entry #%d is empty", src, i+1)
		}
	}
	return nil
}

// RequireProject reports a missing project path.
func (c *Config) RequireProject() error {
	if c.Project == "" {
		return fmt.Errorf("no Xcode project given (set project in %s, XCLOCSYNC_PROJECT or --project)", FileName)
	}
	return nil
}

// RequireRepo reports a missing repository path.
func (c *Config) RequireRepo() error {
	if c.Repo == "" {
		return fmt.Errorf("no translation repository given (set repo in %s, XCLOCSYNC_REPO or --repo)", FileName)
	}
	return nil
}

// ExportPolicy returns the export filter configured by c.
func (c *Config) ExportPolicy() *unitfilter.Policy {
	p := unitfilter.ExportPolicy(c.ExtraExcluded...)
	p.ExtensionMarker, p.PlistName = c.ExtensionMarker, c.PlistName
	return p
}

// ImportPolicy returns the import filter configured by c.
func (c *Config) ImportPolicy() *unitfilter.Policy {
	p := unitfilter.ImportPolicy(c.ExtraExcluded...)
	p.ExtensionMarker, p.PlistName = c.ExtensionMarker, c.PlistName
	return p
}

// RepoArtifact returns the XLIFF path for a repository locale.
func (c *Config) RepoArtifact(locale string) string {
	return filepath.Join(c.Repo, locale, c.XLIFFName)
}

// TemplatePath returns the template XLIFF path inside the repository.
func (c *Config) TemplatePath() string {
	return filepath.Join(c.Repo, TemplatesDir, c.XLIFFName)
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
