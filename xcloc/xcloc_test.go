package xcloc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/l10nkit/xclocsync/atomicfile"
)

func newBuilder(t *testing.T) (*Builder, string) {
	t.Helper()
	root := t.TempDir()
	return &Builder{
		Dir:               filepath.Join(root, "import"),
		DevelopmentRegion: "en-US",
		Project:           "Client.xcodeproj",
	}, root
}

func writeRepoFile(t *testing.T, root, locale, content string) string {
	t.Helper()
	p := filepath.Join(root, "repo", locale, "firefox-ios.xliff")
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPaths(t *testing.T) {
	if got, want := XLIFFPath("/tmp/x", "de"), filepath.Join("/tmp/x", "de.xcloc", "Localized Contents", "de.xliff"); got != want {
		t.Fatalf("XLIFFPath() = %q, want %q", got, want)
	}
	if got, want := BundlePath("/tmp/x", "sv"), filepath.Join("/tmp/x", "sv.xcloc"); got != want {
		t.Fatalf("BundlePath() = %q, want %q", got, want)
	}
}

func TestBuild_NewBundleUsesIDECode(t *testing.T) {
	b, root := newBuilder(t)
	src := writeRepoFile(t, root, "sv-SE", "<xliff/>")

	bundle, err := b.Build("sv-SE", src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bundle.Locale != "sv" || bundle.RepoLocale != "sv-SE" {
		t.Fatalf("bundle locales = %q/%q, want sv/sv-SE", bundle.Locale, bundle.RepoLocale)
	}
	if bundle.XLIFFPath != XLIFFPath(b.Dir, "sv") {
		t.Fatalf("XLIFFPath = %q", bundle.XLIFFPath)
	}

	got, err := os.ReadFile(bundle.XLIFFPath)
	if err != nil || string(got) != "<xliff/>" {
		t.Fatalf("placed xliff = %q, %v", got, err)
	}
	placeholder := filepath.Join(bundle.Dir, SourceContents, PlaceholderName)
	if info, err := os.Stat(placeholder); err != nil || info.Size() != 0 {
		t.Fatalf("placeholder missing or not empty: %v", err)
	}

	m, err := ReadManifest(bundle.Dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	want := &Manifest{
		DevelopmentRegion: "en-US",
		Project:           "Client.xcodeproj",
		TargetLocale:      "sv",
		ToolInfo:          DefaultToolInfo,
		Version:           ManifestVersion,
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ReusesExistingBundle(t *testing.T) {
	b, root := newBuilder(t)
	src := writeRepoFile(t, root, "de", "first")

	bundle, err := b.Build("de", src)
	if err != nil {
		t.Fatal(err)
	}
	placeholder := filepath.Join(bundle.Dir, SourceContents, PlaceholderName)
	if err := os.WriteFile(placeholder, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(src, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build("de", src); err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if got, _ := os.ReadFile(bundle.XLIFFPath); string(got) != "second" {
		t.Fatalf("xliff = %q, want second", got)
	}
	if got, _ := os.ReadFile(placeholder); string(got) != "keep" {
		t.Fatalf("placeholder overwritten: %q", got)
	}
}

func TestBuild_ExistingBundleWithoutLocalizedContents(t *testing.T) {
	b, root := newBuilder(t)
	src := writeRepoFile(t, root, "de", "payload")

	dir := BundlePath(b.Dir, "de")
	placeholder := filepath.Join(dir, SourceContents, PlaceholderName)
	if err := os.MkdirAll(filepath.Dir(placeholder), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(placeholder, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	bundle, err := b.Build("de", src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, _ := os.ReadFile(placeholder); string(got) != "keep" {
		t.Fatalf("placeholder overwritten: %q", got)
	}
	if got, _ := os.ReadFile(bundle.XLIFFPath); string(got) != "payload" {
		t.Fatalf("xliff = %q, want payload", got)
	}
}

func TestBuild_SourceMissing(t *testing.T) {
	b, root := newBuilder(t)
	_, err := b.Build("de", filepath.Join(root, "repo", "de", "firefox-ios.xliff"))
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("Build() error = %v, want ErrSourceMissing", err)
	}
}

func TestBuild_DirectoryUncreatable(t *testing.T) {
	b, root := newBuilder(t)
	src := writeRepoFile(t, root, "de", "x")
	if err := os.WriteFile(b.Dir, nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := b.Build("de", src)
	if !errors.Is(err, atomicfile.ErrMkdir) {
		t.Fatalf("Build() error = %v, want ErrMkdir", err)
	}
}

func TestBuild_TempCollision(t *testing.T) {
	b, root := newBuilder(t)
	src := writeRepoFile(t, root, "de", "x")
	if _, err := b.Build("de", src); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(atomicfile.StagingPath(XLIFFPath(b.Dir, "de")), nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, err := b.Build("de", src)
	if !errors.Is(err, atomicfile.ErrTempCollision) {
		t.Fatalf("Build() error = %v, want ErrTempCollision", err)
	}
}
