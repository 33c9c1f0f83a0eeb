package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l10nkit/xclocsync/pipeline"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "XCLOCSYNC_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

const artifact = `<?xml version="1.0" encoding="UTF-8"?>
<xliff version="1.2">
  <file original="Shared/Localizable.strings" source-language="en" target-language="de">
    <body>
      <trans-unit id="A"><source>A</source><target>Ä</target></trans-unit>
      <trans-unit id="B"><source>B</source></trans-unit>
    </body>
  </file>
</xliff>
`

// newRepo creates a translation repository with the given locales; each
// gets artifact as its XLIFF.
func newRepo(t *testing.T, locales ...string) string {
	t.Helper()
	repo := filepath.Join(t.TempDir(), "repo")
	for _, l := range append(locales, "templates") {
		dir := filepath.Join(repo, l)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "firefox-ios.xliff"), []byte(artifact), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return repo
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearEnv(t)
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--root", t.TempDir()))
	err := cmd.Execute()
	return out.String(), err
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		want    string
	}{
		{
			name:    "clamps below zero",
			percent: -10,
			width:   4,
			want:    colorRed + "░░░░" + colorReset + "   0%",
		},
		{
			name:    "mid range uses yellow",
			percent: 50,
			width:   4,
			want:    colorYellow + "██░░" + colorReset + "  50%",
		},
		{
			name:    "clamps above hundred",
			percent: 120,
			width:   4,
			want:    colorGreen + "████" + colorReset + " 100%",
		},
	}

	for _, tc := range tests {
		if got := progressBar(tc.percent, tc.width); got != tc.want {
			t.Fatalf("%s: progressBar() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Deutsch", 10); got != "Deutsch" {
		t.Fatalf("truncate(short) = %q", got)
	}
	if got := truncate("Norsk bokmål (Norwegian)", 8); got != "Norsk b…" {
		t.Fatalf("truncate(long) = %q", got)
	}
}

func TestTranslationProgress(t *testing.T) {
	repo := newRepo(t, "de")
	translated, total, err := translationProgress(filepath.Join(repo, "de", "firefox-ios.xliff"))
	if err != nil {
		t.Fatalf("translationProgress: %v", err)
	}
	if translated != 1 || total != 2 {
		t.Fatalf("translationProgress = %d/%d, want 1/2", translated, total)
	}
	if percent(translated, total) != 50 || percent(0, 0) != 0 {
		t.Fatal("percent mismatch")
	}
}

func TestFinish(t *testing.T) {
	report := &pipeline.Report{Results: []pipeline.Result{
		{Locale: "de"},
		{Locale: "fr", Err: &pipeline.LocaleError{Locale: "fr", Stage: pipeline.StageParse, Err: errors.New("bad")}},
		{Locale: "it", Err: &pipeline.LocaleError{Locale: "it", Stage: pipeline.StageCopy, Err: errors.New("full")}},
	}}
	err := finish(report, "%d locale exported", "%d locales exported")
	if err == nil || err.Error() != "2 locales failed" {
		t.Fatalf("finish() = %v, want 2 locales failed", err)
	}

	ok := &pipeline.Report{Results: []pipeline.Result{{Locale: "de"}, {Locale: "fr", Skipped: true}}}
	if err := finish(ok, "%d locale imported", "%d locales imported"); err != nil {
		t.Fatalf("finish(success) = %v", err)
	}
}

func TestLocalesCommand(t *testing.T) {
	repo := newRepo(t, "de", "sv-SE", "tl")

	out, err := execute(t, "locales", "--repo", repo)
	if err != nil {
		t.Fatalf("locales: %v", err)
	}
	if out != "de\nsv-SE\ntl\n" {
		t.Fatalf("locales output = %q", out)
	}

	out, err = execute(t, "locales", "--repo", repo, "--ide")
	if err != nil {
		t.Fatalf("locales --ide: %v", err)
	}
	if out != "de\nsv\nfil\n" {
		t.Fatalf("locales --ide output = %q", out)
	}
}

func TestStatusCommand(t *testing.T) {
	repo := newRepo(t, "de", "sv-SE")
	if err := os.Remove(filepath.Join(repo, "sv-SE", "firefox-ios.xliff")); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "status", "--repo", repo)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"de", " 50%", "sv*", "missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsRequireSettings(t *testing.T) {
	repo := newRepo(t, "de")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "export without project", args: []string{"export", "--repo", repo}, want: "no Xcode project"},
		{name: "import without project", args: []string{"import", "--repo", repo}, want: "no Xcode project"},
		{name: "templates without repo", args: []string{"templates", "--project", "Client.xcodeproj"}, want: "no translation repository"},
		{name: "status without repo", args: []string{"status"}, want: "no translation repository"},
		{name: "unknown locale only", args: []string{"status", "--repo", repo, "--locale", "xx"}, want: "no locales to process"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "xclocsync version dev") {
		t.Fatalf("version output = %q", out)
	}
}
