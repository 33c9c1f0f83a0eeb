package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/l10nkit/xclocsync/xcloc"
	"github.com/l10nkit/xclocsync/xcodebuild"
	"github.com/l10nkit/xclocsync/xliff"
)

const fileName = "firefox-ios.xliff"

// fakeTool stands in for xcodebuild. Export writes one bundle per locale
// from docs (locales without an entry get nothing) and then returns
// exportErr; Import records the bundle and returns importErr for it.
type fakeTool struct {
	docs      map[string]string
	exportErr error
	importErr map[string]error

	mu       sync.Mutex
	exported [][]string
	imported []string
}

func (f *fakeTool) Export(_ context.Context, _, baseDir string, locales []string) error {
	f.mu.Lock()
	f.exported = append(f.exported, append([]string(nil), locales...))
	f.mu.Unlock()

	for _, l := range locales {
		content, ok := f.docs[l]
		if !ok {
			continue
		}
		p := xcloc.XLIFFPath(baseDir, l)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			return err
		}
	}
	return f.exportErr
}

func (f *fakeTool) Import(_ context.Context, _, bundleDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(bundleDir)
	f.imported = append(f.imported, name)
	return f.importErr[name]
}

// exportDoc is an Xcode export for one locale.
func exportDoc(lang string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<xliff xmlns="urn:oasis:names:tc:xliff:document:1.2" version="1.2">
  <file original="Client/en-US.lproj/InfoPlist.strings" source-language="en" target-language="` + lang + `" datatype="plaintext">
    <body>
      <trans-unit id="CFBundleName" xml:space="preserve">
        <source>Firefox</source>
      </trans-unit>
      <trans-unit id="CFBundleDisplayName" xml:space="preserve">
        <source>Firefox</source>
      </trans-unit>
      <trans-unit id="NSCameraUsageDescription" xml:space="preserve">
        <source>This lets you take photos.</source>
        <note>Privacy - Camera Usage Description</note>
      </trans-unit>
    </body>
  </file>
  <file original="WidgetKit/en-US.lproj/InfoPlist.strings" source-language="en" target-language="` + lang + `" datatype="plaintext">
    <body>
      <trans-unit id="CFBundleDisplayName" xml:space="preserve">
        <source>Firefox Widgets</source>
      </trans-unit>
    </body>
  </file>
  <file original="Extensions/en-US.lproj/Action.strings" source-language="en" target-language="` + lang + `" datatype="plaintext">
    <body>
      <trans-unit id="1Password Fill Browser Action" xml:space="preserve">
        <source>Fill Password</source>
      </trans-unit>
    </body>
  </file>
  <file original="Shared/en-US.lproj/Localizable.strings" source-language="en" target-language="` + lang + `" datatype="plaintext">
    <body>
      <trans-unit id="Foo" xml:space="preserve">
        <source>Foo</source>
        <target>Foo translated</target>
        <note>Original note</note>
      </trans-unit>
      <trans-unit id="Bar" xml:space="preserve">
        <source>Bar</source>
        <note>Keep me</note>
      </trans-unit>
    </body>
  </file>
</xliff>
`
}

type unitRow struct {
	File   string
	ID     string
	Target string
	Note   string
}

func rows(t *testing.T, doc *xliff.Document) []unitRow {
	t.Helper()
	var out []unitRow
	for _, f := range doc.Files {
		for _, u := range f.Units {
			target, _ := u.Target()
			note, _ := u.Note()
			out = append(out, unitRow{File: f.Original(), ID: u.ID(), Target: target, Note: note})
		}
	}
	return out
}

func targetLanguages(doc *xliff.Document) []string {
	var out []string
	for _, f := range doc.Files {
		tl, _ := f.TargetLanguage()
		out = append(out, tl)
	}
	return out
}

func newExporter(t *testing.T, tool *fakeTool) *Exporter {
	t.Helper()
	root := t.TempDir()
	return &Exporter{
		Tool:         tool,
		Project:      filepath.Join(root, "Client.xcodeproj"),
		ExportDir:    filepath.Join(root, "export"),
		RepoDir:      filepath.Join(root, "repo"),
		FileName:     fileName,
		CommentsPath: filepath.Join(root, "l10n_comments.txt"),
	}
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

func TestExporter_Run(t *testing.T) {
	tool := &fakeTool{docs: map[string]string{
		"de": exportDoc("de"),
		"es": exportDoc("es"),
		"sv": exportDoc("sv"),
	}}
	e := newExporter(t, tool)
	if err := os.WriteFile(e.CommentsPath, []byte("Foo=Custom note\n"), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := e.Run(context.Background(), []string{"de", "es-ES", "sv-SE"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report.Err() = %v", err)
	}

	if diff := cmp.Diff([][]string{{"de", "es", "sv"}}, tool.exported); diff != "" {
		t.Errorf("tool export locales (-want +got):\n%s", diff)
	}

	doc, err := xliff.ParseFile(filepath.Join(e.RepoDir, "sv-SE", fileName))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if diff := cmp.Diff([]string{"sv-SE", "sv-SE", "sv-SE"}, targetLanguages(doc)); diff != "" {
		t.Errorf("target-language (-want +got):\n%s", diff)
	}
	want := []unitRow{
		{File: "Client/en-US.lproj/InfoPlist.strings", ID: "NSCameraUsageDescription", Note: "Privacy - Camera Usage Description"},
		{File: "WidgetKit/en-US.lproj/InfoPlist.strings", ID: "CFBundleDisplayName"},
		{File: "Shared/en-US.lproj/Localizable.strings", ID: "Foo", Target: "Foo translated", Note: "Custom note"},
		{File: "Shared/en-US.lproj/Localizable.strings", ID: "Bar", Note: "Keep me"},
	}
	if diff := cmp.Diff(want, rows(t, doc)); diff != "" {
		t.Errorf("exported units (-want +got):\n%s", diff)
	}

	for _, res := range report.Results {
		if res.Stats.Dropped != 3 || res.Stats.Pruned != 1 {
			t.Errorf("%s stats = %+v, want 3 dropped, 1 pruned", res.Locale, res.Stats)
		}
	}
}

func TestExporter_EnglishMapsToEnUS(t *testing.T) {
	tool := &fakeTool{docs: map[string]string{"en-US": exportDoc("en")}}
	e := newExporter(t, tool)

	report, err := e.Run(context.Background(), []string{"en-US"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report.Err() = %v", err)
	}
	doc, err := xliff.ParseFile(filepath.Join(e.RepoDir, "en-US", fileName))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if tl := targetLanguages(doc)[0]; tl != "en-US" {
		t.Errorf("target-language = %q, want en-US", tl)
	}
}

func TestExporter_AggregateFailure(t *testing.T) {
	locales := []string{"de", "fr", "it", "ja", "ko"}
	docs := make(map[string]string)
	for _, l := range locales {
		docs[l] = exportDoc(l)
	}
	docs["it"] = "<xliff><file>"

	tool := &fakeTool{docs: docs}
	e := newExporter(t, tool)
	e.Concurrency = 2

	report, err := e.Run(context.Background(), locales)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	failed := report.Failed()
	if len(failed) != 1 {
		t.Fatalf("Failed() = %v, want exactly one failure", failed)
	}
	if failed[0].Locale != "it" || failed[0].Stage != StageParse {
		t.Errorf("failure = %s/%s, want it/parse", failed[0].Locale, failed[0].Stage)
	}
	if !errors.Is(failed[0], xliff.ErrMalformed) {
		t.Errorf("failure %v should wrap ErrMalformed", failed[0])
	}
	if report.Succeeded() != len(locales)-1 {
		t.Errorf("Succeeded() = %d, want %d", report.Succeeded(), len(locales)-1)
	}

	for _, l := range locales {
		_, err := os.Stat(filepath.Join(e.RepoDir, l, fileName))
		if l == "it" {
			if !os.IsNotExist(err) {
				t.Errorf("%s: failed locale should not be written (err=%v)", l, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: missing repository artifact: %v", l, err)
		}
	}

	if err := report.Err(); err == nil || !strings.Contains(err.Error(), "it: parse") {
		t.Errorf("report.Err() = %v, want it to name the failed locale", err)
	}
}

func TestExporter_CommentsAbsent(t *testing.T) {
	tool := &fakeTool{docs: map[string]string{"de": exportDoc("de")}}
	e := newExporter(t, tool)

	report, err := e.Run(context.Background(), []string{"de"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report.Err() = %v", err)
	}

	doc, err := xliff.ParseFile(filepath.Join(e.RepoDir, "de", fileName))
	if err != nil {
		t.Fatal(err)
	}
	notes := make(map[string]string)
	for _, r := range rows(t, doc) {
		notes[r.ID] = r.Note
	}
	if notes["Foo"] != "Original note" || notes["Bar"] != "Keep me" {
		t.Errorf("notes changed without overrides: %v", notes)
	}
}

func TestExporter_StartFailureIsFatal(t *testing.T) {
	startErr := errors.New("exec: not found")
	tool := &fakeTool{exportErr: fmt.Errorf("wrapped: %w", startErr)}
	e := newExporter(t, tool)

	report, err := e.Run(context.Background(), []string{"de"})
	if !errors.Is(err, startErr) {
		t.Fatalf("Run error = %v, want start failure", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
}

func TestExporter_ToolFailureContinues(t *testing.T) {
	tool := &fakeTool{
		docs:      map[string]string{"de": exportDoc("de")},
		exportErr: fmt.Errorf("%w: exit status 70", xcodebuild.ErrFailed),
	}
	var warnings []string
	e := newExporter(t, tool)
	e.OnError = func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) }

	report, err := e.Run(context.Background(), []string{"de", "fr"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Locale != "fr" {
		t.Fatalf("Failed() = %v, want only fr", failed)
	}
}

func TestExporter_SkipExtract(t *testing.T) {
	tool := &fakeTool{docs: map[string]string{"de": exportDoc("de")}}
	e := newExporter(t, tool)
	if err := tool.Export(context.Background(), e.Project, e.ExportDir, []string{"de"}); err != nil {
		t.Fatal(err)
	}
	tool.exported = nil
	e.SkipExtract = true

	report, err := e.Run(context.Background(), []string{"de"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report.Err() = %v", err)
	}
	if len(tool.exported) != 0 {
		t.Errorf("tool was invoked with SkipExtract: %v", tool.exported)
	}
}

// ---------------------------------------------------------------------------
// Report
// ---------------------------------------------------------------------------

func TestReport_ErrListsEveryFailure(t *testing.T) {
	report := &Report{Results: []Result{
		{Locale: "zh-CN", Err: &LocaleError{Locale: "zh-CN", Stage: StageCopy, Err: errors.New("disk full")}},
		{Locale: "de"},
		{Locale: "ar", Err: &LocaleError{Locale: "ar", Stage: StageParse, Path: "/x/ar.xliff", Err: errors.New("bad")}},
		{Locale: "fr", Skipped: true},
	}}

	got := report.Err().Error()
	want := "ar: parse /x/ar.xliff: bad\nzh-CN: copy: disk full"
	if got != want {
		t.Errorf("Err() = %q, want %q", got, want)
	}
	if report.Succeeded() != 2 || report.Skipped() != 1 {
		t.Errorf("Succeeded/Skipped = %d/%d, want 2/1", report.Succeeded(), report.Skipped())
	}

	if (&Report{Results: []Result{{Locale: "de"}}}).Err() != nil {
		t.Error("Err() should be nil when every locale succeeded")
	}
}

func TestDefaultConcurrency(t *testing.T) {
	if got := DefaultConcurrency(0); got != 1 {
		t.Errorf("DefaultConcurrency(0) = %d, want 1", got)
	}
	if got := DefaultConcurrency(1); got != 1 {
		t.Errorf("DefaultConcurrency(1) = %d, want 1", got)
	}
	if got := DefaultConcurrency(100000); got < 2 || got >= 100000 {
		t.Errorf("DefaultConcurrency(100000) = %d, want a CPU-bound cap", got)
	}
}

func TestRunLocales_CancelledContextStillRecordsEveryLocale(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := runLocales(ctx, []string{"de", "fr"}, 1, func(context.Context, string) Result {
		t.Error("fn called after cancellation")
		return Result{}
	})
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s: err = %v, want context.Canceled", r.Locale, r.Err)
		}
		if r.Err != nil && r.Err.Stage != StageCancelled {
			t.Errorf("%s: stage = %q, want %q", r.Locale, r.Err.Stage, StageCancelled)
		}
	}
}
