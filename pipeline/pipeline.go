// Package pipeline drives the per-locale export and import runs.
//
// Export fans out across locales on a bounded worker pool; import walks
// locales one at a time unless configured otherwise. Every locale is
// always attempted. Failures are recorded per locale and folded into a
// Report once all tasks have joined.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/l10nkit/xclocsync/unitfilter"
)

// Tool is the external localization tool. *xcodebuild.Runner implements it.
type Tool interface {
	Export(ctx context.Context, project, baseDir string, locales []string) error
	Import(ctx context.Context, project, bundleDir string) error
}

// Stage names the step a locale failed in.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageParse     Stage = "parse"
	StageTransform Stage = "transform"
	StageWrite     Stage = "write"
	StageCopy      Stage = "copy"
	StageBundle    Stage = "bundle"
	StageImport    Stage = "import"
	// StageCancelled marks locales never started because the run was
	// interrupted.
	StageCancelled Stage = "cancelled"
)

// LocaleError is the failure of one locale.
type LocaleError struct {
	Locale string
	Stage  Stage
	Path   string
	Err    error
}

func (e *LocaleError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", e.Locale, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Locale, e.Stage, e.Path, e.Err)
}

func (e *LocaleError) Unwrap() error { return e.Err }

// Result is the outcome of one locale.
type Result struct {
	// Locale is the repository-space code.
	Locale string
	// IDELocale is the IDE-space code.
	IDELocale string
	// Path is the artifact written for this locale.
	Path    string
	Stats   unitfilter.Stats
	Skipped bool
	Err     *LocaleError
}

// OK reports whether the locale succeeded (skipped counts as success).
func (r Result) OK() bool { return r.Err == nil }

// Report collects every locale's Result in input order.
type Report struct {
	Results []Result
}

// Failed returns the failures sorted by locale.
func (r *Report) Failed() []*LocaleError {
	var out []*LocaleError
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Locale < out[j].Locale })
	return out
}

// Succeeded counts locales that were processed or skipped without error.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Skipped counts locales left alone because nothing changed.
func (r *Report) Skipped() int {
	n := 0
	for _, res := range r.Results {
		if res.Skipped {
			n++
		}
	}
	return n
}

// Err joins every failure, or returns nil when all locales succeeded.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Logging hooks
// ---------------------------------------------------------------------------

// Hooks carries the optional log callbacks shared by every runner.
type Hooks struct {
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
	// OnError emits non-fatal problems.
	OnError func(format string, args ...any)
}

func (h Hooks) log(format string, args ...any) {
	if h.OnLog != nil {
		h.OnLog(format, args...)
	}
}

func (h Hooks) warn(format string, args ...any) {
	if h.OnError != nil {
		h.OnError(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Worker pool
// ---------------------------------------------------------------------------

// DefaultConcurrency returns the worker count for n locales: one per
// locale, capped at twice the CPU count.
func DefaultConcurrency(n int) int {
	limit := runtime.NumCPU() * 2
	if n < limit {
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// runLocales calls fn for every locale with at most limit in flight and
// blocks until all have returned. Each task writes only its own slot.
func runLocales(ctx context.Context, locales []string, limit int, fn func(context.Context, string) Result) []Result {
	results := make([]Result, len(locales))
	if limit <= 0 {
		limit = DefaultConcurrency(len(locales))
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, locale := range locales {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Locale: locale, Err: &LocaleError{Locale: locale, Stage: StageCancelled, Err: err}}
				return nil
			}
			results[i] = fn(ctx, locale)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func fail(res Result, stage Stage, path string, err error) Result {
	res.Err = &LocaleError{Locale: res.Locale, Stage: stage, Path: path, Err: err}
	return res
}
