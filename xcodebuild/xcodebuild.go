// Package xcodebuild wraps the xcodebuild localization commands:
//
//	xcodebuild -exportLocalizations -project P -localizationPath D -exportLanguage L …
//	xcodebuild -importLocalizations -project P -localizationPath B
//
// Both are run synchronously. Their output is opaque here: stderr is
// captured and attached to the error on failure.
package xcodebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultExecutable is looked up in PATH when Runner.Executable is empty.
const DefaultExecutable = "xcodebuild"

var (
	// ErrStart means the executable could not be found or started.
	ErrStart = errors.New("xcodebuild could not be started")
	// ErrFailed means xcodebuild ran and exited unsuccessfully.
	ErrFailed = errors.New("xcodebuild failed")
)

// Runner invokes xcodebuild.
type Runner struct {
	// Executable overrides the xcodebuild binary.
	Executable string
	// Stdout receives xcodebuild's standard output. Nil discards it.
	Stdout io.Writer
}

// ExportArgs builds the -exportLocalizations argument list.
func ExportArgs(project, baseDir string, locales []string) []string {
	args := []string{"-exportLocalizations", "-project", project, "-localizationPath", baseDir}
	for _, l := range locales {
		args = append(args, "-exportLanguage", l)
	}
	return args
}

// ImportArgs builds the -importLocalizations argument list.
func ImportArgs(project, bundleDir string) []string {
	return []string{"-importLocalizations", "-project", project, "-localizationPath", bundleDir}
}

// Export extracts locales from project into baseDir, producing one
// <locale>.xcloc bundle per locale.
func (r *Runner) Export(ctx context.Context, project, baseDir string, locales []string) error {
	if len(locales) == 0 {
		return fmt.Errorf("no locales to export")
	}
	return r.run(ctx, ExportArgs(project, baseDir, locales))
}

// Import imports one .xcloc bundle into project.
func (r *Runner) Import(ctx context.Context, project, bundleDir string) error {
	return r.run(ctx, ImportArgs(project, bundleDir))
}

func (r *Runner) run(ctx context.Context, args []string) error {
	name := r.Executable
	if name == "" {
		name = DefaultExecutable
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s not found (install Xcode command line tools): %w", ErrStart, name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf
	cmd.Stdout = r.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStart, name, err)
	}
	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			return fmt.Errorf("%w: %s %s: %w", ErrFailed, name, args[0], err)
		}
		return fmt.Errorf("%w: %s %s: %w\n%s", ErrFailed, name, args[0], err, msg)
	}
	return nil
}
