// Package naming maps input container files to decoded output paths.
package naming

import (
	"path/filepath"
	"strings"
)

// DefaultExtension is used when the decoder cannot report the decoded format.
const DefaultExtension = "mp3"

// ResolveOutputPath builds the output file path for a decoded input.
//
//	<outputDir>/<input basename without extension>.<format>
//
// Two inputs sharing a base name resolve to the same path; the later write wins.
func ResolveOutputPath(inputPath, format, outputDir string) string {
	return filepath.Join(outputDir, Stem(inputPath)+"."+normalizeFormat(format))
}

// Stem returns the basename of path without its last extension. A dotfile
// such as ".ncm" has no extension and is returned whole.
func Stem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

func normalizeFormat(format string) string {
	ext := strings.TrimPrefix(strings.TrimSpace(format), ".")
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// JobContext carries the per-job values the resolver needs, so each job's
// resolver is bound explicitly rather than through a loop variable.
type JobContext struct {
	InputPath string
	BaseName  string
}

// NewJobContext builds the context for one input path.
func NewJobContext(inputPath string) JobContext {
	return JobContext{
		InputPath: inputPath,
		BaseName:  Stem(inputPath),
	}
}

// OutputPath resolves this job's target under outputDir for the given format.
func (c JobContext) OutputPath(format, outputDir string) string {
	return ResolveOutputPath(c.InputPath, format, outputDir)
}
