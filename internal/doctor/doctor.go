// Package doctor provides environment preflight checks for jbonsai.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// VoiceValidator parses and structurally validates a .htsvoice bundle at
// path, returning a short description (e.g. sampling rate, stream count) on
// success.
type VoiceValidator func(path string) (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// GoVersion returns the running Go runtime version.
	GoVersion VersionFunc
	// VoiceFiles is the list of voice bundle paths to verify on disk.
	VoiceFiles []string
	// ValidateVoice, when set, parses each VoiceFiles entry instead of just
	// stat-ing it.
	ValidateVoice VoiceValidator
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- Go runtime ---------------------------------------------------
	if cfg.GoVersion != nil {
		ver, err := cfg.GoVersion()
		if err != nil {
			res.fail(fmt.Sprintf("go runtime: %v", err))
			fmt.Fprintf(w, "%s go runtime: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s go runtime: %s\n", PassMark, ver)
		}
	}

	// ---- voice bundles --------------------------------------------------
	for _, path := range cfg.VoiceFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("voice bundle %q: %v", path, err))
			fmt.Fprintf(w, "%s voice bundle %s: not found\n", FailMark, path)

			continue
		}

		if cfg.ValidateVoice == nil {
			fmt.Fprintf(w, "%s voice bundle: %s\n", PassMark, path)
			continue
		}

		desc, err := cfg.ValidateVoice(path)
		if err != nil {
			res.fail(fmt.Sprintf("voice bundle %q: %v", path, err))
			fmt.Fprintf(w, "%s voice bundle %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s voice bundle: %s (%s)\n", PassMark, path, desc)
		}
	}

	return res
}
