package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/example/jbonsai/internal/doctor"
	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/voiceset"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and voice bundle checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				GoVersion:     func() (string, error) { return runtime.Version(), nil },
				VoiceFiles:    collectVoiceFiles(cfg.Paths.VoiceManifest, cfg.Paths.VoicePath),
				ValidateVoice: validateVoiceBundle,
			}

			result := doctor.Run(dcfg, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// collectVoiceFiles returns the voice bundle paths doctor should verify:
// every bundle in manifestPath's manifest, or directPath alone when no
// manifest is configured. Manifest paths that resolve are made absolute;
// a voice whose paths fail to resolve contributes its paths as written, and
// directPath is returned unchanged. A manifest that fails to load yields nil.
func collectVoiceFiles(manifestPath, directPath string) []string {
	if manifestPath != "" {
		mgr, err := voiceset.NewManager(manifestPath)
		if err != nil {
			return nil
		}

		var paths []string

		for _, v := range mgr.ListVoices() {
			resolved, err := mgr.ResolvePaths(v.ID)
			if err != nil {
				paths = append(paths, v.Paths...)
				continue
			}

			for _, p := range resolved {
				if abs, err := filepath.Abs(p); err == nil {
					p = abs
				}

				paths = append(paths, p)
			}
		}

		return paths
	}

	if directPath == "" {
		return nil
	}

	return []string{directPath}
}

// validateVoiceBundle parses path as a .htsvoice bundle and reports its
// sampling rate and stream count.
func validateVoiceBundle(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	metadata, voice, err := htsvoice.ParseVoice(data, slog.Default())
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%dHz, %d streams", metadata.SamplingFrequency, len(voice.Streams)), nil
}
