package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/jbonsai/internal/audio"
	"github.com/example/jbonsai/internal/tts"
	"github.com/spf13/cobra"
)

func newSynthCmd() *cobra.Command {
	var labelPath string
	var out string
	var voice string
	var normalize bool
	var dcBlock bool
	var fadeInMS float64
	var fadeOutMS float64

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize a full-context label file to WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			path := labelPath
			if path == "" {
				path = cfg.Paths.LabelPath
			}

			labelText, err := readLabelInput(path, os.Stdin)
			if err != nil {
				return err
			}

			selectedVoice := cfg.Synth.Voice
			if voice != "" {
				selectedVoice = voice
			}

			svc, err := tts.NewService(cfg)
			if err != nil {
				return fmt.Errorf("initialize synthesis service: %w", err)
			}
			defer svc.Close()

			samples, err := svc.SynthesizeCtx(cmd.Context(), labelText, selectedVoice)
			if err != nil {
				return fmt.Errorf("synth failed: %w", err)
			}

			if normalize || dcBlock || fadeInMS > 0 || fadeOutMS > 0 {
				samples = audio.ApplyHooks(samples, buildDSPHooks(normalize, dcBlock, fadeInMS, fadeOutMS)...)
			}

			wavData, err := audio.EncodeWAV(samples)
			if err != nil {
				return fmt.Errorf("encode WAV: %w", err)
			}

			return writeSynthOutput(out, wavData, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&labelPath, "label", "", "Full-context label file path ('-' or empty with stdin input)")
	cmd.Flags().StringVar(&out, "out", "out.wav", "Output WAV path ('-' for stdout)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id from the manifest (overrides config)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Peak-normalize output audio")
	cmd.Flags().BoolVar(&dcBlock, "dc-block", false, "Apply DC-block high-pass filter")
	cmd.Flags().Float64Var(&fadeInMS, "fade-in-ms", 0, "Apply linear fade-in duration in milliseconds")
	cmd.Flags().Float64Var(&fadeOutMS, "fade-out-ms", 0, "Apply linear fade-out duration in milliseconds")

	return cmd
}

// buildDSPHooks assembles the requested post-processing hooks in a fixed
// order: normalize, then DC-block, then fades, matching the order synth
// applies them.
func buildDSPHooks(normalize, dcBlock bool, fadeInMS, fadeOutMS float64) []audio.Hook {
	var hooks []audio.Hook
	if normalize {
		hooks = append(hooks, audio.PeakNormalize)
	}
	if dcBlock {
		hooks = append(hooks, func(s []float32) []float32 { return audio.DCBlock(s, audio.ExpectedSampleRate) })
	}
	if fadeInMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return audio.FadeIn(s, audio.ExpectedSampleRate, fadeInMS) })
	}
	if fadeOutMS > 0 {
		hooks = append(hooks, func(s []float32) []float32 { return audio.FadeOut(s, audio.ExpectedSampleRate, fadeOutMS) })
	}
	return hooks
}

func writeSynthOutput(outPath string, wavData []byte, stdout io.Writer) error {
	if outPath == "-" {
		_, err := stdout.Write(wavData)
		return err
	}
	return os.WriteFile(outPath, wavData, 0o644)
}

// readLabelInput reads the full-context label text from path, or from
// stdin when path is empty or "-".
func readLabelInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return "", fmt.Errorf("either provide --label or pipe a label file on stdin")
		}
		return text, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read label file %q: %w", path, err)
	}
	return string(b), nil
}
