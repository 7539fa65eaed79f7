package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/jbonsai/internal/audio"
	"github.com/example/jbonsai/internal/bench"
	"github.com/example/jbonsai/internal/tts"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		labelPath    string
		voice        string
		runs         int
		format       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and realtime factor",
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
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
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

			results, err := runBench(cmd.Context(), svc, labelText, selectedVoice, runs)
			if err != nil {
				return err
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, os.Stdout)
			default:
				bench.FormatTable(results, stats, os.Stdout)
			}

			var totalRTF float64
			for _, r := range results {
				totalRTF += r.RTF
			}
			meanRTF := totalRTF / float64(len(results))

			return bench.CheckRTFThreshold(meanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&labelPath, "label", "", "Full-context label file path ('-' or empty with stdin input)")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id (overrides config)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}

func runBench(ctx context.Context, svc *tts.Service, labelText, voiceID string, n int) ([]bench.RunResult, error) {
	results := make([]bench.RunResult, 0, n)

	for i := range n {
		start := time.Now()
		samples, err := svc.SynthesizeCtx(ctx, labelText, voiceID)
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}
		dur := time.Since(start)

		wavBytes, err := audio.EncodeWAV(samples)
		var audioDur time.Duration
		if err != nil {
			fmt.Fprintf(os.Stderr, "warn: run %d: could not encode WAV: %v\n", i+1, err)
		} else {
			audioDur, err = bench.WAVDuration(wavBytes)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warn: run %d: could not parse WAV duration: %v\n", i+1, err)
			}
		}

		results = append(results, bench.RunResult{
			Index:       i,
			Cold:        i == 0,
			Duration:    dur,
			WAVDuration: audioDur,
			RTF:         bench.CalcRTF(dur, audioDur),
		})
	}

	return results, nil
}
