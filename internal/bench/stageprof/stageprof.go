// Package stageprof is a standalone CPU-profiling harness that times each
// stage of the synthesis pipeline (state sequence, parameter sequence,
// sample sequence, WAV encode) independently, to locate where synthesis
// time actually goes for a given voice bundle and label file.
package stageprof

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/example/jbonsai/internal/audio"
	"github.com/example/jbonsai/internal/engine"
	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/label"
)

type timings struct {
	stateSeq     time.Duration
	parameterSeq time.Duration
	sampleSeq    time.Duration
	encode       time.Duration
	total        time.Duration
	samples      int
}

func Main() {
	var (
		voicePath  string
		labelPath  string
		runs       int
		warmup     int
		cpuprofile string
		debugLogs  bool
	)

	flag.StringVar(&voicePath, "voice", "", "path to a .htsvoice bundle (required)")
	flag.StringVar(&labelPath, "label", "", "path to a full-context label file (required)")
	flag.IntVar(&runs, "runs", 5, "number of profiled runs")
	flag.IntVar(&warmup, "warmup", 1, "number of warmup runs")
	flag.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile")
	flag.BoolVar(&debugLogs, "debug-logs", false, "enable debug logs from the engine")
	flag.Parse()

	if debugLogs {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if voicePath == "" || labelPath == "" {
		fatalf("--voice and --label are required")
	}

	if runs < 1 {
		fatalf("--runs must be >= 1")
	}

	labels, err := loadLabels(labelPath)
	if err != nil {
		fatalf("load labels: %v", err)
	}

	vs, err := loadVoiceSet(voicePath)
	if err != nil {
		fatalf("load voice: %v", err)
	}

	for i := range warmup {
		if _, err := runOnce(vs, labels); err != nil {
			fatalf("warmup run %d failed: %v", i+1, err)
		}
	}

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			fatalf("create cpuprofile: %v", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			fatalf("start cpuprofile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	var agg timings

	for i := range runs {
		t, err := runOnce(vs, labels)
		if err != nil {
			fatalf("profiled run %d failed: %v", i+1, err)
		}

		agg.stateSeq += t.stateSeq
		agg.parameterSeq += t.parameterSeq
		agg.sampleSeq += t.sampleSeq
		agg.encode += t.encode
		agg.total += t.total
		agg.samples = t.samples
	}

	div := float64(runs)
	avgStateSeq := agg.stateSeq.Seconds() * 1000 / div
	avgParamSeq := agg.parameterSeq.Seconds() * 1000 / div
	avgSampleSeq := agg.sampleSeq.Seconds() * 1000 / div
	avgEncode := agg.encode.Seconds() * 1000 / div
	avgTotal := agg.total.Seconds() * 1000 / div

	audioMS := float64(agg.samples) * 1000.0 / float64(audio.ExpectedSampleRate)
	rtf := avgTotal / audioMS

	fmt.Printf("voice: %s\n", voicePath)
	fmt.Printf("label: %s\n", labelPath)
	fmt.Printf("runs: %d (warmup %d)\n", runs, warmup)
	fmt.Printf("audio_ms: %.2f\n", audioMS)
	fmt.Printf("avg_state_sequence_ms: %.2f\n", avgStateSeq)
	fmt.Printf("avg_parameter_sequence_ms: %.2f\n", avgParamSeq)
	fmt.Printf("avg_sample_sequence_ms: %.2f\n", avgSampleSeq)
	fmt.Printf("avg_encode_ms: %.2f\n", avgEncode)
	fmt.Printf("avg_total_ms: %.2f\n", avgTotal)
	fmt.Printf("rtf: %.3f\n", rtf)

	if avgTotal > 0 {
		fmt.Printf("share_state_sequence_pct: %.2f\n", 100*avgStateSeq/avgTotal)
		fmt.Printf("share_parameter_sequence_pct: %.2f\n", 100*avgParamSeq/avgTotal)
		fmt.Printf("share_sample_sequence_pct: %.2f\n", 100*avgSampleSeq/avgTotal)
		fmt.Printf("share_encode_pct: %.2f\n", 100*avgEncode/avgTotal)
	}
}

func runOnce(vs htsvoice.VoiceSet, labels []label.Label) (timings, error) {
	var out timings

	startTotal := time.Now()

	e, err := engine.New(vs, slog.Default())
	if err != nil {
		return out, fmt.Errorf("build engine: %w", err)
	}

	pprof.Do(context.Background(), pprof.Labels("stage", "state_sequence"), func(context.Context) {
		start := time.Now()
		err = e.GenerateStateSequence(labels)
		out.stateSeq = time.Since(start)
	})
	if err != nil {
		return out, fmt.Errorf("generate state sequence: %w", err)
	}

	pprof.Do(context.Background(), pprof.Labels("stage", "parameter_sequence"), func(context.Context) {
		start := time.Now()
		err = e.GenerateParameterSequence()
		out.parameterSeq = time.Since(start)
	})
	if err != nil {
		return out, fmt.Errorf("generate parameter sequence: %w", err)
	}

	pprof.Do(context.Background(), pprof.Labels("stage", "sample_sequence"), func(context.Context) {
		start := time.Now()
		err = e.GenerateSampleSequence()
		out.sampleSeq = time.Since(start)
	})
	if err != nil {
		return out, fmt.Errorf("generate sample sequence: %w", err)
	}

	speech, err := e.Speech()
	if err != nil {
		return out, fmt.Errorf("read speech: %w", err)
	}

	var wavErr error

	pprof.Do(context.Background(), pprof.Labels("stage", "encode"), func(context.Context) {
		start := time.Now()
		_, wavErr = audio.EncodeWAV(toFloat32(speech))
		out.encode = time.Since(start)
	})
	if wavErr != nil {
		return out, fmt.Errorf("encode wav: %w", wavErr)
	}

	out.total = time.Since(startTotal)
	out.samples = len(speech)

	return out, nil
}

func loadLabels(path string) ([]label.Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return label.ParseLabels(bytes.NewReader(data))
}

func loadVoiceSet(path string) (htsvoice.VoiceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return htsvoice.VoiceSet{}, err
	}

	metadata, voice, err := htsvoice.ParseVoice(data, slog.Default())
	if err != nil {
		return htsvoice.VoiceSet{}, err
	}

	return htsvoice.NewVoiceSet(metadata, []htsvoice.Voice{voice})
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}

	return out
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
