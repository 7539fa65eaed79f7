package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/jbonsai/internal/config"
	"github.com/example/jbonsai/internal/tts"
)

func newBenchTestService(t *testing.T) *tts.Service {
	t.Helper()

	tmp := t.TempDir()
	voicePath := filepath.Join(tmp, "voice.htsvoice")
	if err := os.WriteFile(voicePath, buildCmdFixtureVoice(t), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Paths.VoicePath = voicePath

	svc, err := tts.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunBench_SingleRun(t *testing.T) {
	svc := newBenchTestService(t)

	results, err := runBench(context.Background(), svc, "a^b-c+d=e", "", 1)
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].Cold {
		t.Error("first run should be marked Cold")
	}
	if results[0].Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestRunBench_MultipleRuns(t *testing.T) {
	svc := newBenchTestService(t)

	results, err := runBench(context.Background(), svc, "a^b-c+d=e", "", 3)
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Cold != (i == 0) {
			t.Errorf("run %d: Cold=%v, want %v", i, r.Cold, i == 0)
		}
	}
}

func TestRunBench_SynthesisFailure(t *testing.T) {
	svc := newBenchTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runBench(ctx, svc, "a^b-c+d=e", "", 1); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRunBench_WAVDurationCalculated(t *testing.T) {
	svc := newBenchTestService(t)

	results, err := runBench(context.Background(), svc, "a^b-c+d=e", "", 1)
	if err != nil {
		t.Fatalf("runBench: %v", err)
	}

	if results[0].WAVDuration <= 0 {
		t.Errorf("expected positive WAVDuration, got %v", results[0].WAVDuration)
	}
}
