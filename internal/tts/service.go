// Package tts is the synthesis service the CLI and HTTP server share: it
// resolves a configured voice source (a direct .htsvoice bundle, or a named
// voice from a voiceset manifest) into a loaded internal/engine.Engine and
// renders full-context labels to PCM.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/jbonsai/internal/config"
	"github.com/example/jbonsai/internal/engine"
	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/label"
	"github.com/example/jbonsai/internal/voiceset"
)

// Voice re-exports voiceset.Voice for callers that only need the manifest
// listing (e.g. GET /voices).
type Voice = voiceset.Voice

// PCMChunk is one incrementally produced waveform segment, emitted by
// SynthesizeStream once per contiguous label group.
type PCMChunk struct {
	Samples    []float32
	ChunkIndex int
	Final      bool
}

// Service loads voice bundles and renders label sequences to PCM.
type Service struct {
	mgr        *voiceset.Manager
	directPath string
	synthCfg   config.SynthConfig
	logger     *slog.Logger
}

// NewService resolves cfg's voice source eagerly enough to fail fast (a
// missing manifest or bundle file is reported at startup, not at the first
// request) and stores the per-call synthesis tunables every Synthesize
// call applies to its Engine.
func NewService(cfg config.Config) (*Service, error) {
	s := &Service{synthCfg: cfg.Synth, logger: slog.Default()}

	switch {
	case cfg.Paths.VoiceManifest != "":
		mgr, err := voiceset.NewManager(cfg.Paths.VoiceManifest)
		if err != nil {
			return nil, fmt.Errorf("tts: load voice manifest: %w", err)
		}

		s.mgr = mgr
	case cfg.Paths.VoicePath != "":
		if _, err := os.Stat(cfg.Paths.VoicePath); err != nil {
			return nil, fmt.Errorf("tts: voice bundle %q: %w", cfg.Paths.VoicePath, err)
		}

		s.directPath = cfg.Paths.VoicePath
	default:
		return nil, errors.New("tts: no voice bundle configured (set paths.voice_path or paths.voice_manifest)")
	}

	return s, nil
}

// ListVoices returns the manifest's named voices, or nil when the service
// was configured with a direct bundle path instead of a manifest.
func (s *Service) ListVoices() []Voice {
	if s.mgr == nil {
		return nil
	}

	return s.mgr.ListVoices()
}

// Synthesize parses labelText as a full-context label file and renders it
// through voiceID's engine (voiceID is ignored for a direct-bundle
// service). Samples are returned as float32 to match internal/audio's WAV
// encoder.
func (s *Service) Synthesize(labelText string, voiceID string) ([]float32, error) {
	return s.SynthesizeCtx(context.Background(), labelText, voiceID)
}

// SynthesizeCtx is like Synthesize but accepts a context for cancellation
// propagation from the HTTP handler or CLI.
func (s *Service) SynthesizeCtx(ctx context.Context, labelText string, voiceID string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels, err := label.ParseLabels(bytes.NewReader([]byte(labelText)))
	if err != nil {
		return nil, fmt.Errorf("tts: parse labels: %w", err)
	}

	e, err := s.loadEngine(voiceID)
	if err != nil {
		return nil, err
	}

	speech, err := e.Synthesize(labels)
	if err != nil {
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}

	return toFloat32(speech), nil
}

// SynthesizeStream splits labelText's labels into runs bounded by silence
// phonemes ("pau", "sil"), synthesizes each run independently, and sends
// one PCMChunk per run to out. The channel is closed before the method
// returns; the caller should range over out from a separate goroutine.
func (s *Service) SynthesizeStream(ctx context.Context, labelText string, voiceID string, out chan<- PCMChunk) error {
	defer close(out)

	labels, err := label.ParseLabels(bytes.NewReader([]byte(labelText)))
	if err != nil {
		return fmt.Errorf("tts: parse labels: %w", err)
	}

	groups := splitOnSilence(labels)
	if len(groups) == 0 {
		return nil
	}

	e, err := s.loadEngine(voiceID)
	if err != nil {
		return err
	}

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		speech, err := e.Synthesize(group)
		if err != nil {
			return fmt.Errorf("tts: synthesize chunk %d: %w", i, err)
		}

		select {
		case out <- PCMChunk{Samples: toFloat32(speech), ChunkIndex: i, Final: i == len(groups)-1}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// loadEngine resolves voiceID (ignored for a direct-path service) to a
// loaded VoiceSet and builds a fresh Engine configured from s.synthCfg.
// A fresh Engine per call keeps concurrent requests independent, since
// Engine is not safe for concurrent use (see internal/engine's doc
// comment).
func (s *Service) loadEngine(voiceID string) (*engine.Engine, error) {
	vs, err := s.loadVoiceSet(voiceID)
	if err != nil {
		return nil, err
	}

	e, err := engine.New(vs, s.logger)
	if err != nil {
		return nil, fmt.Errorf("tts: build engine: %w", err)
	}

	if err := applyInterpolation(e, s.synthCfg); err != nil {
		return nil, err
	}

	cfg := s.synthCfg
	e.SetSpeed(cfg.SpeechSpeedRate)
	e.AddHalfTone(cfg.AdditionalHalfTone)
	e.SetAlpha(cfg.Alpha)
	e.SetBeta(cfg.Beta)
	e.SetVolume(cfg.VolumeGain)

	for stream := 0; stream < e.NumStreams(); stream++ {
		e.SetMSDThreshold(stream, cfg.MSDThreshold)

		if cfg.UseGV {
			e.SetGVWeight(stream, cfg.GVWeight)
		} else {
			e.SetGVWeight(stream, 0)
		}
	}

	return e, nil
}

// applyInterpolation resolves cfg.Interpolation against e's loaded voice
// count and, for "custom", pushes cfg.InterpolationWeights onto every
// weight vector the Engine exposes: one weight vector per call rather
// than a separate vector per stream, applied uniformly to duration and
// every stream's parameter and GV weights.
func applyInterpolation(e *engine.Engine, cfg config.SynthConfig) error {
	mode, err := config.NormalizeInterpolation(cfg.Interpolation)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}

	switch mode {
	case config.InterpolationNone:
		if e.NumVoices() > 1 {
			return fmt.Errorf("tts: interpolation mode %q requires a single-voice voiceset, got %d voices", mode, e.NumVoices())
		}
	case config.InterpolationEqual:
		// engine.New already seeds equal weighting across nvoices.
	case config.InterpolationCustom:
		if len(cfg.InterpolationWeights) == 0 {
			return errors.New("tts: interpolation mode custom requires synth.interpolation_weights")
		}

		if err := e.SetDurationInterpolationWeight(cfg.InterpolationWeights); err != nil {
			return fmt.Errorf("tts: duration interpolation weights: %w", err)
		}

		for stream := 0; stream < e.NumStreams(); stream++ {
			if err := e.SetParameterInterpolationWeight(stream, cfg.InterpolationWeights); err != nil {
				return fmt.Errorf("tts: stream %d parameter interpolation weights: %w", stream, err)
			}

			if err := e.SetGVInterpolationWeight(stream, cfg.InterpolationWeights); err != nil {
				return fmt.Errorf("tts: stream %d GV interpolation weights: %w", stream, err)
			}
		}
	}

	return nil
}

func (s *Service) loadVoiceSet(voiceID string) (htsvoice.VoiceSet, error) {
	if s.mgr != nil {
		id := voiceID
		if id == "" {
			id = s.synthCfg.Voice
		}

		if id == "" {
			return htsvoice.VoiceSet{}, errors.New("tts: no voice id given and synth.voice is unset")
		}

		return s.mgr.Load(id, s.logger)
	}

	data, err := os.ReadFile(s.directPath)
	if err != nil {
		return htsvoice.VoiceSet{}, fmt.Errorf("tts: read voice bundle: %w", err)
	}

	metadata, voice, err := htsvoice.ParseVoice(data, s.logger)
	if err != nil {
		return htsvoice.VoiceSet{}, fmt.Errorf("tts: parse voice bundle: %w", err)
	}

	return htsvoice.NewVoiceSet(metadata, []htsvoice.Voice{voice})
}

// splitOnSilence partitions labels into runs, breaking after every silence
// phoneme so a streaming caller gets audio for a sentence-sized span at a
// time instead of waiting for the whole utterance.
func splitOnSilence(labels []label.Label) [][]label.Label {
	var groups [][]label.Label

	var current []label.Label

	for _, l := range labels {
		current = append(current, l)

		if isSilence(l) {
			groups = append(groups, current)
			current = nil
		}
	}

	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}

func isSilence(l label.Label) bool {
	return bytes.Contains([]byte(l.Text), []byte("-pau+")) ||
		bytes.Contains([]byte(l.Text), []byte("-sil+"))
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}

	return out
}

// Close is a no-op retained for interface parity with callers that defer
// Service.Close: unlike the teacher's ONNX runtime, an Engine holds no
// external resources to release.
func (s *Service) Close() {}
