// Package engine orchestrates the full label-to-waveform pipeline: state
// sequence generation, maximum-likelihood parameter generation, and
// vocoder synthesis, tied together by a mutable Condition that every
// stage reads from.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/interp"
	"github.com/example/jbonsai/internal/label"
	"github.com/example/jbonsai/internal/mlpg"
	"github.com/example/jbonsai/internal/sstream"
	"github.com/example/jbonsai/internal/vocoder"
)

// ErrNoVoices is returned when an Engine is built from an empty VoiceSet.
var ErrNoVoices = errors.New("engine: voice set has no voices")

// ErrNotSynthesized is returned by accessors that need a completed
// synthesis pass (Synthesize or the individual Generate* stages).
var ErrNotSynthesized = errors.New("engine: no synthesis result available")

// Engine is a loaded voice bundle plus its mutable synthesis condition. It
// is not safe for concurrent use by multiple goroutines at once; callers
// synthesizing concurrently should use one Engine per goroutine (or clone
// the VoiceSet into separate Engines, since VoiceSet itself is read-only).
type Engine struct {
	vs        htsvoice.VoiceSet
	condition Condition
	weights   interp.Set
	logger    *slog.Logger

	label  []label.Label
	state  *sstream.StateSequence
	params []mlpg.Stream
	speech []float64
}

// New builds an Engine over vs with default condition values and equal
// per-voice interpolation weighting, mirroring Engine::new +
// Condition::load_model.
func New(vs htsvoice.VoiceSet, logger *slog.Logger) (*Engine, error) {
	if len(vs.Voices) == 0 {
		return nil, ErrNoVoices
	}

	condition, err := newCondition(vs)
	if err != nil {
		return nil, fmt.Errorf("engine: load condition: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		vs:        vs,
		condition: condition,
		weights:   newInterpolationSet(vs),
		logger:    logger,
	}, nil
}

// NumVoices, NumStreams and NumStates expose the loaded voice set's
// shape, used by callers to size interpolation-weight vectors before
// calling the Set* methods below.
func (e *Engine) NumVoices() int  { return len(e.vs.Voices) }
func (e *Engine) NumStreams() int { return e.vs.NumStreams() }
func (e *Engine) NumStates() int  { return e.vs.NumStates() }

// SetSamplingFrequency overrides the voice's native sampling rate.
func (e *Engine) SetSamplingFrequency(hz int) {
	if hz < 1 {
		hz = 1
	}

	e.condition.SamplingFrequency = hz
}

func (e *Engine) SamplingFrequency() int { return e.condition.SamplingFrequency }

// SetFramePeriod overrides the voice's native frame period (samples per
// acoustic frame).
func (e *Engine) SetFramePeriod(n int) {
	if n < 1 {
		n = 1
	}

	e.condition.FramePeriod = n
}

func (e *Engine) FramePeriod() int { return e.condition.FramePeriod }

// SetVolumeDB sets the output gain in decibels.
func (e *Engine) SetVolumeDB(db float64) {
	e.condition.Volume = math.Exp(db * dB)
}

// VolumeDB returns the current output gain in decibels.
func (e *Engine) VolumeDB() float64 {
	return math.Log(e.condition.Volume) / dB
}

// SetVolume sets the output gain as a linear multiplier, clamped to >=0.
func (e *Engine) SetVolume(linear float64) {
	e.condition.Volume = math.Max(0.0, linear)
}

// Volume returns the current output gain as a linear multiplier.
func (e *Engine) Volume() float64 { return e.condition.Volume }

// SetMSDThreshold sets stream's multi-space-distribution voicing
// threshold, clamped to [0,1].
func (e *Engine) SetMSDThreshold(stream int, f float64) {
	e.condition.MSDThreshold[stream] = math.Min(1.0, math.Max(0.0, f))
}

func (e *Engine) MSDThreshold(stream int) float64 { return e.condition.MSDThreshold[stream] }

// SetGVWeight sets stream's Global Variance weight, clamped to >=0.
func (e *Engine) SetGVWeight(stream int, f float64) {
	e.condition.GVWeight[stream] = math.Max(0.0, f)
}

func (e *Engine) GVWeight(stream int) float64 { return e.condition.GVWeight[stream] }

// SetSpeed sets the unaligned-duration speed multiplier (>1 speaks
// faster), floored just above zero to avoid a degenerate divide.
func (e *Engine) SetSpeed(f float64) {
	e.condition.Speed = math.Max(1.0e-6, f)
}

// SetPhonemeAlignment selects phoneme-aligned duration estimation (label
// end-times drive state duration) instead of the unaligned/speed model.
func (e *Engine) SetPhonemeAlignment(b bool) { e.condition.PhonemeAlignment = b }

// SetAlpha sets the mel-warping coefficient, clamped to [0,1].
func (e *Engine) SetAlpha(f float64) {
	e.condition.Alpha = math.Min(1.0, math.Max(0.0, f))
}

func (e *Engine) Alpha() float64 { return e.condition.Alpha }

// SetBeta sets the postfilter strength, clamped to [0,1].
func (e *Engine) SetBeta(f float64) {
	e.condition.Beta = math.Min(1.0, math.Max(0.0, f))
}

func (e *Engine) Beta() float64 { return e.condition.Beta }

// AddHalfTone sets the additional pitch shift, in half-tones, applied to
// every state's interpolated log-F0 mean after state-sequence generation.
func (e *Engine) AddHalfTone(f float64) { e.condition.AdditionalHalfTone = f }

// SetDurationInterpolationWeight replaces the per-voice duration
// interpolation weight vector (must sum to 1 and match NumVoices).
func (e *Engine) SetDurationInterpolationWeight(w []float64) error {
	return e.weights.SetDuration(w)
}

// SetParameterInterpolationWeight replaces stream's per-voice acoustic
// parameter interpolation weight vector.
func (e *Engine) SetParameterInterpolationWeight(stream int, w []float64) error {
	return e.weights.SetParameter(stream, w)
}

// SetGVInterpolationWeight replaces stream's per-voice Global Variance
// interpolation weight vector.
func (e *Engine) SetGVInterpolationWeight(stream int, w []float64) error {
	return e.weights.SetGV(stream, w)
}

// TotalState returns the total emitting-state count of the most recent
// state sequence.
func (e *Engine) TotalState() (int, error) {
	if e.state == nil {
		return 0, ErrNotSynthesized
	}

	return e.state.TotalState, nil
}

// StateDuration returns the duration in frames of the most recent state
// sequence's stateIndex-th state.
func (e *Engine) StateDuration(stateIndex int) (int, error) {
	if e.state == nil {
		return 0, ErrNotSynthesized
	}

	return e.state.Durations[stateIndex], nil
}

// TotalSamples returns the most recently generated waveform's sample
// count.
func (e *Engine) TotalSamples() (int, error) {
	if e.speech == nil {
		return 0, ErrNotSynthesized
	}

	return len(e.speech), nil
}

// Speech returns the most recently generated waveform.
func (e *Engine) Speech() ([]float64, error) {
	if e.speech == nil {
		return nil, ErrNotSynthesized
	}

	return e.speech, nil
}

// Refresh discards any in-progress synthesis state, matching
// Engine::refresh.
func (e *Engine) Refresh() {
	e.label = nil
	e.state = nil
	e.params = nil
	e.speech = nil
}

// GenerateStateSequence runs duration estimation and per-state parameter
// lookup for labels, then applies the additional-half-tone pitch shift to
// the resulting lf0 stream's static means -- matching
// Engine::generate_state_sequence's post-processing step.
func (e *Engine) GenerateStateSequence(labels []label.Label) error {
	e.Refresh()
	e.label = labels

	state, err := sstream.Create(e.vs, labels, e.condition.PhonemeAlignment, e.condition.Speed, e.weights, e.logger)
	if err != nil {
		return err
	}

	e.state = state

	if e.condition.AdditionalHalfTone != 0 && e.vs.NumStreams() > 1 {
		lf0 := &e.state.Streams[1]
		for s := 0; s < len(lf0.Params); s++ {
			f := lf0.Params[s].Pairs[0].Mean
			f += e.condition.AdditionalHalfTone * halfTone
			f = math.Min(vocoder.MaxLF0, math.Max(vocoder.MinLF0, f))
			lf0.Params[s].Pairs[0].Mean = f
		}
	}

	return nil
}

// GenerateParameterSequence runs MLPG (with Global Variance re-scaling
// where the voice has a trained GV model) over the current state
// sequence.
func (e *Engine) GenerateParameterSequence() error {
	if e.state == nil {
		return ErrNotSynthesized
	}

	e.params = mlpg.Generate(e.state, mlpg.Options{
		MSDThreshold: e.condition.MSDThreshold,
		GVWeight:     e.condition.GVWeight,
		Workers:      e.vs.NumStreams(),
	})

	return nil
}

// GenerateSampleSequence runs the vocoder over the current parameter
// sequence, producing the final PCM waveform in e.Speech(). The voice
// must have exactly 2 streams (spectrum, lf0) or 3 (+ a low-pass filter
// coefficient stream with an odd vector length), matching
// GenerateSpeechStreamSet::create's checks.
func (e *Engine) GenerateSampleSequence() error {
	if e.params == nil {
		return ErrNotSynthesized
	}

	nstream := len(e.params)
	if nstream != 2 && nstream != 3 {
		return fmt.Errorf("engine: voice must have 2 or 3 streams, got %d", nstream)
	}
	if e.params[1].VectorLength != 1 {
		return fmt.Errorf("engine: lf0 stream must have vector length 1, got %d", e.params[1].VectorLength)
	}

	nlpf := 0
	if nstream >= 3 {
		nlpf = e.params[2].VectorLength
		if nlpf%2 == 0 {
			return fmt.Errorf("engine: low-pass filter coefficient count must be odd, got %d", nlpf)
		}
	}

	totalFrame := e.state.TotalFrame
	fperiod := e.condition.FramePeriod

	spectrumOrder := e.params[0].VectorLength - 1
	v := vocoder.NewVocoder(spectrumOrder, e.condition.Stage, e.condition.UseLogGain, e.condition.SamplingFrequency, fperiod)

	speech := make([]float64, totalFrame*fperiod)

	spectrum := make([]float64, e.params[0].VectorLength)
	var lpf []float64
	if nlpf > 0 {
		lpf = make([]float64, nlpf)
	}

	for i := 0; i < totalFrame; i++ {
		for j := range spectrum {
			spectrum[j] = e.params[0].Parameters[j][i]
		}

		for j := range lpf {
			lpf[j] = e.params[2].Parameters[j][i]
		}

		lf0 := e.params[1].Parameters[0][i]

		v.Synthesize(lf0, spectrum, nlpf, lpf, e.condition.Alpha, e.condition.Beta, e.condition.Volume,
			speech[i*fperiod:(i+1)*fperiod])
	}

	e.speech = speech

	return nil
}

// Synthesize runs the full label-to-waveform pipeline for labels and
// returns the PCM samples.
func (e *Engine) Synthesize(labels []label.Label) ([]float64, error) {
	if err := e.GenerateStateSequence(labels); err != nil {
		return nil, err
	}

	if err := e.GenerateParameterSequence(); err != nil {
		return nil, err
	}

	if err := e.GenerateSampleSequence(); err != nil {
		return nil, err
	}

	return e.speech, nil
}
