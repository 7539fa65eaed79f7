package engine

import (
	"math"

	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/interp"
)

// dB and halfTone are the fixed conversions hts_engine_API uses for its
// volume and additional-half-tone controls: dB turns a decibel value into
// a natural-log gain multiplier (volume = exp(v*dB) = 10^(v/20)); halfTone
// turns a half-tone count into a log-F0 offset (one semitone = log(2)/12).
const (
	dB       = math.Ln10 / 20.0
	halfTone = math.Ln2 / 12.0
)

// Condition holds every per-call synthesis setting an Engine exposes,
// seeded with voice-appropriate defaults by newCondition and mutated
// through the Engine's setters.
type Condition struct {
	SamplingFrequency int
	FramePeriod       int
	Volume            float64 // linear gain; VolumeDB()/SetVolumeDB() convert to/from dB

	MSDThreshold []float64 // per stream, in [0,1]
	GVWeight     []float64 // per stream, >=0

	PhonemeAlignment bool
	Speed            float64

	Stage      int
	UseLogGain bool
	Alpha      float64
	Beta       float64

	AdditionalHalfTone float64
}

// newCondition seeds a Condition from a voice set's global metadata and
// its first stream's [STREAM] options, mirroring
// Condition::load_model's "global" and "spectrum" sections.
func newCondition(vs htsvoice.VoiceSet) (Condition, error) {
	nstream := vs.NumStreams()

	c := Condition{
		SamplingFrequency: vs.SamplingFrequency(),
		FramePeriod:       vs.FramePeriod(),
		Volume:            1.0,
		MSDThreshold:      make([]float64, nstream),
		GVWeight:          make([]float64, nstream),
		Speed:             1.0,
	}

	for i := range c.MSDThreshold {
		c.MSDThreshold[i] = 0.5
		c.GVWeight[i] = 1.0
	}

	opts, err := vs.Options(0)
	if err != nil {
		return Condition{}, err
	}

	c.Stage = opts.Gamma
	c.UseLogGain = opts.LnGain
	if opts.HasAlpha {
		c.Alpha = opts.Alpha
	}

	return c, nil
}

// newInterpolationSet returns equally-weighted interpolation weights
// across every voice in vs, for duration and each of nstream streams.
func newInterpolationSet(vs htsvoice.VoiceSet) interp.Set {
	return interp.NewSet(len(vs.Voices), vs.NumStreams())
}
