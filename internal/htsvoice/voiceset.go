package htsvoice

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/jbonsai/internal/label"
)

// StreamOptions holds the parsed option= string list from a [STREAM]
// section (spec.md §6): GAMMA selects the MGLSA stage, LnGain selects log
// gain, Alpha is the stream's default mel-warping coefficient. Unknown
// keys are logged and ignored.
type StreamOptions struct {
	Gamma   int
	LnGain  bool
	Alpha   float64
	HasAlpha bool
}

// ParseStreamOptions parses a comma-separated KEY=VALUE option list.
func ParseStreamOptions(raw []string, logger *slog.Logger) StreamOptions {
	opts := StreamOptions{}

	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		key, value, found := strings.Cut(item, "=")
		if !found {
			if logger != nil {
				logger.Warn("htsvoice: malformed stream option", "option", item)
			}

			continue
		}

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "GAMMA":
			if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
				opts.Gamma = v
			}
		case "LN_GAIN":
			opts.LnGain = strings.TrimSpace(value) == "1"
		case "ALPHA":
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				opts.Alpha = v
				opts.HasAlpha = true
			}
		default:
			if logger != nil {
				logger.Warn("htsvoice: unknown stream option", "key", key)
			}
		}
	}

	return opts
}

// StreamMetadata mirrors one [STREAM] section's fixed fields.
type StreamMetadata struct {
	Name         string
	VectorLength int
	NumWindows   int
	IsMSD        bool
	UseGV        bool
	Options      StreamOptions
}

// StreamModel is one acoustic stream's tree/PDF model plus its windows and
// optional Global Variance model.
type StreamModel struct {
	Metadata StreamMetadata
	Model    Model
	GV       *Model
	Windows  Windows
}

// GlobalMetadata is the [GLOBAL] section, shared (and load-time validated)
// across every Voice in a VoiceSet.
type GlobalMetadata struct {
	HTSVoiceVersion     string
	SamplingFrequency   int
	FramePeriod         int
	NumStates           int
	NumStreams          int
	StreamTypes         []string
	FullContextFormat   string
	FullContextVersion  string
	GVOffContext        label.Question
	HasGVOffContext     bool
	Comment             string
}

// Equal reports whether two GlobalMetadata values describe the same voice
// family, per spec.md §3's load-time metadata-match invariant.
func (g GlobalMetadata) Equal(o GlobalMetadata) bool {
	if g.SamplingFrequency != o.SamplingFrequency ||
		g.FramePeriod != o.FramePeriod ||
		g.NumStates != o.NumStates ||
		g.NumStreams != o.NumStreams ||
		g.FullContextFormat != o.FullContextFormat ||
		g.FullContextVersion != o.FullContextVersion ||
		len(g.StreamTypes) != len(o.StreamTypes) {
		return false
	}

	for i := range g.StreamTypes {
		if g.StreamTypes[i] != o.StreamTypes[i] {
			return false
		}
	}

	return true
}

// Voice is one .htsvoice file's decoded content.
type Voice struct {
	Duration Model
	Streams  []StreamModel
}

// VoiceSet is an ordered, non-empty collection of Voices sharing identical
// GlobalMetadata (spec.md §3).
type VoiceSet struct {
	Metadata GlobalMetadata
	Voices   []Voice
}

// NewVoiceSet returns the assembled set, or ErrEmptyVoice when voices is
// empty. It does not compare metadata across voices; metadata applies to
// the whole set.
func NewVoiceSet(metadata GlobalMetadata, voices []Voice) (VoiceSet, error) {
	if len(voices) == 0 {
		return VoiceSet{}, ErrEmptyVoice
	}

	return VoiceSet{Metadata: metadata, Voices: voices}, nil
}

func (vs VoiceSet) SamplingFrequency() int { return vs.Metadata.SamplingFrequency }
func (vs VoiceSet) FramePeriod() int       { return vs.Metadata.FramePeriod }
func (vs VoiceSet) NumStates() int         { return vs.Metadata.NumStates }
func (vs VoiceSet) NumStreams() int        { return vs.Metadata.NumStreams }

func (vs VoiceSet) streamMetadata(stream int) (StreamMetadata, error) {
	if stream < 0 || stream >= len(vs.Voices[0].Streams) {
		return StreamMetadata{}, fmt.Errorf("%w: stream %d", ErrUnknownStreamType, stream)
	}

	return vs.Voices[0].Streams[stream].Metadata, nil
}

// VectorLength returns stream's PDF vector length V.
func (vs VoiceSet) VectorLength(stream int) (int, error) {
	m, err := vs.streamMetadata(stream)
	return m.VectorLength, err
}

// IsMSD reports whether stream uses multi-space distribution gating.
func (vs VoiceSet) IsMSD(stream int) (bool, error) {
	m, err := vs.streamMetadata(stream)
	return m.IsMSD, err
}

// UseGV reports whether stream has a Global Variance model.
func (vs VoiceSet) UseGV(stream int) (bool, error) {
	m, err := vs.streamMetadata(stream)
	return m.UseGV, err
}

// Options returns stream's parsed option string.
func (vs VoiceSet) Options(stream int) (StreamOptions, error) {
	m, err := vs.streamMetadata(stream)
	return m.Options, err
}

// Windows returns the windows for a stream. Per the reference
// implementation's model/mod.rs::get_windows, these are taken from the
// *last* voice in the set, not the first -- a deliberate asymmetry carried
// forward from the original rather than "fixed", since it is observable
// multi-voice-interpolation behavior, not a parsing bug.
func (vs VoiceSet) Windows(stream int) Windows {
	last := vs.Voices[len(vs.Voices)-1]
	return last.Streams[stream].Windows
}

// GVOffSwitch reports whether GV should be disabled for label l, per the
// voice header's gv_off_context predicate.
func (vs VoiceSet) GVOffSwitch(l label.Label) bool {
	if !vs.Metadata.HasGVOffContext {
		return false
	}

	return vs.Metadata.GVOffContext.Match(l)
}

// durationTreeState is the fixed HMM-state tag voice-training tools write
// on duration decision trees: a duration leaf predicts one (mean,
// variance) pair per state already, so there is exactly one duration
// model per voice and it is conventionally tagged state 2.
const durationTreeState = 2

// GetDuration returns the interpolation-weighted duration ModelParameter
// (one (mean,variance) pair per HMM state) across all voices. iw[voice] is
// the duration interpolation weight for that voice. The weights are
// applied as given and are not normalized here; the engine takes them from
// an interp.Set, which accepts only weight vectors that sum to 1.
func (vs VoiceSet) GetDuration(l label.Label, iw []float64) (ModelParameter, error) {
	result := NewModelParameter(vs.NumStates(), false)

	for i, v := range vs.Voices {
		if iw[i] == 0 {
			continue
		}

		mp, err := v.Duration.GetParameter(durationTreeState, l)
		if err != nil {
			return ModelParameter{}, err
		}

		result.AddAssign(iw[i], mp)
	}

	return result, nil
}

// GetParameter returns the interpolation-weighted stream ModelParameter.
func (vs VoiceSet) GetParameter(stream, state int, l label.Label, iw []float64) (ModelParameter, error) {
	vlen, err := vs.VectorLength(stream)
	if err != nil {
		return ModelParameter{}, err
	}

	nwin := vs.Voices[0].Streams[stream].Metadata.NumWindows
	isMSD := vs.Voices[0].Streams[stream].Metadata.IsMSD

	result := NewModelParameter(vlen*nwin, isMSD)

	for i, v := range vs.Voices {
		if iw[i] == 0 {
			continue
		}

		mp, err := v.Streams[stream].Model.GetParameter(state, l)
		if err != nil {
			return ModelParameter{}, err
		}

		result.AddAssign(iw[i], mp)
	}

	return result, nil
}

// GetGV returns the interpolation-weighted GV ModelParameter for a stream.
func (vs VoiceSet) GetGV(stream int, l label.Label, iw []float64) (ModelParameter, error) {
	vlen, err := vs.VectorLength(stream)
	if err != nil {
		return ModelParameter{}, err
	}

	result := NewModelParameter(vlen, false)

	for i, v := range vs.Voices {
		if iw[i] == 0 {
			continue
		}

		sm := v.Streams[stream]
		if sm.GV == nil {
			return ModelParameter{}, ErrGvRangeMissing
		}

		mp, err := sm.GV.GetParameter(durationTreeState, l) // GV trees are tagged state 2 by the same training-tool convention as duration
		if err != nil {
			return ModelParameter{}, err
		}

		result.AddAssign(iw[i], mp)
	}

	return result, nil
}
