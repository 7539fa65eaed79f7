// Package sstream builds the per-state, per-stream parameter sequence a
// label sequence maps to: state durations, the (mean, variance) pairs
// selected for every HMM state of every stream, and each stream's Global
// Variance target and per-label on/off switch.
package sstream

import (
	"fmt"
	"log/slog"

	"github.com/example/jbonsai/internal/duration"
	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/interp"
	"github.com/example/jbonsai/internal/label"
)

// firstStateIndex is the HMM state-tag offset voice-training tools use:
// tree files number a voice's nstate emitting states starting at 2 (states
// 0 and 1 are the conventional begin/end non-emitting states).
const firstStateIndex = 2

// StreamSequence is one acoustic stream's per-state parameters across the
// whole utterance, plus its Global Variance target.
type StreamSequence struct {
	VectorLength int
	IsMSD        bool
	Windows      htsvoice.Windows
	Params       []htsvoice.ModelParameter // len == TotalState
	GVSwitch     []bool                    // len == TotalState
	GVParams     *htsvoice.ModelParameter
}

// StateSequence is the full per-state/per-stream parameter sequence for a
// label sequence, ready for MLPG.
type StateSequence struct {
	TotalState int
	TotalFrame int
	Durations  []int // len == TotalState
	Streams    []StreamSequence
}

// Create runs duration estimation (unaligned/speed-scaled, or
// phoneme-aligned when phonemeAlignment is set) and resolves every
// stream's per-state parameters and GV target for labels against vs,
// weighted by w.
func Create(vs htsvoice.VoiceSet, labels []label.Label, phonemeAlignment bool, speed float64, w interp.Set, logger *slog.Logger) (*StateSequence, error) {
	if len(labels) == 0 {
		return &StateSequence{}, nil
	}

	nstate := vs.NumStates()

	durationParams := make([]htsvoice.Pair, 0, len(labels)*nstate)

	for _, l := range labels {
		mp, err := vs.GetDuration(l, w.Duration)
		if err != nil {
			return nil, fmt.Errorf("sstream: duration lookup: %w", err)
		}

		durationParams = append(durationParams, mp.Pairs...)
	}

	var durations []int

	if phonemeAlignment {
		frames := duration.FramesFromLabels(labels, vs.SamplingFrequency(), vs.FramePeriod())
		durations = duration.EstimateWithAlignment(nstate, durationParams, frames, logger)
	} else {
		durations = duration.Estimate(durationParams, speed)
	}

	totalState := len(labels) * nstate
	totalFrame := 0

	for _, d := range durations {
		totalFrame += d
	}

	streams := make([]StreamSequence, vs.NumStreams())

	for stream := 0; stream < vs.NumStreams(); stream++ {
		ss, err := createStream(vs, labels, stream, w, totalState, nstate)
		if err != nil {
			return nil, err
		}

		streams[stream] = ss
	}

	return &StateSequence{
		TotalState: totalState,
		TotalFrame: totalFrame,
		Durations:  durations,
		Streams:    streams,
	}, nil
}

func createStream(vs htsvoice.VoiceSet, labels []label.Label, stream int, w interp.Set, totalState, nstate int) (StreamSequence, error) {
	vlen, err := vs.VectorLength(stream)
	if err != nil {
		return StreamSequence{}, err
	}

	isMSD, err := vs.IsMSD(stream)
	if err != nil {
		return StreamSequence{}, err
	}

	useGV, err := vs.UseGV(stream)
	if err != nil {
		return StreamSequence{}, err
	}

	params := make([]htsvoice.ModelParameter, 0, totalState)
	gvSwitch := make([]bool, 0, totalState)

	for _, l := range labels {
		gvEnabled := !useGV || !vs.GVOffSwitch(l)

		for s := 0; s < nstate; s++ {
			mp, err := vs.GetParameter(stream, s+firstStateIndex, l, w.Parameter[stream])
			if err != nil {
				return StreamSequence{}, fmt.Errorf("sstream: stream %d parameter lookup: %w", stream, err)
			}

			params = append(params, mp)
			gvSwitch = append(gvSwitch, gvEnabled)
		}
	}

	var gvParams *htsvoice.ModelParameter

	if useGV && len(labels) > 0 {
		gv, err := vs.GetGV(stream, labels[0], w.GV[stream])
		if err != nil {
			return StreamSequence{}, fmt.Errorf("sstream: stream %d gv lookup: %w", stream, err)
		}

		gvParams = &gv
	}

	return StreamSequence{
		VectorLength: vlen,
		IsMSD:        isMSD,
		Windows:      vs.Windows(stream),
		Params:       params,
		GVSwitch:     gvSwitch,
		GVParams:     gvParams,
	}, nil
}
