// Package mlpg turns a state sequence's per-state (mean, variance) targets
// into smooth per-frame parameter trajectories: Maximum Likelihood
// Parameter Generation over each stream's static+dynamic window set,
// optionally re-conditioned against a trained Global Variance target.
package mlpg

import (
	"math"

	"github.com/example/jbonsai/internal/runtime/ops"
	"github.com/example/jbonsai/internal/sstream"
)

// NODATA marks a frame MLPG never generated a value for -- an unvoiced
// frame of an MSD (e.g. log F0) stream.
const NODATA = -1.0e10

// Options configures per-stream MSD gating and GV blending.
type Options struct {
	// MSDThreshold[i] gates stream i's MSD flag: a state is "voiced" when
	// its MSD weight exceeds this threshold.
	MSDThreshold []float64
	// GVWeight[i] scales stream i's GV target mean before reconditioning.
	GVWeight []float64
	// Workers caps the goroutines used for the per-dimension solve loop;
	// 0 or 1 runs sequentially.
	Workers int
}

// Stream is one acoustic stream's generated trajectory: Parameters[v] is
// dimension v's value at every frame (length TotalFrame), NODATA-filled at
// frames an MSD gate dropped.
type Stream struct {
	VectorLength int
	Parameters   [][]float64
}

// Generate runs parameter generation across every stream of seq.
func Generate(seq *sstream.StateSequence, opt Options) []Stream {
	out := make([]Stream, len(seq.Streams))

	for i, ss := range seq.Streams {
		out[i] = generateStream(seq, ss, i, opt)
	}

	return out
}

func generateStream(seq *sstream.StateSequence, ss sstream.StreamSequence, streamIndex int, opt Options) Stream {
	expandedMSD := expandPerStateFloat(seq.Durations, func(state int) float64 {
		if state < len(ss.Params) {
			return ss.Params[state].MSD
		}

		return 0
	})

	var threshold float64
	if streamIndex < len(opt.MSDThreshold) {
		threshold = opt.MSDThreshold[streamIndex]
	}

	var m mask
	if ss.IsMSD {
		flags := make([]bool, seq.TotalFrame)
		for i, v := range expandedMSD {
			flags[i] = v > threshold
		}

		m = newMask(flags)
	} else {
		m = allTrueMask(seq.TotalFrame)
	}

	left, right := m.boundaryDistances()

	frameGVSwitch := expandPerStateBool(seq.Durations, func(state int) bool {
		if state < len(ss.GVSwitch) {
			return ss.GVSwitch[state]
		}

		return false
	})

	nwin := ss.Windows.Size()
	vlen := ss.VectorLength

	result := make([][]float64, vlen)

	gvWeight := 1.0
	if streamIndex < len(opt.GVWeight) {
		gvWeight = opt.GVWeight[streamIndex]
	}

	ops.ParallelFor(vlen, opt.Workers, func(lo, hi int) {
		for vectorIndex := lo; vectorIndex < hi; vectorIndex++ {
			perWindow := make([][]framePair, nwin)

			for w := 0; w < nwin; w++ {
				win := ss.Windows.At(w)

				full := expandPerState(seq.Durations, func(state int) (float64, float64) {
					if state >= len(ss.Params) {
						return 0, 0
					}

					idx := w*vlen + vectorIndex
					p := ss.Params[state].Pairs[idx]

					return p.Mean, p.Vari
				})

				filtered := make([]framePair, 0, m.count())

				for frame, mv := range full {
					if !m.keep(frame) {
						continue
					}

					mean, vari := mv[0], mv[1]
					ivar := toIVar(vari)

					leftBoundary := left[frame] < win.LeftWidth()
					rightBoundary := right[frame] < win.RightWidth()

					if (leftBoundary || rightBoundary) && w != 0 {
						ivar = 0
					}

					filtered = append(filtered, framePair{Mean: mean, IVar: ivar})
				}

				perWindow[w] = filtered
			}

			mtx := newMatrix(ss.Windows, perWindow)

			var traj []float64

			if ss.GVParams != nil {
				gvSwitch := make([]bool, 0, m.count())

				for frame := range frameGVSwitch {
					if m.keep(frame) {
						gvSwitch = append(gvSwitch, frameGVSwitch[frame])
					}
				}

				before := mtx.clone()
				par := mtx.solve()

				gvMean := ss.GVParams.Pairs[vectorIndex].Mean * gvWeight
				gvVari := ss.GVParams.Pairs[vectorIndex].Vari

				traj = newGlobalVariance(before, par, gvSwitch).apply(gvMean, gvVari)
			} else {
				traj = mtx.solve()
			}

			result[vectorIndex] = m.fill(traj, NODATA)
		}
	})

	return Stream{VectorLength: vlen, Parameters: result}
}

// toIVar converts a variance into the inverse-variance weight the MLPG
// matrix build uses, matching the reference's handling of degenerate
// (effectively zero or effectively infinite) variances.
func toIVar(vari float64) float64 {
	switch {
	case math.Abs(vari) > 1e19:
		return 0
	case math.Abs(vari) < 1e-19:
		if vari < 0 {
			return -1e38
		}
		return 1e38
	default:
		return 1 / vari
	}
}

// expandPerState repeats fn(state)'s two return values across that state's
// duration frames, in state order, returning one [2]float64 pair per
// total-sequence frame.
func expandPerState(durations []int, fn func(state int) (float64, float64)) [][2]float64 {
	total := 0
	for _, d := range durations {
		total += d
	}

	out := make([][2]float64, 0, total)

	for state, d := range durations {
		m, v := fn(state)
		for k := 0; k < d; k++ {
			out = append(out, [2]float64{m, v})
		}
	}

	return out
}

func expandPerStateFloat(durations []int, fn func(state int) float64) []float64 {
	total := 0
	for _, d := range durations {
		total += d
	}

	out := make([]float64, 0, total)

	for state, d := range durations {
		v := fn(state)
		for k := 0; k < d; k++ {
			out = append(out, v)
		}
	}

	return out
}

func expandPerStateBool(durations []int, fn func(state int) bool) []bool {
	total := 0
	for _, d := range durations {
		total += d
	}

	out := make([]bool, 0, total)

	for state, d := range durations {
		v := fn(state)
		for k := 0; k < d; k++ {
			out = append(out, v)
		}
	}

	return out
}
