// Package duration turns per-state duration PDFs into frame counts, either
// from the unaligned/speed-scaled model distribution or from externally
// supplied phoneme alignment times.
package duration

import (
	"log/slog"
	"math"

	"github.com/example/jbonsai/internal/htsvoice"
	"github.com/example/jbonsai/internal/label"
)

// AlignedFrame is one label's alignment window converted to frame counts.
// HasEnd mirrors the reference's "-1.0 means unspecified" sentinel without
// using a magic float.
type AlignedFrame struct {
	Start, End       float64
	HasStart, HasEnd bool
}

// FramesFromLabels converts each label's 100ns-unit HTK times (when
// present) into frame counts at the voice's sampling rate/frame period,
// then fills a label's missing boundary from its neighbor's matching one
// -- a label with no end time borrows its successor's start time, and
// vice versa -- exactly as the reference's label-loading step does.
func FramesFromLabels(labels []label.Label, samplingFrequency, framePeriod int) []AlignedFrame {
	rate := float64(samplingFrequency) / (float64(framePeriod) * 1e7)

	frames := make([]AlignedFrame, len(labels))

	for i, l := range labels {
		if l.HasTimes {
			frames[i] = AlignedFrame{
				Start: rate * float64(l.Start), HasStart: true,
				End: rate * float64(l.End), HasEnd: true,
			}
		}
	}

	for i := range frames {
		if i+1 >= len(frames) {
			continue
		}

		if !frames[i].HasEnd && frames[i+1].HasStart {
			frames[i].End = frames[i+1].Start
			frames[i].HasEnd = true
		} else if frames[i].HasEnd && !frames[i+1].HasStart {
			frames[i+1].Start = frames[i].End
			frames[i+1].HasStart = true
		}
	}

	return frames
}

// Estimate computes per-state frame durations from the model's duration
// distribution for each label, optionally rescaled so the total frame
// count matches the original length divided by speed.
func Estimate(params []htsvoice.Pair, speed float64) []int {
	durations := estimateDuration(params, 0.0)

	if speed == 1.0 || speed == 0 {
		return durations
	}

	length := 0
	for _, d := range durations {
		length += d
	}

	return estimateDurationWithFrameLength(params, float64(length)/speed)
}

// EstimateWithAlignment computes per-state frame durations per label using
// externally supplied phoneme alignment windows, falling back to the
// unaligned model distribution (with a logged warning) for any label
// lacking a usable end frame -- not only the last one, unlike the
// reference implementation (see DESIGN.md Open Question 3).
func EstimateWithAlignment(nstate int, params []htsvoice.Pair, frames []AlignedFrame, logger *slog.Logger) []int {
	var duration []int

	nextTime := 0.0
	state := 0

	for i, f := range frames {
		stateParams := params[state : state+nstate]

		var curr []int
		if f.HasEnd && f.End >= 0 {
			curr = estimateDurationWithFrameLength(stateParams, f.End-nextTime)
		} else {
			if logger != nil {
				logger.Warn("duration: label missing end frame, falling back to unaligned estimate", "index", i)
			}

			curr = estimateDuration(stateParams, 0.0)
		}

		for _, d := range curr {
			nextTime += float64(d)
		}

		duration = append(duration, curr...)
		state += nstate
	}

	return duration
}

// estimateDuration rounds each state's mean+rho*variance to an integer
// frame count, clamped to a minimum of 1.
func estimateDuration(params []htsvoice.Pair, rho float64) []int {
	out := make([]int, len(params))
	for i, p := range params {
		out[i] = int(math.Max(math.Round(p.Mean+rho*p.Vari), 1.0))
	}

	return out
}

// estimateDurationWithFrameLength solves for the rho that makes the total
// duration match targetLength, then nudges individual state durations by
// +/-1 (whichever state's duration most cheaply restores the target rho)
// until the sum matches exactly.
func estimateDurationWithFrameLength(params []htsvoice.Pair, targetLengthF float64) []int {
	size := len(params)
	targetLength := int(math.Max(math.Round(targetLengthF), 1.0))

	if targetLength <= size {
		out := make([]int, size)
		for i := range out {
			out[i] = 1
		}

		return out
	}

	var meanSum, variSum float64
	for _, p := range params {
		meanSum += p.Mean
		variSum += p.Vari
	}

	rho := (float64(targetLength) - meanSum) / variSum

	durationInt := estimateDuration(params, rho)

	sum := 0
	for _, d := range durationInt {
		sum += d
	}

	cost := func(d int, p htsvoice.Pair) float64 {
		return math.Abs(rho - (float64(d)-p.Mean)/p.Vari)
	}

	for sum != targetLength {
		if targetLength > sum {
			best := -1
			bestCost := math.Inf(1)

			for i, d := range durationInt {
				c := cost(d+1, params[i])
				if c < bestCost {
					bestCost = c
					best = i
				}
			}

			durationInt[best]++
			sum++

			continue
		}

		best := -1
		bestCost := math.Inf(1)

		for i, d := range durationInt {
			if d <= 1 {
				continue
			}

			c := cost(d-1, params[i])
			if c < bestCost {
				bestCost = c
				best = i
			}
		}

		durationInt[best]--
		sum--
	}

	return durationInt
}
