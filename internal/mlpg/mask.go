package mlpg

// mask is a per-frame boolean flag selecting which synthesized frames carry
// real data. MSD streams (e.g. log F0) drop unvoiced frames from the MLPG
// solve entirely and re-insert a sentinel at their positions afterward;
// non-MSD streams use an all-true mask.
type mask struct {
	flags []bool
}

func newMask(flags []bool) mask {
	return mask{flags: flags}
}

func allTrueMask(n int) mask {
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = true
	}

	return mask{flags: flags}
}

// boundaryDistances returns, for every frame, its distances to the left
// (left) and right (right) edges of its own contiguous true/false run: 0
// for a frame sitting right at that run boundary, increasing toward the
// run's interior. Used to zero a
// dynamic window's contribution when it would otherwise reach across a
// voiced/unvoiced transition.
func (m mask) boundaryDistances() (left, right []int) {
	n := len(m.flags)
	left = make([]int, n)
	right = make([]int, n)

	for i := 0; i < n; i++ {
		if i == 0 || m.flags[i] != m.flags[i-1] {
			left[i] = 0
		} else {
			left[i] = left[i-1] + 1
		}
	}

	for i := n - 1; i >= 0; i-- {
		if i == n-1 || m.flags[i] != m.flags[i+1] {
			right[i] = 0
		} else {
			right[i] = right[i+1] + 1
		}
	}

	return left, right
}

// keep reports whether frame i survives the mask.
func (m mask) keep(i int) bool { return m.flags[i] }

// count returns the number of true frames.
func (m mask) count() int {
	n := 0

	for _, f := range m.flags {
		if f {
			n++
		}
	}

	return n
}

// fill expands a masked (true-frames-only) sequence back to full frame
// length, writing nodata at every false position.
func (m mask) fill(values []float64, nodata float64) []float64 {
	out := make([]float64, len(m.flags))
	vi := 0

	for i, flag := range m.flags {
		if flag {
			out[i] = values[vi]
			vi++
		} else {
			out[i] = nodata
		}
	}

	return out
}
