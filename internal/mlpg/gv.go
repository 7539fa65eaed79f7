package mlpg

import "math"

const (
	gvMaxIteration = 5
	stepInit       = 0.1
	stepDec        = 0.5
	stepInc        = 1.2
	gvWeight1      = 1.0
	gvWeight2      = 1.0
)

// globalVariance re-conditions a raw MLPG trajectory (par) to match a
// target Global Variance mean/variance, balancing that objective against
// the original per-frame HMM likelihood captured by mtx.
type globalVariance struct {
	par      []float64
	gvSwitch []bool
	gvLength int
	mtx      *matrix
}

// newGlobalVariance takes ownership of par (the matrix's already-solved
// trajectory) and mtx (the same matrix, pre-factorization state still
// needed for the HMM-objective gradient).
func newGlobalVariance(mtx *matrix, par []float64, gvSwitch []bool) *globalVariance {
	n := 0

	for _, sw := range gvSwitch {
		if sw {
			n++
		}
	}

	return &globalVariance{par: par, gvSwitch: gvSwitch, gvLength: n, mtx: mtx}
}

// apply runs the bounded gradient-descent loop and returns the
// GV-conditioned trajectory.
func (g *globalVariance) apply(gvMean, gvVari float64) []float64 {
	g.parmgen(gvMean, gvVari)
	return g.par
}

func (g *globalVariance) calcGV() (mean, vari float64) {
	sum := 0.0

	for i, p := range g.par {
		if g.gvSwitch[i] {
			sum += p
		}
	}

	mean = sum / float64(g.gvLength)

	sq := 0.0

	for i, p := range g.par {
		if g.gvSwitch[i] {
			d := p - mean
			sq += d * d
		}
	}

	vari = sq / float64(g.gvLength)

	return mean, vari
}

// convGV rescales par linearly so its GV mean matches gvMean before the
// iterative refinement begins.
func (g *globalVariance) convGV(gvMean float64) {
	mean, vari := g.calcGV()
	ratio := math.Sqrt(gvMean / vari)

	for i := range g.par {
		if g.gvSwitch[i] {
			g.par[i] = ratio*(g.par[i]-mean) + mean
		}
	}
}

// calcHMMObjDerivative returns the current HMM-likelihood objective value
// and its gradient with respect to every frame of par.
func (g *globalVariance) calcHMMObjDerivative() (hmmobj float64, grad []float64) {
	length := len(g.gvSwitch)
	grad = make([]float64, length)

	for t := 0; t < length; t++ {
		grad[t] = g.mtx.wuw[t][0] * g.par[t]

		for i := 1; i < g.mtx.width; i++ {
			if t+i < length {
				grad[t] += g.mtx.wuw[t][i] * g.par[t+i]
			}

			if t-i >= 0 {
				grad[t] += g.mtx.wuw[t-i][i] * g.par[t-i]
			}
		}
	}

	w := 1.0 / float64(g.mtx.width*length)

	for t := 0; t < length; t++ {
		hmmobj += gvWeight1 * w * g.par[t] * (g.mtx.wum[t] - 0.5*grad[t])
	}

	return hmmobj, grad
}

// nextStep applies one Newton-like update to par, balancing the HMM
// objective gradient against the GV-matching objective gradient.
func (g *globalVariance) nextStep(grad []float64, step, mean, vari, gvMean, gvVari float64) {
	length := len(g.gvSwitch)
	w := 1.0 / float64(g.mtx.width*length)
	dv := -2.0 * gvVari * (vari - gvMean) / float64(length)

	for t := 0; t < length; t++ {
		h := -gvWeight1*w*g.mtx.wuw[t][0] -
			gvWeight2*2.0/float64(length*length)*
				(float64(length-1)*gvVari*(vari-gvMean)+2.0*gvVari*(g.par[t]-mean)*(g.par[t]-mean))

		var nextGrad float64
		if g.gvSwitch[t] {
			nextGrad = 1.0 / h * (gvWeight1*w*(-grad[t]+g.mtx.wum[t]) + gvWeight2*dv*(g.par[t]-mean))
		} else {
			nextGrad = 1.0 / h * (gvWeight1 * w * (-grad[t] + g.mtx.wum[t]))
		}

		g.par[t] += step * nextGrad
	}
}

// parmgen runs the bounded gradient-descent GV refinement: an initial
// linear rescale (convGV) followed by up to gvMaxIteration-1 Newton steps,
// with the step size shrinking whenever an iteration makes the combined
// objective worse and growing whenever it improves.
//
// The step-size adaptation sign differs from a literal read of the
// reference (see DESIGN.md): there the improving/worsening branches share
// an identical condition, so the step never grows. Here growth and decay
// are each tied to their own comparison.
func (g *globalVariance) parmgen(gvMean, gvVari float64) {
	if g.gvLength == 0 || gvMaxIteration == 0 {
		return
	}

	step := stepInit
	prev := 0.0

	g.convGV(gvMean)

	for i := 1; i < gvMaxIteration; i++ {
		mean, vari := g.calcGV()

		gvobj := -0.5 * gvWeight2 * vari * gvVari * (vari - 2.0*gvMean)
		hmmobj, grad := g.calcHMMObjDerivative()
		obj := -(hmmobj + gvobj)

		if i > 1 {
			if obj > prev {
				step *= stepDec
			} else {
				step *= stepInc
			}
		}

		g.nextStep(grad, step, mean, vari, gvMean, gvVari)

		prev = obj
	}
}
