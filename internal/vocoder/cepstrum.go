package vocoder

import "math"

// cepstrum is a mel-generalized cepstral coefficient vector under a given
// mel-warping factor (alpha) and generalization factor (gamma).
type cepstrum struct {
	buf   []float64
	alpha float64
	gamma float64
}

func newCepstrum(c []float64, alpha, gammaVal float64) cepstrum {
	return cepstrum{buf: append([]float64(nil), c...), alpha: alpha, gamma: gammaVal}
}

func (c cepstrum) len() int { return len(c.buf) }

// mc2b converts mel-cepstral coefficients to MLSA filter coefficients (the
// "b" representation), undoing the mel all-pass warp by alpha.
func (c cepstrum) mc2b() coefficients {
	out := coefficients{buf: append([]float64(nil), c.buf...), gamma: c.gamma}

	if c.alpha != 0 {
		last := len(c.buf) - 1
		out.buf[last] = c.buf[last]

		for i := last - 1; i >= 0; i-- {
			out.buf[i] = c.buf[i] - c.alpha*out.buf[i+1]
		}
	}

	return out
}

// postfilterMCP sharpens formants by boosting the mel-cepstral envelope's
// higher-order coefficients by beta, restoring overall frame energy
// afterward.
func (c *cepstrum) postfilterMCP(beta float64) {
	if beta <= 0 || len(c.buf) <= 2 {
		return
	}

	coef := c.mc2b()
	e1 := coef.b2en(c.alpha)

	coef.buf[1] -= beta * c.alpha * coef.buf[2]
	for k := 2; k < len(coef.buf); k++ {
		coef.buf[k] *= 1.0 + beta
	}

	e2 := coef.b2en(c.alpha)
	coef.buf[0] += math.Log(e1/e2) / 2.0

	*c = coef.b2mc(c.alpha)
}

// freqt performs a mel all-pass frequency transform from c's warping alpha
// to a new order m2 and warping alpha, the classic HTS "freqt" recursion.
func (c cepstrum) freqt(m2 int, alpha float64) cepstrum {
	aa := 1.0 - alpha*alpha

	out := cepstrum{buf: make([]float64, m2+1), alpha: c.alpha, gamma: c.gamma}
	f := make([]float64, len(out.buf))

	for i := len(c.buf) - 1; i >= 0; i-- {
		f[0] = out.buf[0]
		out.buf[0] = c.buf[i] + alpha*out.buf[0]

		if m2 >= 1 {
			f[1] = out.buf[1]
			out.buf[1] = aa*f[0] + alpha*out.buf[1]
		}

		for j := 2; j < len(out.buf); j++ {
			f[j] = out.buf[j]
			out.buf[j] = f[j-1] + alpha*(out.buf[j]-out.buf[j-1])
		}
	}

	return out
}

// gc2gc converts a generalized cepstrum from c's gamma to a new order m2
// and generalization factor gamma.
func (c cepstrum) gc2gc(m2 int, gammaVal float64) cepstrum {
	out := cepstrum{buf: make([]float64, m2+1), alpha: c.alpha, gamma: gammaVal}
	out.buf[0] = c.buf[0]

	for i := 1; i <= m2; i++ {
		var ss1, ss2 float64

		upper := i
		if len(c.buf) < upper {
			upper = len(c.buf)
		}

		for k := 1; k < upper; k++ {
			mk := i - k
			cc := c.buf[k] * out.buf[mk]
			ss1 += float64(mk) * cc
			ss2 += float64(k) * cc
		}

		if i < len(c.buf) {
			out.buf[i] = c.buf[i] + (out.gamma*ss2-c.gamma*ss1)/float64(i)
		} else {
			out.buf[i] = (out.gamma*ss2 - c.gamma*ss1) / float64(i)
		}
	}

	return out
}

// mgc2mgc converts a mel-generalized cepstrum to a new order, warping and
// generalization factor in one step.
func (c cepstrum) mgc2mgc(m2 int, alpha, gammaVal float64) cepstrum {
	if c.alpha == alpha {
		g := cepstrum{buf: gnorm(c.buf, c.gamma), alpha: c.alpha, gamma: c.gamma}
		g = g.gc2gc(m2, gammaVal)

		return cepstrum{buf: ignorm(g.buf, g.gamma), alpha: g.alpha, gamma: g.gamma}
	}

	warp := (alpha - c.alpha) / (1.0 - c.alpha*alpha)
	ft := c.freqt(m2, warp)
	g := cepstrum{buf: gnorm(ft.buf, ft.gamma), alpha: ft.alpha, gamma: ft.gamma}
	g = g.gc2gc(m2, gammaVal)

	return cepstrum{buf: ignorm(g.buf, g.gamma), alpha: g.alpha, gamma: g.gamma}
}

// c2ir recovers the first length samples of the impulse response
// corresponding to a log-spectral cepstrum c.
func (c cepstrum) c2ir(length int) []float64 {
	ir := make([]float64, length)
	ir[0] = math.Exp(c.buf[0])

	for n := 1; n < length; n++ {
		var d float64

		upper := n + 1
		if len(c.buf) < upper {
			upper = len(c.buf)
		}

		for k := 1; k < upper; k++ {
			d += float64(k) * c.buf[k] * ir[n-k]
		}

		ir[n] = d / float64(n)
	}

	return ir
}

func (c cepstrum) gnorm() cepstrum {
	return cepstrum{buf: gnorm(c.buf, c.gamma), alpha: c.alpha, gamma: c.gamma}
}

func (c cepstrum) ignorm() cepstrum {
	return cepstrum{buf: ignorm(c.buf, c.gamma), alpha: c.alpha, gamma: c.gamma}
}
