package vocoder

import "math"

// lineSpectralPairs is a stage>0 (MGLSA) frame's LSP coefficient vector.
type lineSpectralPairs struct {
	buf        []float64
	alpha      float64
	useLogGain bool
	stage      int
	gamma      float64
}

func newLineSpectralPairs(lsp []float64, alpha float64, v *Vocoder) lineSpectralPairs {
	return lineSpectralPairs{
		buf:        append([]float64(nil), lsp...),
		alpha:      alpha,
		useLogGain: v.useLogGain,
		stage:      v.stage,
		gamma:      v.gamma,
	}
}

func (l lineSpectralPairs) len() int { return len(l.buf) }

// lsp2lpc converts line spectral pairs to linear-prediction cepstral
// coefficients (length len(lsp)+1).
func (l lineSpectralPairs) lsp2lpc() cepstrum {
	m := l.len()

	var mh1, mh2 int
	if m%2 == 0 {
		mh1, mh2 = m/2, m/2
	} else {
		mh1, mh2 = (m+1)/2, (m-1)/2
	}

	p := make([]float64, 0, mh1)
	for i := 0; i < m; i += 2 {
		p = append(p, -2.0*math.Cos(l.buf[i]))
	}

	q := make([]float64, 0, mh2)
	for i := 1; i < m; i += 2 {
		q = append(q, -2.0*math.Cos(l.buf[i]))
	}

	a0 := make([]float64, mh1+1)
	a1 := make([]float64, mh1+1)
	a2 := make([]float64, mh1+1)
	b0 := make([]float64, mh2+1)
	b1 := make([]float64, mh2+1)
	b2 := make([]float64, mh2+1)

	xff, xf := 0.0, 0.0

	out := cepstrum{buf: make([]float64, m+1), alpha: l.alpha, gamma: l.gamma}

	for k := 0; k <= m; k++ {
		xx := 0.0
		if k == 0 {
			xx = 1.0
		}

		if m%2 == 1 {
			a0[0] = xx
			b0[0] = xx - xff
			xff = xf
			xf = xx
		} else {
			a0[0] = xx + xf
			b0[0] = xx - xf
			xf = xx
		}

		for i := 0; i < mh1; i++ {
			a0[i+1] = a0[i] + p[i]*a1[i] + a2[i]
			a2[i] = a1[i]
			a1[i] = a0[i]
		}

		for i := 0; i < mh2; i++ {
			b0[i+1] = b0[i] + q[i]*b1[i] + b2[i]
			b2[i] = b1[i]
			b1[i] = b0[i]
		}

		if k > 0 {
			out.buf[k-1] = -0.5 * (a0[mh1] + b0[mh2])
		}
	}

	for i := m - 1; i >= 0; i-- {
		out.buf[i+1] = -out.buf[i]
	}

	out.buf[0] = 1.0

	return out
}

// lsp2mgc converts LSP coefficients to a mel-generalized cepstrum of the
// same order.
func (l lineSpectralPairs) lsp2mgc() cepstrum {
	lpc := l.lsp2lpc()

	if l.useLogGain {
		lpc.buf[0] = math.Exp(l.buf[0])
	} else {
		lpc.buf[0] = l.buf[0]
	}

	lpc = lpc.ignorm()

	for i := 1; i < lpc.len(); i++ {
		lpc.buf[i] *= -float64(l.stage)
	}

	return lpc.mgc2mgc(l.len()-1, l.alpha, l.gamma)
}

// lsp2en estimates frame energy from the LSP coefficients.
func (l lineSpectralPairs) lsp2en() float64 {
	mgc := l.lsp2mgc()

	var sum float64
	for _, v := range mgc.buf {
		sum += v * v
	}

	return sum
}

// postfilterLsp sharpens formants by moving each interior LSP line toward
// its neighbors by beta, then rescales the gain coefficient to preserve
// frame energy.
func (l *lineSpectralPairs) postfilterLsp(beta float64) {
	if beta <= 0 || l.len() <= 2 {
		return
	}

	en1 := l.lsp2en()
	buf := make([]float64, l.len())

	for i := 0; i < l.len(); i++ {
		if i > 1 && i < l.len()-1 {
			d1 := beta * (l.buf[i+1] - l.buf[i])
			d2 := beta * (l.buf[i] - l.buf[i-1])
			buf[i] = l.buf[i-1] + d2 +
				(d2*d2*((l.buf[i+1]-l.buf[i-1])-(d1+d2)))/((d2*d2)+(d1*d1))
		} else {
			buf[i] = l.buf[i]
		}
	}

	copy(l.buf, buf)

	en2 := l.lsp2en()
	if en1 != en2 {
		if l.useLogGain {
			l.buf[0] += 0.5 * math.Log(en1/en2)
		} else {
			l.buf[0] *= math.Sqrt(en1 / en2)
		}
	}
}

// checkLspStability nudges adjacent LSP lines apart until every gap clears
// a minimum separation, keeping the corresponding filter stable.
func (l *lineSpectralPairs) checkLspStability() {
	minGap := 0.25 * math.Pi / float64(l.len())
	last := l.len() - 1

	for iter := 0; iter < 4; iter++ {
		found := false

		for j := 1; j < last; j++ {
			tmp := l.buf[j+1] - l.buf[j]
			if tmp < minGap {
				l.buf[j] -= 0.5 * (minGap - tmp)
				l.buf[j+1] += 0.5 * (minGap - tmp)
				found = true
			}
		}

		if l.buf[1] < minGap {
			l.buf[1] = minGap
			found = true
		}

		if l.buf[last] > math.Pi-minGap {
			l.buf[last] = math.Pi - minGap
			found = true
		}

		if !found {
			break
		}
	}
}
