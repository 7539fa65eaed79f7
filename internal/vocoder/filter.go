package vocoder

// pade holds the Pade approximant coefficients used by the MLSA filter's
// all-pass recursion, six rows (orders 0-5) packed end to end:
// pade[pd*(pd+1)/2:] selects the row for approximation order pd.
var pade = [21]float64{
	1.00000000000,
	1.00000000000, 0.00000000000,
	1.00000000000, 0.00000000000, 0.00000000000,
	1.00000000000, 0.00000000000, 0.00000000000, 0.00000000000,
	1.00000000000, 0.49992730000, 0.10670050000, 0.01170221000, 0.00056562790,
	1.00000000000, 0.49993910000, 0.11070980000, 0.01369984000, 0.00095648530, 0.00003041721,
}

// melLogSpectrumApproximation is the stage-0 MLSA recursive digital filter:
// a Pade approximation of order pd to the mel all-pass transfer function,
// driven by the mc2b coefficients b for the current interpolated frame.
type melLogSpectrumApproximation struct {
	b     []float64
	alpha float64
	pd    int
	aa    float64
	ppade []float64
}

func newMLSA(b []float64, alpha float64, pd int) melLogSpectrumApproximation {
	return melLogSpectrumApproximation{
		b:     b,
		alpha: alpha,
		pd:    pd,
		aa:    1.0 - alpha*alpha,
		ppade: pade[pd*(pd+1)/2:],
	}
}

// df runs one sample through the cascade of the two Pade filter stages.
// d must have length pd*len(b) + 4*pd + 3.
func (f melLogSpectrumApproximation) df(x *float64, d []float64) {
	split := 2 * (f.pd + 1)
	f.df1(x, d[:split])
	f.df2(x, d[split:])
}

// df1 applies the low-order all-pass correction. d must have length
// 2*pd+2.
func (f melLogSpectrumApproximation) df1(x *float64, d []float64) {
	out := 0.0
	dd, pt := d[:f.pd+1], d[f.pd+1:]

	for i := f.pd; i >= 1; i-- {
		dd[i] = f.aa*pt[i-1] + f.alpha*dd[i]
		pt[i] = dd[i] * f.b[1]
		v := pt[i] * f.ppade[i]
		if i&1 != 0 {
			*x += v
		} else {
			*x -= v
		}
		out += v
	}

	pt[0] = *x
	*x += out
}

// df2 applies the high-order recursive stage. d must have length
// pd*len(b) + 2*pd + 1.
func (f melLogSpectrumApproximation) df2(x *float64, d []float64) {
	out := 0.0
	blen := len(f.b)
	split := f.pd * (blen + 1)
	dd, pt := d[:split], d[split:]

	for i := f.pd; i >= 1; i-- {
		pt[i] = f.fir(pt[i-1], dd[(i-1)*(blen+1):i*(blen+1)])
		v := pt[i] * f.ppade[i]
		if i&1 != 0 {
			*x += v
		} else {
			*x -= v
		}
		out += v
	}

	pt[0] = *x
	*x += out
}

// fir advances one first-order recursive section of the high-order Pade
// stage. d must have length len(b)+1.
func (f melLogSpectrumApproximation) fir(x float64, d []float64) float64 {
	blen := len(f.b)

	d[0] = x
	d[1] = f.aa*d[0] + f.alpha*d[1]
	for i := 2; i < blen; i++ {
		d[i] += f.alpha * (d[i+1] - d[i-1])
	}

	y := 0.0
	for i := 2; i < blen; i++ {
		y += d[i] * f.b[i]
	}

	for i := len(d) - 1; i >= 2; i-- {
		d[i] = d[i-1]
	}

	return y
}

// melGeneralizedLogSpectrumApproximation is the stage>0 MGLSA filter: n
// cascaded first-order recursive sections, one per stage.
type melGeneralizedLogSpectrumApproximation struct {
	b     []float64
	alpha float64
	n     int
	aa    float64
}

func newMGLSA(b []float64, alpha float64, n int) melGeneralizedLogSpectrumApproximation {
	return melGeneralizedLogSpectrumApproximation{b: b, alpha: alpha, n: n, aa: 1.0 - alpha*alpha}
}

// df cascades the n sub-filters. d must have length n*len(b).
func (f melGeneralizedLogSpectrumApproximation) df(x *float64, d []float64) {
	blen := len(f.b)
	for i := 0; i < f.n; i++ {
		f.dff(x, d[i*blen:(i+1)*blen])
	}
}

// dff applies one recursive section. d must have length len(b).
func (f melGeneralizedLogSpectrumApproximation) dff(x *float64, d []float64) {
	blen := len(f.b)

	y := d[0] * f.b[1]
	for i := 1; i < blen-1; i++ {
		d[i] += f.alpha * (d[i+1] - d[i-1])
		y += d[i] * f.b[i+1]
	}

	*x -= y

	for i := blen - 1; i >= 1; i-- {
		d[i] = d[i-1]
	}
	d[0] = f.alpha*d[0] + f.aa*(*x)
}

// d1Len returns the delay-line length required for the active filter at
// cLen (= order+1) coefficients: stage 0 uses the fixed pd=5 MLSA filter,
// stage>0 uses stage cascaded MGLSA sections.
func d1Len(stage, cLen int) int {
	if stage == 0 {
		return (cLen+4)*5 + 3
	}
	return cLen * stage
}
