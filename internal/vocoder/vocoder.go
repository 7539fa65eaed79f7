// Package vocoder turns per-frame spectral and F0 parameters into PCM
// samples: a mel-cepstrum or LSP envelope driving an MLSA/MGLSA synthesis
// filter, excited by a pitch-synchronous pulse/noise source.
package vocoder

import "math"

const (
	minF0 = 20.0
	maxF0 = 20000.0
)

// MinLF0/MaxLF0 are the log-F0 clamp bounds shared with internal/engine's
// half-tone-shift adjustment (derived from minF0/maxF0 rather than copied
// as separate constants, so they always agree).
var (
	MinLF0 = math.Log(minF0)
	MaxLF0 = math.Log(maxF0)
)

var lf0Floor, lf0Ceiling = MinLF0, MaxLF0

// NODATA marks an unvoiced frame's F0 value, mirroring mlpg.NODATA.
const NODATA = -1.0e10

// Vocoder is a stateful per-voice synthesis filter: it holds the previous
// frame's coefficients and filter delay line so that Synthesize can
// linearly interpolate across each new frame's fperiod samples.
type Vocoder struct {
	stage      int
	gamma      float64
	useLogGain bool
	fperiod    int
	rate       int

	excitation *excitation

	c  coefficients
	d1 []float64
}

// NewVocoder builds a vocoder for an order-m spectral envelope. stage 0
// selects mel-cepstrum/MLSA synthesis; stage>0 selects LSP/MGLSA synthesis
// with gamma = -1/stage.
func NewVocoder(m, stage int, useLogGain bool, rate, fperiod int) *Vocoder {
	gamma := 0.0
	if stage != 0 {
		gamma = -1.0 / float64(stage)
	}

	cLen := m + 1

	return &Vocoder{
		stage:      stage,
		gamma:      gamma,
		useLogGain: useLogGain,
		fperiod:    fperiod,
		rate:       rate,
		c:          coefficients{buf: make([]float64, cLen), gamma: gamma},
		d1:         make([]float64, d1Len(stage, cLen)),
	}
}

// Synthesize renders one frame's worth of samples (fperiod of them) into
// rawdata, consuming lf0 (log F0, or NODATA for unvoiced) and the frame's
// spectral envelope (mel-cepstrum at stage 0, LSP otherwise). lpf is the
// low-pass excitation-spreading filter (length nlpf); alpha is the mel
// warping factor, beta the formant postfilter strength, volume the output
// gain. len(rawdata) must be >= fperiod.
func (v *Vocoder) Synthesize(lf0 float64, spectrum []float64, nlpf int, lpf []float64, alpha, beta, volume float64, rawdata []float64) {
	p := v.pitchPeriod(lf0)

	if v.excitation == nil {
		if v.stage == 0 {
			cep := newCepstrum(spectrum, alpha, v.gamma)
			v.c = cep.mc2b()
		} else {
			lsp := newLineSpectralPairs(spectrum, alpha, v)
			c := lsp.lsp2mgc().mc2b().gnorm()
			for i := 1; i < c.len(); i++ {
				c.buf[i] *= v.gamma
			}
			v.c = c
		}
	}

	target := v.targetCoefficients(spectrum, alpha, beta)

	cinc := make([]float64, len(target.buf))
	for i := range cinc {
		cinc[i] = (target.buf[i] - v.c.buf[i]) / float64(v.fperiod)
	}

	if v.excitation == nil {
		v.excitation = newExcitation(p, nlpf)
	}
	v.excitation.start(p, v.fperiod)

	for j := 0; j < v.fperiod; j++ {
		x := v.excitation.get(lpf)

		if v.stage == 0 {
			if x != 0.0 {
				x *= math.Exp(v.c.buf[0])
			}
			mlsa := newMLSA(v.c.buf, alpha, 5)
			mlsa.df(&x, v.d1)
		} else {
			x *= v.c.buf[0]
			mglsa := newMGLSA(v.c.buf, alpha, v.stage)
			mglsa.df(&x, v.d1)
		}

		x *= volume
		rawdata[j] = x

		for i := range v.c.buf {
			v.c.buf[i] += cinc[i]
		}
	}

	v.excitation.finish(p)
	v.c = target
}

// targetCoefficients builds this frame's postfiltered MLSA/MGLSA
// coefficients from its raw spectral envelope.
func (v *Vocoder) targetCoefficients(spectrum []float64, alpha, beta float64) coefficients {
	if v.stage == 0 {
		cep := newCepstrum(spectrum, alpha, v.gamma)
		cep.postfilterMCP(beta)
		return cep.mc2b()
	}

	lsp := newLineSpectralPairs(spectrum, alpha, v)
	lsp.postfilterLsp(beta)
	lsp.checkLspStability()

	c := lsp.lsp2mgc().mc2b().gnorm()
	for i := 1; i < c.len(); i++ {
		c.buf[i] *= v.gamma
	}

	return c
}

// pitchPeriod converts a log-F0 value into a pitch period in samples,
// clamping to [minF0, maxF0] and treating NODATA as unvoiced (period 0).
func (v *Vocoder) pitchPeriod(lf0 float64) float64 {
	switch {
	case lf0 == NODATA:
		return 0.0
	case lf0 <= lf0Floor:
		return float64(v.rate) / minF0
	case lf0 >= lf0Ceiling:
		return float64(v.rate) / maxF0
	default:
		return float64(v.rate) / math.Exp(lf0)
	}
}
