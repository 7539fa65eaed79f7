package vocoder

import "math"

// excitation generates the per-sample pulse/noise drive signal for the
// MLSA/MGLSA filter: a pitch-synchronous pulse train for voiced frames,
// white noise for unvoiced ones, spread across a low-pass-filtered ring
// buffer when one is configured.
type excitation struct {
	pitchOfCurrPoint float64
	pitchCounter     float64
	pitchIncPerPoint float64
	ring             ringBuffer
	gauss            bool
	mseq             mseq
	random           random
}

func newExcitation(pitch float64, nlpf int) *excitation {
	return &excitation{
		pitchOfCurrPoint: pitch,
		pitchCounter:     pitch,
		ring:             newRingBuffer(nlpf),
		gauss:            true,
		mseq:             newMseq(),
		random:           newRandom(),
	}
}

func (e *excitation) start(pitch float64, fperiod int) {
	if e.pitchOfCurrPoint != 0.0 && pitch != 0.0 {
		e.pitchIncPerPoint = (pitch - e.pitchOfCurrPoint) / float64(fperiod)
	} else {
		e.pitchIncPerPoint = 0.0
		e.pitchOfCurrPoint = pitch
		e.pitchCounter = pitch
	}
}

func (e *excitation) whiteNoise() float64 {
	if e.gauss {
		return e.random.nrandom()
	}
	return float64(e.mseq.next())
}

func (e *excitation) unvoicedFrame(noise float64) {
	center := (e.ring.len() - 1) / 2
	*e.ring.atOffset(center) += noise
}

// voicedFrame requires len(lpf) == e.ring.len().
func (e *excitation) voicedFrame(noise, pulse float64, lpf []float64) {
	center := (e.ring.len() - 1) / 2

	if noise != 0.0 {
		for i := 0; i < e.ring.len(); i++ {
			if i == center {
				*e.ring.atOffset(i) += noise * (1.0 - lpf[i])
			} else {
				*e.ring.atOffset(i) += noise * (0.0 - lpf[i])
			}
		}
	}

	if pulse != 0.0 {
		for i := 0; i < e.ring.len(); i++ {
			*e.ring.atOffset(i) += pulse * lpf[i]
		}
	}
}

// get produces the next excitation sample; lpf must have length e.ring.len().
func (e *excitation) get(lpf []float64) float64 {
	if e.ring.len() > 0 {
		noise := e.whiteNoise()

		if e.pitchOfCurrPoint == 0.0 {
			e.unvoicedFrame(noise)
		} else {
			e.pitchCounter++
			var pulse float64
			if e.pitchCounter >= e.pitchOfCurrPoint {
				e.pitchCounter -= e.pitchOfCurrPoint
				pulse = math.Sqrt(e.pitchOfCurrPoint)
			}
			e.voicedFrame(noise, pulse, lpf)
			e.pitchOfCurrPoint += e.pitchIncPerPoint
		}

		x := *e.ring.at()
		*e.ring.at() = 0.0
		e.ring.advance()
		return x
	}

	if e.pitchOfCurrPoint == 0.0 {
		return e.whiteNoise()
	}

	e.pitchCounter++
	var x float64
	if e.pitchCounter >= e.pitchOfCurrPoint {
		e.pitchCounter -= e.pitchOfCurrPoint
		x = math.Sqrt(e.pitchOfCurrPoint)
	}
	e.pitchOfCurrPoint += e.pitchIncPerPoint

	return x
}

func (e *excitation) finish(pitch float64) {
	e.pitchOfCurrPoint = pitch
}

// ringBuffer is a fixed-size circular buffer of float64 samples used to
// spread a low-pass-filtered pulse or noise impulse across neighboring
// output samples.
type ringBuffer struct {
	buf   []float64
	index int
}

func newRingBuffer(size int) ringBuffer {
	return ringBuffer{buf: make([]float64, size)}
}

func (r *ringBuffer) at() *float64 { return &r.buf[r.index] }

func (r *ringBuffer) atOffset(i int) *float64 {
	return &r.buf[(r.index+i)%len(r.buf)]
}

func (r *ringBuffer) advance() {
	r.index++
	if r.index >= len(r.buf) {
		r.index = 0
	}
}

func (r *ringBuffer) len() int { return len(r.buf) }

// mseq is a maximal-length linear-feedback shift register producing a
// deterministic pseudo-random +-1 sequence (the non-Gaussian noise source
// option), seeded identically on every synthesis run.
type mseq struct {
	x uint32
}

func newMseq() mseq { return mseq{x: 0x55555555} }

func (m *mseq) next() int32 {
	m.x >>= 1

	x0 := int32(-1)
	if m.x&0x00000001 != 0 {
		x0 = 1
	}
	x28 := int32(-1)
	if m.x&0x10000000 != 0 {
		x28 = 1
	}

	if x0+x28 != 0 {
		m.x &= 0x7fffffff
	} else {
		m.x |= 0x80000000
	}

	return x0
}

// random is a glibc-rand()-style linear congruential generator driving a
// Box-Muller transform for Gaussian white noise, matching hts_engine's
// nrandom() bit for bit.
type random struct {
	sw   bool
	r1   float64
	r2   float64
	s    float64
	next uint64
}

func newRandom() random { return random{next: 1} }

func (r *random) nrandom() float64 {
	if r.sw {
		r.sw = false
		return r.r2 * r.s
	}

	r.sw = true
	for {
		r.r1 = 2.0*r.rnd() - 1.0
		r.r2 = 2.0*r.rnd() - 1.0
		r.s = r.r1*r.r1 + r.r2*r.r2
		if !(r.s > 1.0 || r.s == 0.0) {
			break
		}
	}
	r.s = math.Sqrt(-2.0 * math.Log(r.s) / r.s)

	return r.r1 * r.s
}

func (r *random) rnd() float64 {
	r.next = r.next*1103515245 + 12345
	v := (r.next / 65536) % 32768
	return float64(v) / 32767.0
}
