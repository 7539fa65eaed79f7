package vocoder

import (
	"math"
	"testing"
)

func TestCepstrumMc2bZeroAlphaIsIdentity(t *testing.T) {
	c := newCepstrum([]float64{1, 2, 3, 4}, 0, 0)
	b := c.mc2b()

	for i := range c.buf {
		if b.buf[i] != c.buf[i] {
			t.Fatalf("mc2b with alpha=0 should be identity, got %v want %v", b.buf, c.buf)
		}
	}
}

func TestCepstrumMc2bB2mcRoundTrip(t *testing.T) {
	alpha := 0.42
	c := newCepstrum([]float64{0.3, 1.1, -0.4, 0.2, 0.05}, alpha, 0)

	b := c.mc2b()
	back := b.b2mc(alpha)

	for i := range c.buf {
		if math.Abs(back.buf[i]-c.buf[i]) > 1e-9 {
			t.Fatalf("b2mc(mc2b(c)) mismatch at %d: got %v want %v", i, back.buf[i], c.buf[i])
		}
	}
}

func TestFreqtPreservesOrderZeroOnIdentityWarp(t *testing.T) {
	c := newCepstrum([]float64{1.0, 0.5, 0.25}, 0, 0)
	out := c.freqt(2, 0)

	if out.buf[0] != c.buf[0] {
		t.Fatalf("freqt with alpha=0 should pass c0 through unchanged, got %v want %v", out.buf[0], c.buf[0])
	}
}

func TestGc2gcIdentityOrderAndGammaIsNoop(t *testing.T) {
	c := newCepstrum([]float64{1.0, 0.4, -0.1}, 0, 0)
	out := c.gc2gc(2, 0)

	for i := range c.buf {
		if math.Abs(out.buf[i]-c.buf[i]) > 1e-9 {
			t.Fatalf("gc2gc with matching order/gamma should be near-identity at %d: got %v want %v", i, out.buf[i], c.buf[i])
		}
	}
}

func TestC2irFirstSampleIsExpC0(t *testing.T) {
	c := newCepstrum([]float64{0.2, 0.1, -0.05}, 0, 0)
	ir := c.c2ir(8)

	want := math.Exp(c.buf[0])
	if math.Abs(ir[0]-want) > 1e-12 {
		t.Fatalf("ir[0] = %v, want %v", ir[0], want)
	}
	if len(ir) != 8 {
		t.Fatalf("c2ir length = %d, want 8", len(ir))
	}
}

func TestPostfilterMCPNoopAtZeroBeta(t *testing.T) {
	c := newCepstrum([]float64{0.3, 0.2, 0.1, 0.05}, 0.3, 0)
	before := append([]float64(nil), c.buf...)

	c.postfilterMCP(0)

	for i := range before {
		if c.buf[i] != before[i] {
			t.Fatalf("postfilterMCP with beta<=0 should be a no-op, got %v want %v", c.buf, before)
		}
	}
}
