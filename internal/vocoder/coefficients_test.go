package vocoder

import (
	"math"
	"testing"
)

func TestCoefficientsB2mcMc2bRoundTrip(t *testing.T) {
	alpha := 0.35
	b := coefficients{buf: []float64{0.4, -0.2, 0.1, 0.05}, gamma: 0}

	mc := b.b2mc(alpha)
	back := mc.mc2b()

	for i := range b.buf {
		if math.Abs(back.buf[i]-b.buf[i]) > 1e-9 {
			t.Fatalf("mc2b(b2mc(b)) mismatch at %d: got %v want %v", i, back.buf[i], b.buf[i])
		}
	}
}

func TestCoefficientsB2enNonNegative(t *testing.T) {
	b := coefficients{buf: []float64{0.2, 0.1, -0.05, 0.02}, gamma: 0}

	en := b.b2en(0.3)
	if en < 0 {
		t.Fatalf("b2en returned negative energy: %v", en)
	}
}

func TestCoefficientsGnormIgnormRoundTrip(t *testing.T) {
	b := coefficients{buf: []float64{0.3, 1.0, -0.4}, gamma: -0.4}

	n := b.gnorm()
	back := n.ignorm()

	for i := range b.buf {
		if math.Abs(back.buf[i]-b.buf[i]) > 1e-9 {
			t.Fatalf("ignorm(gnorm(b)) mismatch at %d: got %v want %v", i, back.buf[i], b.buf[i])
		}
	}
}
