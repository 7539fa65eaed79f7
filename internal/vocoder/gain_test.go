package vocoder

import (
	"math"
	"testing"
)

func TestGnormIgnormRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		buf   []float64
		gamma float64
	}{
		{name: "log gain (gamma 0)", buf: []float64{0.5, 1.0, -0.3, 0.2}, gamma: 0},
		{name: "generalized gain", buf: []float64{0.1, 0.4, -0.2, 0.05}, gamma: -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normed := gnorm(tt.buf, tt.gamma)
			back := ignorm(normed, tt.gamma)

			for i := range tt.buf {
				if math.Abs(back[i]-tt.buf[i]) > 1e-9 {
					t.Fatalf("round trip mismatch at %d: got %v want %v", i, back[i], tt.buf[i])
				}
			}
		})
	}
}

func TestGnormZeroGammaMatchesExpLog(t *testing.T) {
	buf := []float64{0.25, 1.0, 2.0}
	out := gnorm(buf, 0)

	if want := math.Exp(buf[0]); math.Abs(out[0]-want) > 1e-12 {
		t.Fatalf("out[0] = %v, want %v", out[0], want)
	}
	if out[1] != buf[1] || out[2] != buf[2] {
		t.Fatalf("tail should be unchanged for gamma 0, got %v", out)
	}
}
