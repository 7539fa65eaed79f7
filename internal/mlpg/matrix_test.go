package mlpg

import (
	"math"
	"testing"

	"github.com/example/jbonsai/internal/htsvoice"
)

func TestMatrix_StaticWindow_SolvesToMeans(t *testing.T) {
	win := htsvoice.NewWindows([]htsvoice.Window{htsvoice.NewWindow([]float64{1})})

	parameters := [][]framePair{
		{{Mean: 1.0, IVar: 4.0}, {Mean: 2.0, IVar: 4.0}, {Mean: 3.0, IVar: 4.0}},
	}

	m := newMatrix(win, parameters)
	par := m.solve()

	want := []float64{1.0, 2.0, 3.0}
	for i, w := range want {
		if math.Abs(par[i]-w) > 1e-9 {
			t.Fatalf("frame %d: expected %.6f, got %.6f", i, w, par[i])
		}
	}
}

func TestMatrix_ZeroIVar_DoesNotPanic(t *testing.T) {
	win := htsvoice.NewWindows([]htsvoice.Window{htsvoice.NewWindow([]float64{1})})

	parameters := [][]framePair{
		{{Mean: 0, IVar: 0}, {Mean: 0, IVar: 0}},
	}

	m := newMatrix(win, parameters)
	par := m.solve()

	if len(par) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(par))
	}
}

func TestMatrix_Clone_IsIndependent(t *testing.T) {
	win := htsvoice.NewWindows([]htsvoice.Window{
		htsvoice.NewWindow([]float64{1}),
		htsvoice.NewWindow([]float64{-0.5, 0, 0.5}),
	})

	parameters := [][]framePair{
		{{Mean: 1.0, IVar: 2.0}, {Mean: 2.0, IVar: 2.0}, {Mean: 3.0, IVar: 2.0}},
		{{Mean: 0, IVar: 1.0}, {Mean: 0, IVar: 1.0}, {Mean: 0, IVar: 1.0}},
	}

	m := newMatrix(win, parameters)
	clone := m.clone()

	m.solve()

	if clone.wuw[2][0] == m.wuw[2][0] {
		t.Fatalf("expected clone's wuw to predate factorization")
	}
}

func TestMask_BoundaryDistancesAndFill(t *testing.T) {
	m := newMask([]bool{false, true, true, true, false, true})

	left, right := m.boundaryDistances()

	wantLeft := []int{0, 0, 1, 2, 0, 0}
	wantRight := []int{0, 2, 1, 0, 0, 0}

	for i := range wantLeft {
		if left[i] != wantLeft[i] || right[i] != wantRight[i] {
			t.Fatalf("frame %d: left=%d right=%d, want left=%d right=%d", i, left[i], right[i], wantLeft[i], wantRight[i])
		}
	}

	filled := m.fill([]float64{10, 11, 12, 13}, NODATA)
	want := []float64{NODATA, 10, 11, 12, NODATA, 13}

	for i := range want {
		if filled[i] != want[i] {
			t.Fatalf("frame %d: expected %.1f, got %.1f", i, want[i], filled[i])
		}
	}
}
