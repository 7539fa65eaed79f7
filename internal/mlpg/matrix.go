package mlpg

import "github.com/example/jbonsai/internal/htsvoice"

// framePair is one window's (mean, inverse-variance) contribution at a
// single frame.
type framePair struct {
	Mean float64
	IVar float64
}

// matrix is the banded WUW/WUM normal-equations system for one acoustic
// dimension's trajectory, solved by banded LDL factorization. Row t stores
// only the diagonal and the upper band: wuw[t][0] is the diagonal entry,
// wuw[t][j] (j>0) is entry (t, t+j); the lower triangle is implied by
// symmetry and never stored.
type matrix struct {
	length int // number of frames (unknowns)
	width  int // bandwidth: 1 + twice the widest window half-width
	wuw    [][]float64
	wum    []float64
}

// newMatrix builds the banded normal-equations system from a stream's
// windows and the per-window, per-frame (mean, inverse-variance) sequence.
// parameters[w] holds one entry per frame for window w; every entry must
// have the same length.
func newMatrix(windows htsvoice.Windows, parameters [][]framePair) *matrix {
	length := len(parameters[0])
	width := 2*windows.MaxWidth() + 1

	m := &matrix{
		length: length,
		width:  width,
		wuw:    make([][]float64, length),
		wum:    make([]float64, length),
	}

	for t := range m.wuw {
		m.wuw[t] = make([]float64, width)
	}

	for t := 0; t < length; t++ {
		for i := 0; i < windows.Size(); i++ {
			win := windows.At(i)

			for shift := -win.LeftWidth(); shift <= win.RightWidth(); shift++ {
				idx := t + shift
				if idx < 0 || idx >= length {
					continue
				}

				coef := win.Coefficient(-shift)
				if coef == 0 {
					continue
				}

				wu := coef * parameters[i][idx].IVar
				m.wum[t] += wu * parameters[i][idx].Mean

				for j := 0; j < width; j++ {
					if t+j >= length || j > win.RightWidth()+shift {
						break
					}

					coef2 := win.Coefficient(j - shift)
					if coef2 == 0 {
						continue
					}

					m.wuw[t][j] += wu * coef2
				}
			}
		}
	}

	return m
}

// clone deep-copies the matrix, used to keep a pre-factorization copy
// around for GV's HMM-objective gradient, which needs the original wuw/wum
// after solve() has destructively factorized them.
func (m *matrix) clone() *matrix {
	wuw := make([][]float64, len(m.wuw))
	for i, row := range m.wuw {
		wuw[i] = append([]float64(nil), row...)
	}

	return &matrix{
		length: m.length,
		width:  m.width,
		wuw:    wuw,
		wum:    append([]float64(nil), m.wum...),
	}
}

// solve factorizes the system in place and returns the generated
// trajectory.
func (m *matrix) solve() []float64 {
	m.ldlFactorization()
	return m.substitutions()
}

// ldlFactorization performs in-place banded LDL^T factorization. The band
// index sums below are bounded by width-1-i (not just width), since row t's
// storage only holds columns 0..width-1 and entry (t,t+i+j) must itself
// stay inside the band to be addressable.
func (m *matrix) ldlFactorization() {
	for t := 0; t < m.length; t++ {
		for i := 1; i < m.width && t-i >= 0; i++ {
			m.wuw[t][0] -= m.wuw[t-i][i] * m.wuw[t-i][i] * m.wuw[t-i][0]
		}

		for i := 1; i < m.width; i++ {
			for j := 1; j < m.width-i && t-j >= 0; j++ {
				m.wuw[t][i] -= m.wuw[t-j][j] * m.wuw[t-j][i+j] * m.wuw[t-j][0]
			}

			if t+i <= m.length-1 {
				m.wuw[t][i] /= m.wuw[t][0]
			}
		}
	}
}

func (m *matrix) substitutions() []float64 {
	g := make([]float64, m.length)

	for t := 0; t < m.length; t++ {
		g[t] = m.wum[t]

		for i := 1; i < m.width && t-i >= 0; i++ {
			g[t] -= m.wuw[t-i][i] * g[t-i]
		}
	}

	par := make([]float64, m.length)

	for t := m.length - 1; t >= 0; t-- {
		par[t] = g[t] / m.wuw[t][0]

		for i := 1; i < m.width && t+i <= m.length-1; i++ {
			par[t] -= m.wuw[t][i] * par[t+i]
		}
	}

	return par
}
