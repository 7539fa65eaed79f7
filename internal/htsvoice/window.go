package htsvoice

// Window is a fixed odd-length FIR coefficient vector with index 0 (the
// center) aligned to the current frame. Left and right widths are
// symmetric: length = len(coefficients)/2 on each side.
//
// This follows the C-derived hts_engine_API semantics (HTS_Window_load:
// length = fsize/2; l_width = -length; r_width = length), not the literal
// formula in the reference's safe Rust port (model/window.rs), whose
// right_width() == width()-left_width() contradicts that same package's
// own embedded unit test for a 3-coefficient window. See DESIGN.md Open
// Question 2.
type Window struct {
	coefficients []float64
	length       int
}

// NewWindow wraps a raw coefficient vector (odd length expected).
func NewWindow(coefficients []float64) Window {
	return Window{
		coefficients: coefficients,
		length:       len(coefficients) / 2,
	}
}

// Size is the number of coefficients.
func (w Window) Size() int { return len(w.coefficients) }

// LeftWidth is the number of valid negative shifts.
func (w Window) LeftWidth() int { return w.length }

// RightWidth is the number of valid positive shifts.
func (w Window) RightWidth() int { return w.length }

// Coefficient returns the coefficient at the given shift from center
// (shift in [-LeftWidth, RightWidth]); out-of-range shifts return 0.
func (w Window) Coefficient(shift int) float64 {
	idx := shift + w.length
	if idx < 0 || idx >= len(w.coefficients) {
		return 0
	}

	return w.coefficients[idx]
}

// IsDynamic reports whether this window computes a delta (non-identity)
// feature; by convention window 0 is static.
func (w Window) IsDynamic() bool { return w.length > 0 }

// Windows is the ordered set of windows for one stream. Window 0 is the
// static (identity) window by convention.
type Windows struct {
	windows []Window
}

// NewWindows builds a Windows set.
func NewWindows(windows []Window) Windows { return Windows{windows: windows} }

// Size returns the number of windows.
func (w Windows) Size() int { return len(w.windows) }

// At returns the window at index i.
func (w Windows) At(i int) Window { return w.windows[i] }

// MaxWidth returns the widest left/right width across all windows, used to
// size the banded MLPG matrix (bandwidth = 2*MaxWidth + 1).
func (w Windows) MaxWidth() int {
	max := 0
	for _, win := range w.windows {
		if win.LeftWidth() > max {
			max = win.LeftWidth()
		}

		if win.RightWidth() > max {
			max = win.RightWidth()
		}
	}

	return max
}
