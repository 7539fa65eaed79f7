package htsvoice

import "github.com/example/jbonsai/internal/label"

// Pair is one (mean, variance) Gaussian component.
type Pair struct {
	Mean float64
	Vari float64
}

// ModelParameter is one PDF leaf: an ordered sequence of (mean, variance)
// pairs of length V*W (vector length times window count) plus an optional
// MSD weight.
type ModelParameter struct {
	Pairs  []Pair
	MSD    float64
	HasMSD bool
}

// NewModelParameter allocates a zeroed ModelParameter of the given size.
func NewModelParameter(size int, hasMSD bool) ModelParameter {
	return ModelParameter{Pairs: make([]Pair, size), HasMSD: hasMSD}
}

// ModelParameterFromLinear splits a flat [means..., variances..., msd?]
// slice (the PDF record layout spec.md §4.1 describes) into paired form.
func ModelParameterFromLinear(lin []float64, size int, hasMSD bool) ModelParameter {
	mp := NewModelParameter(size, hasMSD)
	for i := 0; i < size; i++ {
		mp.Pairs[i] = Pair{Mean: lin[i], Vari: lin[size+i]}
	}

	if hasMSD {
		mp.MSD = lin[2*size]
	}

	return mp
}

// AddAssign accumulates weight*rhs into mp in place, used to combine
// per-voice lookups under interpolation weights (spec.md §9).
func (mp *ModelParameter) AddAssign(weight float64, rhs ModelParameter) {
	for i := range mp.Pairs {
		mp.Pairs[i].Mean += weight * rhs.Pairs[i].Mean
		mp.Pairs[i].Vari += weight * rhs.Pairs[i].Vari
	}

	if mp.HasMSD {
		mp.MSD += weight * rhs.MSD
	}
}

// Model is an ordered list of Trees (one per HMM state) plus a parallel PDF
// table: PDF[treeArrayIndex][leafIndex] -> ModelParameter. treeArrayIndex is
// the index of the Tree within Trees whose State field matches the state
// being queried; GetIndex resolves State -> array index once.
type Model struct {
	Trees []Tree
	PDF   [][]ModelParameter
}

// GetIndex finds the tree for the given HMM state and searches it,
// returning (tree array index, leaf index).
func (m Model) GetIndex(state int, l label.Label) (int, int, error) {
	for i, t := range m.Trees {
		if t.State == state {
			leaf, err := t.Search(l)
			if err != nil {
				return 0, 0, err
			}

			return i, leaf, nil
		}
	}

	return 0, 0, ErrUnresolvedNode
}

// GetParameter returns the ModelParameter selected for the given state and
// label.
func (m Model) GetParameter(state int, l label.Label) (ModelParameter, error) {
	treeIdx, leafIdx, err := m.GetIndex(state, l)
	if err != nil {
		return ModelParameter{}, err
	}

	if treeIdx >= len(m.PDF) || leafIdx >= len(m.PDF[treeIdx]) {
		return ModelParameter{}, ErrInvalidBinary
	}

	return m.PDF[treeIdx][leafIdx], nil
}
