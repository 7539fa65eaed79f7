package htsvoice

import "errors"

// Error taxonomy from spec.md §7, implemented as sentinels testable with
// errors.Is, each wrapped with context via fmt.Errorf("%w: detail").
var (
	ErrEmptyVoice        = errors.New("htsvoice: no voice paths given")
	ErrMetadataMismatch  = errors.New("htsvoice: voice metadata mismatch")
	ErrInvalidHeader     = errors.New("htsvoice: invalid header")
	ErrInvalidBinary     = errors.New("htsvoice: invalid binary payload")
	ErrUnresolvedNode    = errors.New("htsvoice: unresolved tree reference")
	ErrGvRangeMissing    = errors.New("htsvoice: gv byte range missing")
	ErrUnknownStreamType = errors.New("htsvoice: unknown stream type")
)
