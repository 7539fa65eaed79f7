package config

import (
	"fmt"
	"strings"
)

// Interpolation weight modes across the voices of a VoiceSet.
const (
	InterpolationNone   = "none"
	InterpolationEqual  = "equal"
	InterpolationCustom = "custom"
)

// NormalizeInterpolation validates and lower-cases an interpolation mode,
// defaulting an empty string to InterpolationNone (single voice, weight 1).
func NormalizeInterpolation(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	if mode == "" {
		mode = InterpolationNone
	}

	switch mode {
	case InterpolationNone, InterpolationEqual, InterpolationCustom:
		return mode, nil
	default:
		return "", fmt.Errorf(
			"invalid interpolation mode %q (expected %s|%s|%s)",
			raw, InterpolationNone, InterpolationEqual, InterpolationCustom,
		)
	}
}
