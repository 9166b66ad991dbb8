// Package crf estimates a Constant Rate Factor from a measured bitrate and
// builds the filenames used to tag media files with the suggested value.
//
// The estimator is a heuristic: CRF is assumed to move roughly with the
// logarithm of the bitrate ratio, anchored so that a file already at the ideal
// bitrate maps to CRF 20 and every doubling of bitrate adds 6.
package crf

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Public constants (alphabetical)
const (
	// AnchorCRF is the CRF assumed to reproduce the ideal bitrate.
	AnchorCRF = 20.0

	// DefaultClampMax is the upper CRF bound accepted by x264/x265.
	DefaultClampMax = 51.0

	// DefaultClampMin is the lower CRF bound accepted by x264/x265.
	DefaultClampMin = 0.0

	// DefaultPrecision is the number of decimals kept when rounding is off.
	DefaultPrecision = 1

	// Sensitivity is the CRF change per doubling of the bitrate ratio.
	Sensitivity = 6.0
)

// Public variables (alphabetical)

// ErrInvalidInput is returned when the estimator receives a bitrate that is
// zero, negative or not finite.
var ErrInvalidInput = errors.New("crf: invalid input")

// Public types (alphabetical)

// Policy controls how a raw estimate is turned into the value written into a
// filename.
type Policy struct {
	// Round selects integer output. When false the value keeps Precision decimals.
	Round bool

	// Precision is the number of decimals kept when Round is false.
	Precision int

	// Clamp restricts the result to [Min, Max].
	Clamp bool

	// Min is the lowest CRF produced when Clamp is set.
	Min float64

	// Max is the highest CRF produced when Clamp is set.
	Max float64
}

// Public functions (alphabetical)

// DefaultPolicy returns rounding to integers and clamping to [0, 51].
func DefaultPolicy() Policy {
	return Policy{
		Round:     true,
		Precision: DefaultPrecision,
		Clamp:     true,
		Min:       DefaultClampMin,
		Max:       DefaultClampMax,
	}
}

// Estimate computes 20 + log2(input/ideal) * 6.
//
// Both bitrates must be strictly positive and finite, otherwise an error
// wrapping ErrInvalidInput is returned. With round set the result is rounded
// to the nearest integer (halves away from zero). The result is never clamped.
func Estimate(inputKbps, idealKbps float64, round bool) (float64, error) {
	if !validBitrate(inputKbps) {
		return 0, fmt.Errorf("%w: input bitrate %v must be positive", ErrInvalidInput, inputKbps)
	}
	if !validBitrate(idealKbps) {
		return 0, fmt.Errorf("%w: ideal bitrate %v must be positive", ErrInvalidInput, idealKbps)
	}

	value := AnchorCRF + math.Log2(inputKbps/idealKbps)*Sensitivity
	if round {
		return math.Round(value), nil
	}
	return value, nil
}

// Public methods (alphabetical)

// Apply estimates the CRF for the given bitrates and applies rounding,
// precision and clamping according to the policy.
func (p Policy) Apply(inputKbps, idealKbps float64) (float64, error) {
	value, err := Estimate(inputKbps, idealKbps, p.Round)
	if err != nil {
		return 0, err
	}
	if !p.Round {
		value = roundTo(value, p.Precision)
	}
	if p.Clamp {
		value = math.Max(p.Min, math.Min(p.Max, value))
	}
	return value, nil
}

// Format renders a CRF value as an integer when rounding is enabled and with
// fixed precision otherwise.
func (p Policy) Format(value float64) string {
	decimals := p.precision()
	if p.Round {
		decimals = 0
	}
	value = roundTo(value, decimals)
	if value == 0 {
		// Avoid printing "-0".
		value = 0
	}
	return strconv.FormatFloat(value, 'f', decimals, 64)
}

// Validate reports a policy whose clamp bounds or precision cannot be used.
func (p Policy) Validate() error {
	if p.Precision < 0 || p.Precision > 6 {
		return fmt.Errorf("crf: precision %d out of range [0, 6]", p.Precision)
	}
	if p.Clamp && p.Min > p.Max {
		return fmt.Errorf("crf: clamp min %v greater than clamp max %v", p.Min, p.Max)
	}
	return nil
}

// Private methods (alphabetical)

func (p Policy) precision() int {
	if p.Precision < 0 {
		return 0
	}
	return p.Precision
}

// Private functions (alphabetical)

func roundTo(value float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(value)
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(value*scale) / scale
}

func validBitrate(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
