// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package errorhandlerdef declares the error handler / forecast
// calibrator's external contract (spec.md §4.3, §6) and the small
// value-semantics helpers it shares with callers.
package errorhandlerdef

// RangeVector is a triple of equal-length float arrays (values, upper,
// lower), spec.md §2's leaf representation of a forecast or error
// distribution at a set of leadtime*coordinate positions.
type RangeVector struct {
	Values []float64
	Upper  []float64
	Lower  []float64
}

// NewRangeVector allocates a RangeVector of the given length with all
// three arrays zeroed.
func NewRangeVector(n int) RangeVector {
	return RangeVector{Values: make([]float64, n), Upper: make([]float64, n), Lower: make([]float64, n)}
}

// Copy returns a deep copy, used anywhere a caller must not observe
// subsequent in-place mutation of internal state.
func (r RangeVector) Copy() RangeVector {
	out := RangeVector{
		Values: make([]float64, len(r.Values)),
		Upper:  make([]float64, len(r.Upper)),
		Lower:  make([]float64, len(r.Lower)),
	}
	copy(out.Values, r.Values)
	copy(out.Upper, r.Upper)
	copy(out.Lower, r.Lower)
	return out
}

// DiVector is a pair (high, low) of equal-length float arrays used for
// signed-direction accumulators such as errorRMSE (spec.md §2).
type DiVector struct {
	High []float64
	Low  []float64
}

// NewDiVector allocates a zeroed DiVector of length n.
func NewDiVector(n int) DiVector {
	return DiVector{High: make([]float64, n), Low: make([]float64, n)}
}

// Copy returns a deep copy of the vector.
func (d DiVector) Copy() DiVector {
	out := DiVector{High: make([]float64, len(d.High)), Low: make([]float64, len(d.Low))}
	copy(out.High, d.High)
	copy(out.Low, d.Low)
	return out
}

// Weighted pairs a value with an accumulated weight, the leaf spec.md §2
// uses for weighted samples and centroids.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// CalibrationMethod selects how empirical error quantiles widen a new
// forecast's bounds (spec.md §4.3).
type CalibrationMethod int

const (
	// NONE leaves the forecast range unchanged.
	NONE CalibrationMethod = iota
	// SIMPLE shifts values by the error distribution's median and grows
	// upper/lower bounds from the forecast's original upper/lower bounds.
	SIMPLE
	// MINIMAL shifts values the same way but grows upper/lower bounds
	// from the original, unshifted forecast values.
	MINIMAL
)

func (m CalibrationMethod) String() string {
	switch m {
	case NONE:
		return "NONE"
	case SIMPLE:
		return "SIMPLE"
	case MINIMAL:
		return "MINIMAL"
	default:
		return "UNKNOWN"
	}
}

// ForecastDescriptor is the data-only record spec.md §6 defines: the
// derived statistics an ErrorHandler exposes to a caller wanting to
// augment a forecast with error context, without taking a dependency on
// the handler itself.
type ForecastDescriptor struct {
	ErrorMean               []float64
	ErrorRMSE               DiVector
	ObservedErrorDistribution RangeVector
	IntervalPrecision       []float64
}

// ErrorHandler is the contract spec.md §6 calls out: a ring-buffer
// tracker of past forecasts vs. actuals that derives per-leadtime,
// per-coordinate error statistics and uses them to calibrate new
// forecast ranges.
type ErrorHandler interface {
	// UpdateActuals records input as the realized actual for the step
	// that just elapsed and stashes deviations as a calibration
	// fallback, advancing sequenceIndex. Must be called before
	// UpdateForecasts for the same step (spec.md §5).
	UpdateActuals(input []float64, deviations []float64) error

	// UpdateForecasts records rangeVector as the forecast issued for the
	// upcoming leadtimes.
	UpdateForecasts(rangeVector RangeVector) error

	// AugmentDescriptor fills a ForecastDescriptor with a copy of the
	// handler's current derived statistics.
	AugmentDescriptor() ForecastDescriptor

	// Calibrate widens/shifts a copy of rangeVector according to method
	// and the handler's current error distribution and returns that
	// calibrated copy; rangeVector itself is not modified.
	Calibrate(method CalibrationMethod, rangeVector RangeVector) (RangeVector, error)
}

// Config carries the construction parameters of spec.md §4.3.
type Config struct {
	ForecastHorizon int
	ErrorHorizon    int
	BaseDimension   int
	Percentile      float64
}

// MaxErrorHorizon is spec.md §3's MAX_ERROR_HORIZON bound.
const MaxErrorHorizon = 1024

// RingLength is errorHorizon + forecastHorizon, the length L of both
// ring buffers (spec.md §4.3).
func (c Config) RingLength() int { return c.ErrorHorizon + c.ForecastHorizon }

// Snapshot is the serialization-constructor shape spec.md §4.3 describes
// only at the semantic level: enough of an ErrorHandler's ring buffers
// and sequence counter to resume tracking exactly where a prior instance
// left off, without replaying every UpdateActuals/UpdateForecasts call
// that produced them.
type Snapshot struct {
	Config          Config
	SequenceIndex   int64
	PastForecasts   []RangeVector
	Actuals         [][]float64
	LastDeviations  []float64
	Adders          []float64
	Multipliers     []float64
}

// Snapshotter is implemented by error handler constructions that support
// standalone save/restore. The forest state mapper does not use it.
type Snapshotter interface {
	Snapshot() Snapshot
}
