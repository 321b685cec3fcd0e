// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package errorhandlerimpl

import (
	"math"
	"testing"

	errorhandlerdef "github.com/DataDog/rcf-core/comp/errorhandler/def"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func rangeVec(values, upper, lower []float64) errorhandlerdef.RangeVector {
	return errorhandlerdef.RangeVector{Values: values, Upper: upper, Lower: lower}
}

// TestInterpolatedMedianZeroBias is spec.md §8 scenario 5.
func TestInterpolatedMedianZeroBias(t *testing.T) {
	sorted := []float64{-0.5, -0.1, 0.2, 0.6}
	if got := interpolatedMedian(sorted); got != 0 {
		t.Errorf("expected zero-biased median 0, got %v", got)
	}
}

func TestInterpolatedMedianOddLength(t *testing.T) {
	sorted := []float64{1, 2, 3}
	if got := interpolatedMedian(sorted); got != 2 {
		t.Errorf("expected median 2, got %v", got)
	}
}

// TestErrorHandler_CalibrationWarmUp is spec.md §8 scenario 4.
func TestErrorHandler_CalibrationWarmUp(t *testing.T) {
	e, err := New(errorhandlerdef.Config{ForecastHorizon: 3, ErrorHorizon: 10, BaseDimension: 1, Percentile: 0.25})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	forecast := rangeVec([]float64{10, 20, 30}, []float64{11, 21, 31}, []float64{9, 19, 29})
	for i := 0; i < 2; i++ {
		if err := e.UpdateActuals([]float64{5}, []float64{0.2}); err != nil {
			t.Fatalf("UpdateActuals %d: %v", i, err)
		}
		if err := e.UpdateForecasts(forecast); err != nil {
			t.Fatalf("UpdateForecasts %d: %v", i, err)
		}
	}

	input := rangeVec([]float64{10, 20, 30}, []float64{11, 21, 31}, []float64{9, 19, 29})
	out, err := e.Calibrate(errorhandlerdef.SIMPLE, input)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	wantWiden := widenFactor * 0.2
	if !approxEqual(out.Upper[0], 11+wantWiden) {
		t.Errorf("leadtime0 upper: want %v, got %v", 11+wantWiden, out.Upper[0])
	}
	if !approxEqual(out.Lower[0], 9-wantWiden) {
		t.Errorf("leadtime0 lower: want %v, got %v", 9-wantWiden, out.Lower[0])
	}
	if out.Values[0] != 10 {
		t.Errorf("leadtime0 values should be untouched by the widen path, got %v", out.Values[0])
	}

	// Leadtimes 1 and 2 have no verified history yet after only two
	// steps and are left unchanged.
	for _, pos := range []int{1, 2} {
		if out.Values[pos] != input.Values[pos] || out.Upper[pos] != input.Upper[pos] || out.Lower[pos] != input.Lower[pos] {
			t.Errorf("leadtime at pos %d should be unchanged, got values=%v upper=%v lower=%v", pos, out.Values[pos], out.Upper[pos], out.Lower[pos])
		}
	}

	// Feed 8 more pairs (10 total); leadtime0 now has enough history for
	// the learned error distribution to apply instead of the fallback
	// widen.
	for i := 0; i < 8; i++ {
		if err := e.UpdateActuals([]float64{5}, []float64{0.2}); err != nil {
			t.Fatalf("UpdateActuals warm %d: %v", i, err)
		}
		if err := e.UpdateForecasts(forecast); err != nil {
			t.Fatalf("UpdateForecasts warm %d: %v", i, err)
		}
	}

	out2, err := e.Calibrate(errorhandlerdef.SIMPLE, input)
	if err != nil {
		t.Fatalf("Calibrate after warm-up: %v", err)
	}
	descriptor := e.AugmentDescriptor()
	wantValues := input.Values[0] + descriptor.ObservedErrorDistribution.Values[0]
	if !approxEqual(out2.Values[0], wantValues) {
		t.Errorf("leadtime0 calibrated value: want %v, got %v", wantValues, out2.Values[0])
	}
	wantUpper := math.Max(wantValues, input.Upper[0]+descriptor.ObservedErrorDistribution.Upper[0])
	if !approxEqual(out2.Upper[0], wantUpper) {
		t.Errorf("leadtime0 calibrated upper: want %v, got %v", wantUpper, out2.Upper[0])
	}
	wantLower := math.Min(wantValues, input.Lower[0]+descriptor.ObservedErrorDistribution.Lower[0])
	if !approxEqual(out2.Lower[0], wantLower) {
		t.Errorf("leadtime0 calibrated lower: want %v, got %v", wantLower, out2.Lower[0])
	}
}

// TestErrorHandler_ErrorMeanAndIntervalPrecisionInvariant is spec.md §8's
// "after N >= errorHorizon+forecastHorizon steps" invariant.
func TestErrorHandler_ErrorMeanAndIntervalPrecisionInvariant(t *testing.T) {
	e, err := New(errorhandlerdef.Config{ForecastHorizon: 1, ErrorHorizon: 5, BaseDimension: 1, Percentile: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	const cf = 100.0
	const delta = 0.4
	forecast := rangeVec([]float64{cf}, []float64{cf + 1}, []float64{cf - 1})

	steps := 6 // errorHorizon + forecastHorizon
	for i := 0; i < steps; i++ {
		if err := e.UpdateActuals([]float64{cf + delta}, []float64{0}); err != nil {
			t.Fatalf("UpdateActuals %d: %v", i, err)
		}
		if err := e.UpdateForecasts(forecast); err != nil {
			t.Fatalf("UpdateForecasts %d: %v", i, err)
		}
	}

	descriptor := e.AugmentDescriptor()
	if !approxEqual(descriptor.ErrorMean[0], delta) {
		t.Errorf("errorMean: want %v, got %v", delta, descriptor.ErrorMean[0])
	}
	if descriptor.IntervalPrecision[0] < 0 || descriptor.IntervalPrecision[0] > 1 {
		t.Errorf("intervalPrecision out of [0,1]: got %v", descriptor.IntervalPrecision[0])
	}
	if !approxEqual(descriptor.IntervalPrecision[0], 1.0) {
		t.Errorf("expected every actual within bounds, got intervalPrecision %v", descriptor.IntervalPrecision[0])
	}
}

func TestErrorHandler_RecomputeIsIdempotent(t *testing.T) {
	e, err := New(errorhandlerdef.Config{ForecastHorizon: 2, ErrorHorizon: 6, BaseDimension: 2, Percentile: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	forecast := rangeVec([]float64{1, 2, 3, 4}, []float64{2, 3, 4, 5}, []float64{0, 1, 2, 3})
	for i := 0; i < 8; i++ {
		if err := e.UpdateActuals([]float64{1.5, 2.5}, []float64{0.1, 0.1}); err != nil {
			t.Fatalf("UpdateActuals %d: %v", i, err)
		}
		if err := e.UpdateForecasts(forecast); err != nil {
			t.Fatalf("UpdateForecasts %d: %v", i, err)
		}
	}

	before := e.AugmentDescriptor()
	e.mu.Lock()
	e.recomputeErrorsLocked()
	e.mu.Unlock()
	after := e.AugmentDescriptor()

	for i := range before.ErrorMean {
		if before.ErrorMean[i] != after.ErrorMean[i] {
			t.Errorf("errorMean[%d] changed across idempotent recompute: %v -> %v", i, before.ErrorMean[i], after.ErrorMean[i])
		}
		if before.IntervalPrecision[i] != after.IntervalPrecision[i] {
			t.Errorf("intervalPrecision[%d] changed across idempotent recompute: %v -> %v", i, before.IntervalPrecision[i], after.IntervalPrecision[i])
		}
	}
}

func TestErrorHandler_RejectsMismatchedLengths(t *testing.T) {
	e, err := New(errorhandlerdef.Config{ForecastHorizon: 2, ErrorHorizon: 4, BaseDimension: 2, Percentile: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.UpdateActuals([]float64{1}, []float64{1, 1}); err == nil {
		t.Error("expected error for wrong-length input")
	}
	if err := e.UpdateForecasts(rangeVec([]float64{1, 2}, []float64{1, 2}, []float64{1, 2})); err == nil {
		t.Error("expected error for wrong-length range vector")
	}
}

func TestErrorHandler_UpdateForecastsBeforeActualsFails(t *testing.T) {
	e, err := New(errorhandlerdef.Config{ForecastHorizon: 1, ErrorHorizon: 2, BaseDimension: 1, Percentile: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.UpdateForecasts(rangeVec([]float64{1}, []float64{2}, []float64{0})); err == nil {
		t.Error("expected error calling UpdateForecasts before any UpdateActuals")
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	cases := []errorhandlerdef.Config{
		{ForecastHorizon: 0, ErrorHorizon: 1, BaseDimension: 1, Percentile: 0.2},
		{ForecastHorizon: 1, ErrorHorizon: 0, BaseDimension: 1, Percentile: 0.2},
		{ForecastHorizon: 1, ErrorHorizon: 2000, BaseDimension: 1, Percentile: 0.2},
		{ForecastHorizon: 1, ErrorHorizon: 1, BaseDimension: 1, Percentile: 0.5},
		{ForecastHorizon: 1, ErrorHorizon: 1, BaseDimension: 0, Percentile: 0.2},
	}
	for i, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, c)
		}
	}
}
