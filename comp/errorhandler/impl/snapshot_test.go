// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package errorhandlerimpl

import (
	"testing"

	errorhandlerdef "github.com/DataDog/rcf-core/comp/errorhandler/def"
)

func TestErrorHandler_SnapshotRoundTrip(t *testing.T) {
	cfg := errorhandlerdef.Config{ForecastHorizon: 2, ErrorHorizon: 5, BaseDimension: 1, Percentile: 0.25}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 6; i++ {
		if err := e.UpdateActuals([]float64{float64(i)}, []float64{0.1}); err != nil {
			t.Fatalf("UpdateActuals: %v", err)
		}
		if err := e.UpdateForecasts(rangeVec([]float64{float64(i), float64(i)}, []float64{float64(i) + 1, float64(i) + 1}, []float64{float64(i) - 1, float64(i) - 1})); err != nil {
			t.Fatalf("UpdateForecasts: %v", err)
		}
	}

	want := e.AugmentDescriptor()
	snap := e.Snapshot()

	restored, err := NewFromSnapshot(snap)
	if err != nil {
		t.Fatalf("NewFromSnapshot: %v", err)
	}
	got := restored.AugmentDescriptor()

	for pos := range want.ErrorMean {
		if want.ErrorMean[pos] != got.ErrorMean[pos] {
			t.Errorf("errorMean[%d]: want %v, got %v", pos, want.ErrorMean[pos], got.ErrorMean[pos])
		}
		if want.IntervalPrecision[pos] != got.IntervalPrecision[pos] {
			t.Errorf("intervalPrecision[%d]: want %v, got %v", pos, want.IntervalPrecision[pos], got.IntervalPrecision[pos])
		}
	}

	// The restored handler must keep tracking state correctly going forward.
	if err := restored.UpdateActuals([]float64{9}, []float64{0.2}); err != nil {
		t.Fatalf("UpdateActuals on restored: %v", err)
	}
	if err := restored.UpdateForecasts(rangeVec([]float64{9, 9}, []float64{10, 10}, []float64{8, 8})); err != nil {
		t.Fatalf("UpdateForecasts on restored: %v", err)
	}
}

func TestNewFromSnapshot_RejectsWrongRingLength(t *testing.T) {
	snap := errorhandlerdef.Snapshot{
		Config:         errorhandlerdef.Config{ForecastHorizon: 1, ErrorHorizon: 1, BaseDimension: 1, Percentile: 0.1},
		LastDeviations: []float64{0},
		PastForecasts:  nil,
		Actuals:        nil,
	}
	if _, err := NewFromSnapshot(snap); err == nil {
		t.Error("expected Misaligned error for a ring of the wrong length")
	}
}
