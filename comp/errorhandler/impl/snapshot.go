// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package errorhandlerimpl

import (
	errorhandlerdef "github.com/DataDog/rcf-core/comp/errorhandler/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
	"github.com/DataDog/rcf-core/pkg/rcflog"
)

// Snapshot implements errorhandlerdef.Snapshotter, giving spec.md §4.3's
// serialization constructor a concrete Go shape: enough of the ring
// buffers and sequence counter to resume tracking without replaying
// every call that produced them.
func (e *ErrorHandler) Snapshot() errorhandlerdef.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	pastForecasts := make([]errorhandlerdef.RangeVector, len(e.pastForecasts))
	for i, rv := range e.pastForecasts {
		pastForecasts[i] = rv.Copy()
	}
	actuals := make([][]float64, len(e.actuals))
	for i, a := range e.actuals {
		actuals[i] = append([]float64(nil), a...)
	}

	return errorhandlerdef.Snapshot{
		Config: errorhandlerdef.Config{
			ForecastHorizon: e.forecastHorizon,
			ErrorHorizon:    e.errorHorizon,
			BaseDimension:   e.baseDimension,
			Percentile:      e.percentile,
		},
		SequenceIndex:  e.sequenceIndex.Load(),
		PastForecasts:  pastForecasts,
		Actuals:        actuals,
		LastDeviations: append([]float64(nil), e.lastDeviations...),
		Adders:         append([]float64(nil), e.adders...),
		Multipliers:    append([]float64(nil), e.multipliers...),
	}
}

// NewFromSnapshot reconstructs an ErrorHandler from a prior Snapshot and
// recomputes its derived error statistics from the restored ring
// buffers, so a restored handler behaves identically to one that had
// reached the same sequenceIndex through live calls.
func NewFromSnapshot(snap errorhandlerdef.Snapshot, opts ...Option) (*ErrorHandler, error) {
	e, err := New(snap.Config)
	if err != nil {
		return nil, rcferrors.Wrap(err, rcferrors.Misaligned, "reconstructing error handler config")
	}
	if len(snap.PastForecasts) != e.ringLength || len(snap.Actuals) != e.ringLength {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot ring length does not match config (want %d)", e.ringLength)
	}
	if len(snap.LastDeviations) != e.baseDimension {
		return nil, rcferrors.New(rcferrors.Misaligned, "snapshot lastDeviations length %d does not match baseDimension %d", len(snap.LastDeviations), e.baseDimension)
	}

	e.mu.Lock()
	for i, rv := range snap.PastForecasts {
		e.pastForecasts[i] = rv.Copy()
	}
	for i, a := range snap.Actuals {
		copy(e.actuals[i], a)
	}
	e.sequenceIndex.Store(snap.SequenceIndex)
	copy(e.lastDeviations, snap.LastDeviations)
	if len(snap.Adders) == e.baseDimension {
		copy(e.adders, snap.Adders)
	}
	if len(snap.Multipliers) == e.baseDimension {
		copy(e.multipliers, snap.Multipliers)
	}
	e.logger = rcflog.Nop()
	for _, opt := range opts {
		opt(e)
	}
	e.recomputeErrorsLocked()
	e.mu.Unlock()

	return e, nil
}
