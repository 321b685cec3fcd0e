// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package errorhandlerimpl implements the ring-buffer forecast/actual
// tracker and calibrator described in spec.md §4.3.
package errorhandlerimpl

import (
	"math"
	"sort"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	errorhandlerdef "github.com/DataDog/rcf-core/comp/errorhandler/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
	"github.com/DataDog/rcf-core/pkg/rcflog"
	"github.com/DataDog/rcf-core/pkg/rcftelemetry"
)

// widenFactor is the 1.3x fallback widening spec.md §4.3 applies to
// calibrate() when too few samples exist for a quantile estimate.
const widenFactor = 1.3

// ErrorHandler tracks past forecasts against realized actuals in two
// parallel ring buffers and derives the statistics spec.md §4.3
// describes. Like PointStore, it assumes a single ingest caller; see
// spec.md §5.
type ErrorHandler struct {
	mu sync.Mutex

	forecastHorizon int
	errorHorizon    int
	baseDimension   int
	percentile      float64
	ringLength      int

	sequenceIndex atomic.Int64

	pastForecasts []errorhandlerdef.RangeVector
	actuals       [][]float64

	errorMean         []float64
	errorRMSE         errorhandlerdef.DiVector
	errorDistribution errorhandlerdef.RangeVector
	intervalPrecision []float64
	lens              []int
	lastDeviations    []float64

	// adders and multipliers are the reserved, currently-inert
	// per-coordinate calibration channel spec.md §9 Open Questions (b)
	// calls out: multipliers start at 1, adders at 0, and neither is
	// consulted by calibrate until a multiplicative scheme is specified.
	adders      []float64
	multipliers []float64

	logger  *zap.Logger
	metrics *rcftelemetry.Metrics
}

// Option customizes construction beyond errorhandlerdef.Config.
type Option func(*ErrorHandler)

// WithLogger injects a logger; nil is treated as a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *ErrorHandler) { e.logger = rcflog.OrNop(logger) }
}

// WithMetrics attaches telemetry; nil leaves metrics as a no-op.
func WithMetrics(m *rcftelemetry.Metrics) Option {
	return func(e *ErrorHandler) { e.metrics = m }
}

// New constructs an ErrorHandler per spec.md §4.3's construction
// parameters.
func New(cfg errorhandlerdef.Config, opts ...Option) (*ErrorHandler, error) {
	if cfg.ForecastHorizon <= 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "forecastHorizon must be positive, got %d", cfg.ForecastHorizon)
	}
	if cfg.BaseDimension <= 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "baseDimension must be positive, got %d", cfg.BaseDimension)
	}
	if cfg.ErrorHorizon < cfg.ForecastHorizon {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "errorHorizon (%d) must be >= forecastHorizon (%d)", cfg.ErrorHorizon, cfg.ForecastHorizon)
	}
	if cfg.ErrorHorizon > errorhandlerdef.MaxErrorHorizon {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "errorHorizon (%d) exceeds MAX_ERROR_HORIZON (%d)", cfg.ErrorHorizon, errorhandlerdef.MaxErrorHorizon)
	}
	if cfg.Percentile <= 0.01 || cfg.Percentile >= 0.49 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "percentile must be in (0.01, 0.49), got %v", cfg.Percentile)
	}

	slots := cfg.RingLength()
	width := cfg.ForecastHorizon * cfg.BaseDimension

	pastForecasts := make([]errorhandlerdef.RangeVector, slots)
	actuals := make([][]float64, slots)
	for i := range pastForecasts {
		pastForecasts[i] = errorhandlerdef.NewRangeVector(width)
		actuals[i] = make([]float64, cfg.BaseDimension)
	}

	multipliers := make([]float64, cfg.BaseDimension)
	for i := range multipliers {
		multipliers[i] = 1
	}

	e := &ErrorHandler{
		forecastHorizon:   cfg.ForecastHorizon,
		errorHorizon:      cfg.ErrorHorizon,
		baseDimension:     cfg.BaseDimension,
		percentile:        cfg.Percentile,
		ringLength:        slots,
		pastForecasts:     pastForecasts,
		actuals:           actuals,
		errorMean:         make([]float64, width),
		errorRMSE:         errorhandlerdef.NewDiVector(width),
		errorDistribution: errorhandlerdef.NewRangeVector(width),
		intervalPrecision: make([]float64, width),
		lens:              make([]int, width),
		lastDeviations:    make([]float64, cfg.BaseDimension),
		adders:            make([]float64, cfg.BaseDimension),
		multipliers:       multipliers,
		logger:            rcflog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func mod(a, l int64) int {
	m := a % l
	if m < 0 {
		m += l
	}
	return int(m)
}

// UpdateActuals implements spec.md §4.3: records input as the realized
// actual for the step that just elapsed, stashes deviations for
// fallback calibration, advances sequenceIndex, and recomputes the
// derived error statistics.
func (e *ErrorHandler) UpdateActuals(input []float64, deviations []float64) error {
	if len(input) != e.baseDimension {
		return rcferrors.New(rcferrors.InvalidArgument, "expected baseDimension-length input (%d), got %d", e.baseDimension, len(input))
	}
	if len(deviations) != e.baseDimension {
		return rcferrors.New(rcferrors.InvalidArgument, "expected baseDimension-length deviations (%d), got %d", e.baseDimension, len(deviations))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.sequenceIndex.Load()
	if seq > 0 {
		ridx := mod(seq-1, int64(e.ringLength))
		copy(e.actuals[ridx], input)
	}
	copy(e.lastDeviations, deviations)
	e.sequenceIndex.Store(seq + 1)
	e.recomputeErrorsLocked()
	return nil
}

// UpdateForecasts implements spec.md §4.3. It must be called after
// UpdateActuals for the same step.
func (e *ErrorHandler) UpdateForecasts(rangeVector errorhandlerdef.RangeVector) error {
	width := e.forecastHorizon * e.baseDimension
	if len(rangeVector.Values) != width || len(rangeVector.Upper) != width || len(rangeVector.Lower) != width {
		return rcferrors.New(rcferrors.InvalidArgument, "expected forecastHorizon*baseDimension-length range vector (%d)", width)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.sequenceIndex.Load()
	if seq == 0 {
		return rcferrors.New(rcferrors.IllegalState, "updateForecasts called before the first updateActuals")
	}
	ridx := mod(seq-1, int64(e.ringLength))
	e.pastForecasts[ridx] = rangeVector.Copy()
	return nil
}

// recomputeErrorsLocked implements spec.md §4.3's recomputeErrors. The
// caller must hold e.mu.
func (e *ErrorHandler) recomputeErrorsLocked() {
	seq := e.sequenceIndex.Load()
	// inputIdx is the absolute step whose (actual, forecast) pair was
	// most recently completed: sequenceIndex was already incremented by
	// the caller, and the pair it just wrote landed at
	// (sequenceIndex-2) mod L (see updateActuals/updateForecasts).
	inputIdx := seq - 2
	L := int64(e.ringLength)

	for i := 0; i < e.forecastHorizon; i++ {
		for j := 0; j < e.baseDimension; j++ {
			pos := i*e.baseDimension + j

			length := seq - int64(i) - 1
			if length < 0 {
				// spec.md §9 Open Questions (a): clamp rather than go negative.
				length = 0
			}
			windowLen := int(length)
			if windowLen > e.errorHorizon {
				windowLen = e.errorHorizon
			}
			e.lens[pos] = windowLen

			if windowLen <= 0 {
				e.errorMean[pos] = 0
				e.errorRMSE.High[pos] = 0
				e.errorRMSE.Low[pos] = 0
				e.errorDistribution.Values[pos] = 0
				e.errorDistribution.Upper[pos] = 0
				e.errorDistribution.Lower[pos] = 0
				e.intervalPrecision[pos] = 0
				continue
			}

			var posSum, negSum, posSq, negSq float64
			var posCount, hits int
			errs := make([]float64, windowLen)
			for k := 0; k < windowLen; k++ {
				ridx := mod(inputIdx-int64(i)-int64(k), L)
				actual := e.actuals[ridx][j]
				forecast := e.pastForecasts[ridx].Values[pos]
				err := actual - forecast
				errs[k] = err
				if err >= 0 {
					posSum += err
					posSq += err * err
					posCount++
				} else {
					negSum += err
					negSq += err * err
				}
				if e.pastForecasts[ridx].Lower[pos] <= actual && actual <= e.pastForecasts[ridx].Upper[pos] {
					hits++
				}
			}

			e.errorMean[pos] = (posSum + negSum) / float64(windowLen)
			if posCount > 0 {
				e.errorRMSE.High[pos] = math.Sqrt(posSq / float64(posCount))
			} else {
				e.errorRMSE.High[pos] = 0
			}
			negCount := windowLen - posCount
			if negCount > 0 {
				e.errorRMSE.Low[pos] = -math.Sqrt(negSq / float64(negCount))
			} else {
				e.errorRMSE.Low[pos] = 0
			}

			if float64(windowLen)*e.percentile >= 1.0 {
				sorted := append([]float64(nil), errs...)
				sort.Float64s(sorted)
				rank := float64(windowLen) * e.percentile
				e.errorDistribution.Values[pos] = interpolatedMedian(sorted)
				e.errorDistribution.Upper[pos] = interpolatedUpperRank(sorted, rank)
				e.errorDistribution.Lower[pos] = interpolatedLowerRank(sorted, rank)
			}

			e.intervalPrecision[pos] = float64(hits) / float64(windowLen)
		}
	}
	e.metrics.IncCalibrations()
	for pos, v := range e.intervalPrecision {
		e.metrics.SetIntervalPrecision(pos, v)
	}
}

// interpolatedMedian is spec.md §4.3's zero-biased median: when the two
// middle values of an even-length sorted sample straddle zero, the
// median is exactly 0 rather than their average.
func interpolatedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	lo, hi := sorted[n/2-1], sorted[n/2]
	if (lo <= 0 && hi >= 0) || (lo >= 0 && hi <= 0) {
		return 0
	}
	return (lo + hi) / 2
}

// interpolatedLowerRank implements spec.md §4.3's "Quantile
// interpolation": rank = floor(r), frac = r - rank, returns
// a[rank-1] + frac*(a[rank]-a[rank-1]).
func interpolatedLowerRank(a []float64, r float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}
	rank := int(math.Floor(r))
	frac := r - float64(rank)
	if rank < 1 {
		rank = 1
	}
	if rank > n-1 {
		rank = n - 1
	}
	return a[rank-1] + frac*(a[rank]-a[rank-1])
}

// interpolatedUpperRank is interpolatedLowerRank's symmetric rank
// counted from the high end of the sorted sample.
func interpolatedUpperRank(a []float64, r float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}
	rank := int(math.Floor(r))
	frac := r - float64(rank)
	if rank < 1 {
		rank = 1
	}
	if rank > n-1 {
		rank = n - 1
	}
	hi := n - rank
	lo := n - rank - 1
	return a[hi] - frac*(a[hi]-a[lo])
}

// AugmentDescriptor implements spec.md §6's ForecastDescriptor accessor.
func (e *ErrorHandler) AugmentDescriptor() errorhandlerdef.ForecastDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return errorhandlerdef.ForecastDescriptor{
		ErrorMean:                 append([]float64(nil), e.errorMean...),
		ErrorRMSE:                 e.errorRMSE.Copy(),
		ObservedErrorDistribution: e.errorDistribution.Copy(),
		IntervalPrecision:         append([]float64(nil), e.intervalPrecision...),
	}
}

// Calibrate implements spec.md §4.3's calibrate(method, rangeVector).
func (e *ErrorHandler) Calibrate(method errorhandlerdef.CalibrationMethod, rangeVector errorhandlerdef.RangeVector) (errorhandlerdef.RangeVector, error) {
	width := e.forecastHorizon * e.baseDimension
	if len(rangeVector.Values) != width || len(rangeVector.Upper) != width || len(rangeVector.Lower) != width {
		return errorhandlerdef.RangeVector{}, rcferrors.New(rcferrors.InvalidArgument, "expected forecastHorizon*baseDimension-length range vector (%d)", width)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := rangeVector.Copy()
	for i := 0; i < e.forecastHorizon; i++ {
		for j := 0; j < e.baseDimension; j++ {
			pos := i*e.baseDimension + j
			if e.lens[pos] <= 0 {
				continue
			}
			if float64(e.lens[pos])*e.percentile < 1.0 {
				widen := widenFactor * e.lastDeviations[j]
				out.Upper[pos] = rangeVector.Upper[pos] + widen
				out.Lower[pos] = rangeVector.Lower[pos] - widen
				continue
			}
			switch method {
			case errorhandlerdef.NONE:
				// no change
			case errorhandlerdef.SIMPLE:
				newValue := rangeVector.Values[pos] + e.errorDistribution.Values[pos]
				out.Values[pos] = newValue
				out.Upper[pos] = math.Max(newValue, rangeVector.Upper[pos]+e.errorDistribution.Upper[pos])
				out.Lower[pos] = math.Min(newValue, rangeVector.Lower[pos]+e.errorDistribution.Lower[pos])
			case errorhandlerdef.MINIMAL:
				newValue := rangeVector.Values[pos] + e.errorDistribution.Values[pos]
				out.Values[pos] = newValue
				out.Upper[pos] = math.Max(newValue, rangeVector.Values[pos]+e.errorDistribution.Upper[pos])
				out.Lower[pos] = math.Min(newValue, rangeVector.Values[pos]+e.errorDistribution.Lower[pos])
			}
		}
	}
	return out, nil
}
