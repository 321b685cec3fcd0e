// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package pointstoreimpl implements the compacting, reference-counted,
// variable-layout array arena described in spec.md §4.2.
package pointstoreimpl

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
	"github.com/DataDog/rcf-core/pkg/rcflog"
	"github.com/DataDog/rcf-core/pkg/rcftelemetry"
)

const growthFactor = 1.1

// infeasibleOffset is spec.md §3's INFEASIBLE sentinel for the location
// table: "Offset INFEASIBLE = -1 when the handle is free."
const infeasibleOffset = -1

// PointStore is the single-writer, many-reader arena of spec.md §4.2. All
// mutating methods assume they are called from the single ingest task; see
// spec.md §5 for the concurrency contract.
type PointStore struct {
	mu sync.RWMutex

	cfg           pointstoredef.Config
	baseDimension int
	shingleSize   int
	dimensions    int
	capacity      int

	flat                []float32
	startOfFreeSegment  int
	location            []int32
	refCounts           *refCounts
	ids                 *IndexIntervalManager
	rotationPhase       int
	internalShingle     []float32
	internalShingleSeen int

	logger  *zap.Logger
	metrics *rcftelemetry.Metrics
}

// Option customizes construction beyond pointstoredef.Config.
type Option func(*PointStore)

// WithLogger injects a logger; nil is treated as a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *PointStore) { s.logger = rcflog.OrNop(logger) }
}

// WithMetrics attaches telemetry; nil leaves metrics as a no-op.
func WithMetrics(m *rcftelemetry.Metrics) Option {
	return func(s *PointStore) { s.metrics = m }
}

// New constructs a PointStore per spec.md §4.2's construction parameters.
func New(cfg pointstoredef.Config, opts ...Option) (*PointStore, error) {
	if cfg.BaseDimension <= 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "baseDimension must be positive, got %d", cfg.BaseDimension)
	}
	if cfg.ShingleSize <= 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "shingleSize must be positive, got %d", cfg.ShingleSize)
	}
	if cfg.Capacity <= 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.InitialStoreSize < 0 {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "initialStoreSize must be non-negative, got %d", cfg.InitialStoreSize)
	}

	dimensions := cfg.Dimensions()
	initialPoints := cfg.InitialStoreSize
	if initialPoints <= 0 || initialPoints > cfg.Capacity {
		initialPoints = cfg.Capacity
	}

	s := &PointStore{
		cfg:             cfg,
		baseDimension:   cfg.BaseDimension,
		shingleSize:     cfg.ShingleSize,
		dimensions:      dimensions,
		capacity:        cfg.Capacity,
		flat:            make([]float32, initialPoints*dimensions),
		location:        make([]int32, cfg.Capacity),
		refCounts:       newRefCounts(cfg.Capacity),
		ids:             NewIndexIntervalManager(cfg.Capacity),
		internalShingle: make([]float32, dimensions),
		logger:          rcflog.Nop(),
	}
	for i := range s.location {
		s.location[i] = infeasibleOffset
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *PointStore) GetDimensions() int                 { return s.dimensions }
func (s *PointStore) GetShingleSize() int                { return s.shingleSize }
func (s *PointStore) GetBaseDimension() int               { return s.baseDimension }
func (s *PointStore) IsInternalRotationEnabled() bool     { return s.cfg.InternalRotationEnabled }
func (s *PointStore) IsInternalShinglingEnabled() bool    { return s.cfg.InternalShinglingEnabled }

// Size returns the number of handles with a positive reference count.
func (s *PointStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids.Stats().Allocated
}

func (s *PointStore) storeLimitElements() int {
	if s.cfg.InternalRotationEnabled {
		return 2 * s.capacity * s.dimensions
	}
	return s.capacity * s.dimensions
}

// foldInternal advances the rolling internal shingle with update and
// returns a copy of the resulting D-length logical vector plus whether the
// shingle has fully warmed up. The logical content is the same regardless
// of rotation mode: rotation only changes how this store chooses storage
// offsets, never the logical coordinate order a caller observes.
func (s *PointStore) foldInternal(update []float32) ([]float32, bool) {
	if s.shingleSize > 1 {
		copy(s.internalShingle, s.internalShingle[s.baseDimension:])
		copy(s.internalShingle[s.dimensions-s.baseDimension:], update)
	} else {
		copy(s.internalShingle, update)
	}
	if s.internalShingleSeen < s.shingleSize {
		s.internalShingleSeen++
	}
	out := make([]float32, s.dimensions)
	copy(out, s.internalShingle)
	return out, s.internalShingleSeen >= s.shingleSize
}

// TransformToShingledPoint folds point into the current shingle state
// without mutating it (spec.md §4.2).
func (s *PointStore) TransformToShingledPoint(point []float32) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.cfg.InternalShinglingEnabled {
		out := make([]float32, len(point))
		copy(out, point)
		return out, nil
	}
	if len(point) != s.baseDimension {
		return nil, rcferrors.New(rcferrors.InvalidArgument, "expected baseDimension-length update (%d), got %d", s.baseDimension, len(point))
	}
	simulated := make([]float32, s.dimensions)
	copy(simulated, s.internalShingle)
	if s.shingleSize > 1 {
		copy(simulated, simulated[s.baseDimension:])
		copy(simulated[s.dimensions-s.baseDimension:], point)
	} else {
		copy(simulated, point)
	}
	return simulated, nil
}

// TransformIndices maps base-dimension coordinate indices to the shingled
// space. The newest update always logically occupies the last slot,
// independent of rotation, since this store normalizes storage to logical
// order (see foldInternal).
func (s *PointStore) TransformIndices(indices []int) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(indices))
	base := (s.shingleSize - 1) * s.baseDimension
	for i, idx := range indices {
		if idx < 0 || idx >= s.baseDimension {
			return nil, rcferrors.New(rcferrors.InvalidArgument, "index %d out of base-dimension range [0,%d)", idx, s.baseDimension)
		}
		out[i] = base + idx
	}
	return out, nil
}

func alignPadding(cursor, targetPhase, d int) int {
	return ((targetPhase-cursor)%d + d) % d
}

// ensureCapacityLocked makes sure additional more elements can be appended
// after startOfFreeSegment, compacting and then growing geometrically as
// spec.md §4.2 describes. Caller must hold s.mu for writing.
func (s *PointStore) ensureCapacityLocked(additional int) error {
	if s.startOfFreeSegment+additional <= len(s.flat) {
		return nil
	}
	s.compactLocked()
	if s.startOfFreeSegment+additional <= len(s.flat) {
		return nil
	}
	limit := s.storeLimitElements()
	needed := s.startOfFreeSegment + additional
	if needed > limit {
		return rcferrors.New(rcferrors.Capacity, "point store exhausted: need %d elements, limit %d", needed, limit)
	}
	newLen := len(s.flat)
	for newLen < needed {
		grown := int(float64(newLen) * growthFactor)
		if grown <= newLen {
			grown = newLen + s.dimensions
		}
		if grown > limit {
			grown = limit
		}
		if grown == newLen {
			return rcferrors.New(rcferrors.Capacity, "point store cannot grow past %d elements", limit)
		}
		newLen = grown
	}
	grown := make([]float32, newLen)
	copy(grown, s.flat)
	s.flat = grown
	s.metrics.IncCapacityGrowths()
	return nil
}

// Add stores point (spec.md §4.2). When the last D-baseDimension stored
// values equal the head of the new shingle (and, under rotation, that
// candidate offset has the current rotation phase), only the final
// baseDimension values are appended and the handle points into the shared
// tail; otherwise all D values are written, preceded under rotation by
// zero padding up to the current phase.
func (s *PointStore) Add(point []float32, sequenceNum int64) (pointstoredef.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var shingled []float32
	if s.cfg.InternalShinglingEnabled {
		if len(point) != s.baseDimension {
			return pointstoredef.Infeasible, rcferrors.New(rcferrors.InvalidArgument, "expected baseDimension-length update (%d), got %d", s.baseDimension, len(point))
		}
		var warmed bool
		shingled, warmed = s.foldInternal(point)
		if !warmed {
			return pointstoredef.Infeasible, nil
		}
	} else {
		if len(point) != s.dimensions {
			return pointstoredef.Infeasible, rcferrors.New(rcferrors.InvalidArgument, "expected dimensions-length point (%d), got %d", s.dimensions, len(point))
		}
		shingled = make([]float32, s.dimensions)
		copy(shingled, point)
	}

	reusableOffset := -1
	overlapLen := s.dimensions - s.baseDimension
	if overlapLen > 0 && s.startOfFreeSegment >= overlapLen {
		tail := s.flat[s.startOfFreeSegment-overlapLen : s.startOfFreeSegment]
		if tailEquals(tail, shingled[:overlapLen]) {
			candidate := s.startOfFreeSegment - overlapLen
			if !s.cfg.InternalRotationEnabled || candidate%s.dimensions == s.rotationPhase {
				reusableOffset = candidate
			}
		}
	}

	var offset int
	if reusableOffset >= 0 {
		if err := s.ensureCapacityLocked(s.baseDimension); err != nil {
			return pointstoredef.Infeasible, err
		}
		copy(s.flat[s.startOfFreeSegment:s.startOfFreeSegment+s.baseDimension], shingled[overlapLen:])
		s.startOfFreeSegment += s.baseDimension
		offset = reusableOffset
	} else {
		padding := 0
		if s.cfg.InternalRotationEnabled {
			padding = alignPadding(s.startOfFreeSegment, s.rotationPhase, s.dimensions)
		}
		if err := s.ensureCapacityLocked(padding + s.dimensions); err != nil {
			return pointstoredef.Infeasible, err
		}
		for i := 0; i < padding; i++ {
			s.flat[s.startOfFreeSegment+i] = 0
		}
		offset = s.startOfFreeSegment + padding
		copy(s.flat[offset:offset+s.dimensions], shingled)
		s.startOfFreeSegment = offset + s.dimensions
	}

	handleID, err := s.ids.TakeIndex()
	if err != nil {
		return pointstoredef.Infeasible, err
	}
	s.location[handleID] = int32(offset)
	s.refCounts.reset(handleID)
	s.refCounts.increment(handleID)

	if s.cfg.InternalRotationEnabled {
		s.rotationPhase = (s.rotationPhase + s.baseDimension) % s.dimensions
	}

	s.metrics.SetLiveHandles(s.ids.Stats().Allocated)
	return pointstoredef.Handle(handleID), nil
}

func tailEquals(a, b []float32) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *PointStore) checkLive(h pointstoredef.Handle) (int, error) {
	idx := int(h)
	if idx < 0 || idx >= s.capacity {
		return 0, rcferrors.New(rcferrors.InvalidHandle, "handle %d out of range [0,%d)", idx, s.capacity)
	}
	if s.refCounts.get(idx) <= 0 {
		return 0, rcferrors.New(rcferrors.InvalidHandle, "handle %d is free", idx)
	}
	return idx, nil
}

// IncrementRefCount implements spec.md §4.2.
func (s *PointStore) IncrementRefCount(h pointstoredef.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.checkLive(h)
	if err != nil {
		return err
	}
	s.refCounts.increment(idx)
	return nil
}

// DecrementRefCount implements spec.md §4.2, releasing the handle through
// the index interval manager once the count reaches zero.
func (s *PointStore) DecrementRefCount(h pointstoredef.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.checkLive(h)
	if err != nil {
		return 0, err
	}
	newCount := s.refCounts.decrement(idx)
	if newCount == 0 {
		if err := s.ids.ReleaseIndex(idx); err != nil {
			return 0, rcferrors.Wrap(err, rcferrors.IllegalState, "releasing handle %d", idx)
		}
		s.location[idx] = infeasibleOffset
	}
	s.metrics.SetLiveHandles(s.ids.Stats().Allocated)
	return newCount, nil
}

// RefCount returns the observable count for a live handle.
func (s *PointStore) RefCount(h pointstoredef.Handle) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.checkLive(h)
	if err != nil {
		return 0, err
	}
	return s.refCounts.get(idx), nil
}

// GetNumericVector returns a copy of the logical D-length vector for h.
func (s *PointStore) GetNumericVector(h pointstoredef.Handle) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.checkLive(h)
	if err != nil {
		return nil, err
	}
	offset := int(s.location[idx])
	out := make([]float32, s.dimensions)
	copy(out, s.flat[offset:offset+s.dimensions])
	return out, nil
}

// Compact rewrites the flat store so live points are densely packed in
// ascending order of their current offset (spec.md §4.2 algorithm).
func (s *PointStore) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactLocked()
	return nil
}

type liveEntry struct {
	location int
	handle   int
}

func (s *PointStore) compactLocked() {
	live := make([]liveEntry, 0, s.ids.Stats().Allocated)
	for h := 0; h < s.capacity; h++ {
		if s.refCounts.get(h) > 0 {
			live = append(live, liveEntry{location: int(s.location[h]), handle: h})
		}
	}
	if len(live) == 0 {
		s.startOfFreeSegment = 0
		return
	}
	sort.Slice(live, func(i, j int) bool { return live[i].location < live[j].location })

	newFlat := make([]float32, len(s.flat))
	cursor := 0

	i := 0
	for i < len(live) {
		blockStart := live[i].location
		blockEnd := blockStart + s.dimensions
		members := []liveEntry{live[i]}
		j := i + 1
		for j < len(live) && live[j].location < blockEnd {
			blockEnd = max(blockEnd, live[j].location+s.dimensions)
			members = append(members, live[j])
			j++
		}

		padding := 0
		if s.cfg.InternalRotationEnabled {
			padding = alignPadding(cursor, blockStart%s.dimensions, s.dimensions)
		}
		destStart := cursor + padding
		copy(newFlat[destStart:destStart+(blockEnd-blockStart)], s.flat[blockStart:blockEnd])
		for _, m := range members {
			s.location[m.handle] = int32(destStart + (m.location - blockStart))
		}
		cursor = destStart + (blockEnd - blockStart)
		i = j
	}

	s.flat = newFlat
	s.startOfFreeSegment = cursor
	s.metrics.IncCompactions()
}
