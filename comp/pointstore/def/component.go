// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package pointstoredef declares the point store's external contract
// (spec.md §6 IPointStore) and the types its callers share, independent of
// any particular implementation.
package pointstoredef

// Handle is a stable integer id for a logical point held by the store.
// Infeasible is returned in place of a handle whenever the caller's append
// could not yet, or could never, produce one.
type Handle int32

// Infeasible is the sentinel handle spec.md §3 calls out: "invalid handle
// sentinel = -1".
const Infeasible Handle = -1

// IPointStore is the contract the point store exposes to trees, samplers
// and the forecaster façade (spec.md §6). Vector is always a copy; callers
// never observe the store's internal flat array.
type IPointStore interface {
	// Add stores point (or folds it into the internal shingle, when
	// internal shingling is enabled) tagged with sequenceNum and returns
	// its handle, or Infeasible while the internal shingle is still
	// warming up.
	Add(point []float32, sequenceNum int64) (Handle, error)

	// IncrementRefCount records one more owner of handle.
	IncrementRefCount(h Handle) error
	// DecrementRefCount records one fewer owner of handle and returns the
	// resulting count. A count of zero means the handle was just freed.
	DecrementRefCount(h Handle) (int, error)
	// RefCount returns the current observable reference count of handle.
	RefCount(h Handle) (int, error)

	// GetNumericVector returns a copy of the D-length logical vector for
	// handle, unrotated when internal rotation is enabled.
	GetNumericVector(h Handle) ([]float32, error)

	// TransformToShingledPoint folds a baseDimension-length update into
	// the current shingle without mutating the store. When internal
	// shingling is disabled it returns a copy of point.
	TransformToShingledPoint(point []float32) ([]float32, error)
	// TransformIndices maps coordinate indices in the base-dimension input
	// space into the shingled space of the logical vectors GetNumericVector
	// returns, where the newest update occupies the last slot whatever the
	// rotation phase.
	TransformIndices(indices []int) ([]int, error)

	GetDimensions() int
	GetShingleSize() int
	GetBaseDimension() int
	IsInternalRotationEnabled() bool
	IsInternalShinglingEnabled() bool

	// Size returns the number of handles with a positive reference count.
	Size() int

	// Compact rewrites the flat store so live points are densely packed.
	Compact() error
}

// Config carries the construction parameters of spec.md §4.2.
type Config struct {
	// BaseDimension is the length of one shingle slot.
	BaseDimension int
	// ShingleSize must divide Dimensions, or be 1.
	ShingleSize int
	// Capacity is the maximum number of logical points the store holds.
	Capacity int
	// InternalShinglingEnabled switches Add between accepting full
	// D-length points and baseDimension-length updates.
	InternalShinglingEnabled bool
	// InternalRotationEnabled switches the shingle layout from sliding to
	// rotated (spec.md Design Notes: "Rotated shingle phase").
	InternalRotationEnabled bool
	// InitialStoreSize seeds currentStoreCapacity below Capacity, letting
	// the store grow geometrically as described in spec.md §4.2; zero
	// means start at Capacity.
	InitialStoreSize int
}

// Dimensions returns ShingleSize * BaseDimension, the D of spec.md §3.
func (c Config) Dimensions() int { return c.ShingleSize * c.BaseDimension }

// Snapshot is a coordinator-state capture of a point store (spec.md
// §4.4's `pointStoreState`): enough to reconstruct one byte-for-byte,
// including the rolling internal shingle so warm-up state survives a
// save/restore cycle.
type Snapshot struct {
	Config             Config
	Flat               []float32
	StartOfFreeSegment int
	Location           []int32
	RefCounts          []int
	RotationPhase      int
	InternalShingle    []float32
	InternalShingleSeen int
}

// Snapshotter is implemented by point store constructions that support
// the mapper's save/restore path. Not part of IPointStore itself since
// most callers (trees, samplers) never need it.
type Snapshotter interface {
	Snapshot() Snapshot
}
