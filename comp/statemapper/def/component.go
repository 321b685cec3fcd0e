// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package statemapperdef declares the forest/state descriptor contract
// spec.md §4.4 and §6 describe: a semantic (not bit-exact) snapshot
// format plus the external-collaborator interfaces (Forest,
// TreeComponent, Sampler) the mapper walks to build or rehydrate it.
package statemapperdef

import (
	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
)

// CurrentVersion is the state format version this module emits and
// accepts. Loaders reject anything else with UnsupportedVersion
// (spec.md §6).
const CurrentVersion = "rcf-core-state/v1"

// Flags are the persisted forest configuration bits spec.md §6 lists.
type Flags struct {
	CenterOfMass         bool
	StoreSequenceIndexes bool
	BoundingBoxCaching   bool
	InternalShingling    bool
	SinglePrecision      bool
	Compress             bool
	PartialTreesInUse    bool
}

// ExecutorContext carries concurrency hints saved when SaveExecutorContext
// is set (spec.md §4.4). RunID is stamped once per toState call.
type ExecutorContext struct {
	RunID           string
	ParallelismHint int
}

// SamplerState is a per-tree compact sampler snapshot (spec.md §4.4
// `saveSamplerState`): the weighted reservoir of handles a tree's
// sampler currently holds.
type SamplerState struct {
	Handles    []pointstoredef.Handle
	Weights    []float64
	SampleSize int
}

// CompactNode is one node of a tree's compact, array-based layout
// (spec.md §4.4 `saveTreeState`: "bounding boxes and cut structure;
// requires compact layout").
type CompactNode struct {
	CutDimension int32
	CutValue     float32
	LeftIndex    int32
	RightIndex   int32
	Mass         int32
	PointHandle  pointstoredef.Handle // set only on leaves
}

// TreeState is a per-tree compact cut-structure snapshot.
type TreeState struct {
	Nodes []CompactNode
	Root  int32
}

// State is the full persisted descriptor spec.md §6 enumerates.
type State struct {
	Version string

	NumberOfTrees int
	Dimensions    int
	TimeDecay     float64 // lambda
	SampleSize    int
	ShingleSize   int
	OutputAfter   int
	Flags         Flags
	TotalUpdates  int64

	PointStoreState            *pointstoredef.Snapshot
	CompactSamplerStates       []SamplerState
	CompactRandomCutTreeStates []TreeState
	ExecutorContext            *ExecutorContext
}

// MapperConfig selects which pieces of forest state toState saves
// (spec.md §4.4's enumerated configuration knobs).
type MapperConfig struct {
	SaveTreeState        bool
	SaveCoordinatorState bool
	SaveSamplerState     bool
	SaveExecutorContext  bool
	Compress             bool
	PartialTreesInUse    bool
}

// Sampler is the external collaborator contract a tree's reservoir
// sampler satisfies (spec.md §9: "release is driven solely by the
// tree's sampler evicting a handle").
type Sampler interface {
	// CompactState returns the sampler's current weighted reservoir.
	CompactState() SamplerState
	// LoadCompactState replaces the reservoir's contents from state.
	LoadCompactState(state SamplerState) error
	// Accept offers (handle, weight) to the reservoir. ForestStateMapper
	// does not call it: it restores reservoirs through LoadCompactState.
	Accept(h pointstoredef.Handle, weight float64) error
}

// TreeComponent is the external collaborator contract a single tree in
// the forest satisfies.
type TreeComponent interface {
	Sampler() Sampler
	// CompactTreeState returns the tree's cut structure and whether a
	// compact layout is currently available (ok is false for array-based
	// legacy trees, spec.md §4.4's "non-compact legacy mode").
	CompactTreeState() (state TreeState, ok bool)
	// LoadCompactTreeState rehydrates cut structure directly, skipping
	// sampler replay.
	LoadCompactTreeState(state TreeState) error
	// ReplayHandle re-inserts a single sampled handle into the tree,
	// used when rebuilding from sampler contents alone (partial-tree
	// replay, spec.md §4.4).
	ReplayHandle(h pointstoredef.Handle, point []float32) error
}

// Forest is the external collaborator contract spec.md §4.4's toState
// walks and toModel rebuilds.
type Forest interface {
	NumberOfTrees() int
	Dimensions() int
	TimeDecay() float64
	SampleSize() int
	ShingleSize() int
	OutputAfter() int
	Flags() Flags
	TotalUpdates() int64
	PointStore() pointstoredef.IPointStore
	Trees() []TreeComponent
}

// ForestBuilder constructs an empty forest shell during toModel, before
// trees and samplers are populated from saved state.
type ForestBuilder interface {
	// NewForest allocates numberOfTrees empty trees sized for the given
	// state's configuration around externalPointStore. ForestStateMapper
	// always passes a non-nil store: the caller's external one, or one
	// restored from state.PointStoreState.
	NewForest(state State, externalPointStore pointstoredef.IPointStore, seed int64) (Forest, error)
}

// StateMapper is the contract spec.md §6 calls out:
// `toState(forest) -> state`, `toModel(state, ctx, seed) -> forest`.
type StateMapper interface {
	ToState(forest Forest) (State, error)
	ToModel(state State, builder ForestBuilder, externalPointStore pointstoredef.IPointStore, seed int64) (Forest, error)
}
