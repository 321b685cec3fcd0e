// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package statemapperimpl implements the snapshot/restore walk
// described in spec.md §4.4: ForestStateMapper.ToState collects a
// forest's configuration, samplers and (optionally) tree cut
// structures into a State descriptor; ToModel rebuilds a forest from
// one, falling back to sampler replay wherever a compact tree layout
// was not saved.
package statemapperimpl

import (
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pointstoredef "github.com/DataDog/rcf-core/comp/pointstore/def"
	pointstoreimpl "github.com/DataDog/rcf-core/comp/pointstore/impl"
	statemapperdef "github.com/DataDog/rcf-core/comp/statemapper/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
	"github.com/DataDog/rcf-core/pkg/rcflog"
)

// ForestStateMapper implements statemapperdef.StateMapper.
type ForestStateMapper struct {
	cfg    statemapperdef.MapperConfig
	logger *zap.Logger
}

// Option customizes construction beyond statemapperdef.MapperConfig.
type Option func(*ForestStateMapper)

// WithLogger injects a logger; nil is treated as a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *ForestStateMapper) { m.logger = rcflog.OrNop(logger) }
}

// New constructs a ForestStateMapper.
func New(cfg statemapperdef.MapperConfig, opts ...Option) *ForestStateMapper {
	m := &ForestStateMapper{cfg: cfg, logger: rcflog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToState implements spec.md §4.4's toState(forest) -> state.
func (m *ForestStateMapper) ToState(forest statemapperdef.Forest) (statemapperdef.State, error) {
	flags := forest.Flags()
	flags.Compress = m.cfg.Compress
	flags.PartialTreesInUse = m.cfg.PartialTreesInUse

	state := statemapperdef.State{
		Version:       statemapperdef.CurrentVersion,
		NumberOfTrees: forest.NumberOfTrees(),
		Dimensions:    forest.Dimensions(),
		TimeDecay:     forest.TimeDecay(),
		SampleSize:    forest.SampleSize(),
		ShingleSize:   forest.ShingleSize(),
		OutputAfter:   forest.OutputAfter(),
		Flags:         flags,
		TotalUpdates:  forest.TotalUpdates(),
	}

	trees := forest.Trees()

	if m.cfg.SaveCoordinatorState {
		snapshotter, ok := forest.PointStore().(pointstoredef.Snapshotter)
		if !ok {
			return statemapperdef.State{}, rcferrors.New(rcferrors.MissingState, "point store does not support snapshotting")
		}
		snap := snapshotter.Snapshot()
		state.PointStoreState = &snap
	}

	if m.cfg.SaveSamplerState {
		state.CompactSamplerStates = make([]statemapperdef.SamplerState, len(trees))
		for i, tc := range trees {
			state.CompactSamplerStates[i] = tc.Sampler().CompactState()
		}
	}

	if m.cfg.SaveTreeState {
		// In non-compact legacy mode a tree has no compact layout to
		// offer; spec.md §4.4 says toState falls back to a synthesized
		// point-store-plus-compact-sampler representation in that case,
		// which here just means relying on the sampler snapshot already
		// collected above instead of a tree state entry.
		states := make([]statemapperdef.TreeState, len(trees))
		for i, tc := range trees {
			ts, ok := tc.CompactTreeState()
			if !ok {
				if !m.cfg.SaveSamplerState {
					return statemapperdef.State{}, rcferrors.New(rcferrors.MissingState, "tree %d has no compact layout and sampler state was not requested", i)
				}
				continue
			}
			states[i] = ts
		}
		state.CompactRandomCutTreeStates = states
	}

	if m.cfg.SaveExecutorContext {
		state.ExecutorContext = &statemapperdef.ExecutorContext{
			RunID:           uuid.NewString(),
			ParallelismHint: runtime.GOMAXPROCS(0),
		}
	}

	return state, nil
}

// ToModel implements spec.md §4.4's toModel(state, ctx, seed) -> forest.
func (m *ForestStateMapper) ToModel(state statemapperdef.State, builder statemapperdef.ForestBuilder, externalPointStore pointstoredef.IPointStore, seed int64) (statemapperdef.Forest, error) {
	if state.Version != statemapperdef.CurrentVersion {
		return nil, rcferrors.New(rcferrors.UnsupportedVersion, "unsupported state version %q (expected %q)", state.Version, statemapperdef.CurrentVersion)
	}

	store := externalPointStore
	if store == nil {
		if state.PointStoreState == nil {
			return nil, rcferrors.New(rcferrors.MissingState, "coordinator state absent and no external point store supplied")
		}
		restored, err := pointstoreimpl.NewFromSnapshot(*state.PointStoreState)
		if err != nil {
			return nil, rcferrors.Wrap(err, rcferrors.MissingState, "rebuilding point store from snapshot")
		}
		store = restored
	}

	forest, err := builder.NewForest(state, store, seed)
	if err != nil {
		return nil, err
	}

	trees := forest.Trees()
	for i, tc := range trees {
		if state.CompactSamplerStates != nil && i < len(state.CompactSamplerStates) {
			if err := tc.Sampler().LoadCompactState(state.CompactSamplerStates[i]); err != nil {
				return nil, rcferrors.Wrap(err, rcferrors.MissingState, "loading sampler state for tree %d", i)
			}
		}

		hasTreeState := state.CompactRandomCutTreeStates != nil && i < len(state.CompactRandomCutTreeStates) && len(state.CompactRandomCutTreeStates[i].Nodes) > 0
		if hasTreeState && !state.Flags.PartialTreesInUse {
			if err := tc.LoadCompactTreeState(state.CompactRandomCutTreeStates[i]); err != nil {
				return nil, rcferrors.Wrap(err, rcferrors.MissingState, "loading tree state for tree %d", i)
			}
			continue
		}

		// Partial-tree replay: rebuild cut structure from sampler
		// contents alone. spec.md §4.4: "when partialTreesInUse is true
		// even with saved tree states, the replay seeds missing nodes."
		if state.CompactSamplerStates == nil || i >= len(state.CompactSamplerStates) {
			return nil, rcferrors.New(rcferrors.MissingState, "tree %d has neither a compact tree state nor a sampler state to replay", i)
		}
		for _, h := range state.CompactSamplerStates[i].Handles {
			point, err := store.GetNumericVector(h)
			if err != nil {
				return nil, rcferrors.Wrap(err, rcferrors.MissingState, "replaying handle %d into tree %d", h, i)
			}
			if err := tc.ReplayHandle(h, point); err != nil {
				return nil, rcferrors.Wrap(err, rcferrors.IllegalState, "replaying handle %d into tree %d", h, i)
			}
		}
	}

	return forest, nil
}
