// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package statemapperimpl

import (
	"github.com/DataDog/zstd"
	"github.com/vmihailenco/msgpack/v5"

	statemapperdef "github.com/DataDog/rcf-core/comp/statemapper/def"
	"github.com/DataDog/rcf-core/pkg/rcferrors"
)

// Encode serializes state for transport or storage. spec.md §6 says the
// persisted layout is specified semantically, not bit-exact, so this is
// a convenience codec, not part of the mapper's core contract: any
// msgpack-compatible encoding of the same State value is equally valid.
// When state.Flags.Compress is set, the encoded bytes are additionally
// passed through zstd (spec.md §4.4's `compress` knob: "ask leaves to
// apply lossless layout compression").
func Encode(state statemapperdef.State) ([]byte, error) {
	raw, err := msgpack.Marshal(&state)
	if err != nil {
		return nil, rcferrors.Wrap(err, rcferrors.IllegalState, "encoding state")
	}
	if !state.Flags.Compress {
		return raw, nil
	}
	compressed, err := zstd.Compress(nil, raw)
	if err != nil {
		return nil, rcferrors.Wrap(err, rcferrors.IllegalState, "compressing encoded state")
	}
	return compressed, nil
}

// Decode is Encode's inverse. compressed must match the Flags.Compress
// value the state was encoded with, since compression is not
// self-describing in this wire format.
func Decode(data []byte, compressed bool) (statemapperdef.State, error) {
	raw := data
	if compressed {
		decompressed, err := zstd.Decompress(nil, data)
		if err != nil {
			return statemapperdef.State{}, rcferrors.Wrap(err, rcferrors.Misaligned, "decompressing encoded state")
		}
		raw = decompressed
	}
	var state statemapperdef.State
	if err := msgpack.Unmarshal(raw, &state); err != nil {
		return statemapperdef.State{}, rcferrors.Wrap(err, rcferrors.Misaligned, "decoding state")
	}
	if state.Version != statemapperdef.CurrentVersion {
		return statemapperdef.State{}, rcferrors.New(rcferrors.UnsupportedVersion, "unsupported state version %q (expected %q)", state.Version, statemapperdef.CurrentVersion)
	}
	return state, nil
}
