// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package rcfconfig loads and validates the tunable knobs shared by the
// point store and error handler before either is constructed, so an
// invalid configuration never reaches a partially built component.
package rcfconfig

import (
	"strings"

	"github.com/DataDog/viper"
	"go.uber.org/multierr"

	"github.com/DataDog/rcf-core/pkg/rcferrors"
)

// Config is the flattened set of knobs spec.md assigns to the point store
// and error handler constructors.
type Config struct {
	// Point store knobs (spec.md §4.2).
	BaseDimension             int
	ShingleSize               int
	Capacity                  int
	InternalShinglingEnabled  bool
	InternalRotationEnabled   bool
	InitialStoreSize          int

	// Error handler knobs (spec.md §4.3, §3 invariants).
	ForecastHorizon int
	ErrorHorizon    int
	Percentile      float64
}

const maxErrorHorizon = 1024

// Load reads configuration from environment variables prefixed RCF_ and,
// when path is non-empty, a config file of any format viper supports
// (YAML, JSON, TOML), with defaults applied for anything left unset.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RCF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("basedimension", 1)
	v.SetDefault("shinglesize", 1)
	v.SetDefault("capacity", 256)
	v.SetDefault("internalshinglingenabled", false)
	v.SetDefault("internalrotationenabled", false)
	v.SetDefault("initialstoresize", 0)
	v.SetDefault("forecasthorizon", 1)
	v.SetDefault("errorhorizon", 1)
	v.SetDefault("percentile", 0.1)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, rcferrors.Wrap(err, rcferrors.InvalidArgument, "reading config file %q", path)
		}
	}

	cfg := Config{
		BaseDimension:            v.GetInt("basedimension"),
		ShingleSize:              v.GetInt("shinglesize"),
		Capacity:                 v.GetInt("capacity"),
		InternalShinglingEnabled: v.GetBool("internalshinglingenabled"),
		InternalRotationEnabled:  v.GetBool("internalrotationenabled"),
		InitialStoreSize:         v.GetInt("initialstoresize"),
		ForecastHorizon:          v.GetInt("forecasthorizon"),
		ErrorHorizon:             v.GetInt("errorhorizon"),
		Percentile:               v.GetFloat64("percentile"),
	}
	return cfg, cfg.Validate()
}

// Validate checks every precondition spec.md assigns to these knobs,
// returning all violations combined via multierr rather than stopping at
// the first one — callers fixing a config file want the full list.
func (c Config) Validate() error {
	var err error
	if c.BaseDimension <= 0 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "baseDimension must be positive, got %d", c.BaseDimension))
	}
	if c.ShingleSize <= 0 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "shingleSize must be positive, got %d", c.ShingleSize))
	}
	if c.Capacity <= 0 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "capacity must be positive, got %d", c.Capacity))
	}
	if c.InitialStoreSize < 0 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "initialStoreSize must be non-negative, got %d", c.InitialStoreSize))
	}
	if c.ForecastHorizon <= 0 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "forecastHorizon must be positive, got %d", c.ForecastHorizon))
	}
	if c.ErrorHorizon < c.ForecastHorizon {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "errorHorizon (%d) must be >= forecastHorizon (%d)", c.ErrorHorizon, c.ForecastHorizon))
	}
	if c.ErrorHorizon > maxErrorHorizon {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "errorHorizon (%d) exceeds MAX_ERROR_HORIZON (%d)", c.ErrorHorizon, maxErrorHorizon))
	}
	if c.Percentile <= 0.01 || c.Percentile >= 0.49 {
		err = multierr.Append(err, rcferrors.New(rcferrors.InvalidArgument, "percentile must be in (0.01, 0.49), got %v", c.Percentile))
	}
	return err
}

// Dimensions returns shingleSize * baseDimension, the D of spec.md §3.
func (c Config) Dimensions() int { return c.ShingleSize * c.BaseDimension }
