// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package rcfconfig

import (
	"os"
	"testing"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDimension != 1 {
		t.Errorf("BaseDimension default: want 1, got %d", cfg.BaseDimension)
	}
	if cfg.Capacity != 256 {
		t.Errorf("Capacity default: want 256, got %d", cfg.Capacity)
	}
	if cfg.ForecastHorizon != 1 || cfg.ErrorHorizon != 1 {
		t.Errorf("horizon defaults: want 1/1, got %d/%d", cfg.ForecastHorizon, cfg.ErrorHorizon)
	}
	if cfg.Percentile != 0.1 {
		t.Errorf("Percentile default: want 0.1, got %v", cfg.Percentile)
	}
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("RCF_BASEDIMENSION", "4")
	t.Setenv("RCF_SHINGLESIZE", "3")
	t.Setenv("RCF_CAPACITY", "1024")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDimension != 4 {
		t.Errorf("BaseDimension: want 4, got %d", cfg.BaseDimension)
	}
	if cfg.ShingleSize != 3 {
		t.Errorf("ShingleSize: want 3, got %d", cfg.ShingleSize)
	}
	if cfg.Capacity != 1024 {
		t.Errorf("Capacity: want 1024, got %d", cfg.Capacity)
	}
	if cfg.Dimensions() != 12 {
		t.Errorf("Dimensions: want 12, got %d", cfg.Dimensions())
	}
}

func TestValidate_CombinesAllViolations(t *testing.T) {
	cfg := Config{
		BaseDimension:    0,
		ShingleSize:      0,
		Capacity:         0,
		InitialStoreSize: -1,
		ForecastHorizon:  0,
		ErrorHorizon:     0,
		Percentile:       0.9,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected a combined validation error")
	}
	msg := err.Error()
	for _, want := range []string{"baseDimension", "shingleSize", "capacity", "initialStoreSize", "forecastHorizon", "percentile"} {
		if !contains(msg, want) {
			t.Errorf("expected combined error to mention %q, got: %s", want, msg)
		}
	}
}

func TestValidate_ErrorHorizonBounds(t *testing.T) {
	cfg := Config{BaseDimension: 1, ShingleSize: 1, Capacity: 1, ForecastHorizon: 2, ErrorHorizon: 1, Percentile: 0.1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when errorHorizon < forecastHorizon")
	}

	cfg = Config{BaseDimension: 1, ShingleSize: 1, Capacity: 1, ForecastHorizon: 1, ErrorHorizon: maxErrorHorizon + 1, Percentile: 0.1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when errorHorizon exceeds MAX_ERROR_HORIZON")
	}
}

func TestLoad_InvalidConfigFilePath(t *testing.T) {
	if _, err := Load(os.DevNull + ".nonexistent"); err == nil {
		t.Error("expected an error for an unreadable config file path")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
