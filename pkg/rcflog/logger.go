// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package rcflog builds the *zap.Logger injected into the point store,
// error handler and forest state mapper. Components never reach for a
// package-level logging singleton; they take a logger through their
// constructor, defaulting to a no-op logger when none is supplied.
package rcflog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how logs are written.
type Config struct {
	// FilePath, when non-empty, routes logs through a rotating file sink
	// instead of stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Level is parsed with zapcore.Level.UnmarshalText; empty means info.
	Level string
	// Development enables human-readable console encoding instead of JSON.
	Development bool
}

func (c Config) sink() zapcore.WriteSyncer {
	if c.FilePath == "" {
		return zapcore.AddSync(os.Stderr)
	}
	maxSize := c.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	maxBackups := c.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := c.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 28
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   c.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   c.Compress,
	})
}

func (c Config) level() zapcore.Level {
	if c.Level == "" {
		return zapcore.InfoLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// New builds a *zap.Logger from Config. It never returns an error: a
// malformed level string degrades to info rather than failing component
// construction over a logging concern.
func New(cfg Config) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Development {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, cfg.sink(), cfg.level())
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...)
}

// Nop returns the logger components fall back to when none is injected.
func Nop() *zap.Logger { return zap.NewNop() }

// orNop returns logger unchanged unless it's nil, in which case it returns
// a no-op logger. Components call this once in their constructor.
func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

// OrNop is the exported form of orNop for use by comp/*/impl constructors
// outside this package.
func OrNop(logger *zap.Logger) *zap.Logger { return orNop(logger) }
