/*
Copyright 2026 jr42.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging constructs BRM's structured logger. The teacher
// pulls its logr.Logger from controller-runtime's logf.FromContext,
// itself backed by zap; BRM has no controller-runtime manager to
// supply that, so this package builds the same go-logr/zapr-over-
// go.uber.org/zap logger directly and hands out a logr.Logger with
// the identical call shape (`log.Info(msg, kv...)`,
// `log.Error(err, msg, kv...)`, `log.V(1).Info(...)` for verbose
// tracing), grounded on the teacher's dynamicprefix_controller.go
// call sites.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style JSON logger, named root, matching the
// teacher's `logf.Log.WithName(...)` convention.
func New(root string) (logr.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}

	log := zapr.NewLogger(zl).WithName(root)
	return log, func() { _ = zl.Sync() }, nil
}

// NewDevelopment builds a human-readable console logger for tests and
// local runs, grounded on the same zapr.NewLogger wrapping as New.
func NewDevelopment(root string) logr.Logger {
	zl, err := zap.NewDevelopment()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zl).WithName(root)
}
