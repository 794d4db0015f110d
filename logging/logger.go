/*
Copyright 2026 The rescache Authors

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

// Package logging configures the structured logger used across rescache.
// It is grounded on github.com/fluxcd/pkg/runtime/logger: the same
// Options{LogEncoding, LogLevel}/BindFlags shape and the same choice of
// go-logr/logr as the interface consumers hold, backed by go.uber.org/zap.
// The teacher wires logr to zap through
// sigs.k8s.io/controller-runtime/pkg/log/zap, which also installs the
// result as klog's global logger — both Kubernetes-specific concerns this
// module has no use for. github.com/go-logr/zapr is the direct bridge
// between the same two libraries (logr and zap) without the
// controller-runtime dependency, so it is used here instead.
package logging

import (
	"context"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	flagLogEncoding = "log-encoding"
	flagLogLevel    = "log-level"
)

var levelStrings = map[string]zapcore.Level{
	"trace": zapcore.DebugLevel - 1,
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"error": zapcore.ErrorLevel,
}

// Options contains the configuration for the package-wide logger.
type Options struct {
	LogEncoding string
	LogLevel    string
}

// BindFlags binds Options fields to fs, mirroring
// fluxcd/pkg/runtime/logger.Options.BindFlags.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogEncoding, flagLogEncoding, "json",
		"Log encoding format. Can be 'json' or 'console'.")
	fs.StringVar(&o.LogLevel, flagLogLevel, "info",
		"Log verbosity level. Can be one of 'trace', 'debug', 'info', 'error'.")
}

// New returns a logr.Logger configured per opts, with ISO8601 timestamps.
func New(opts Options) logr.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.LogEncoding == "console" {
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		encoder = zapcore.NewJSONEncoder(cfg)
	}

	level := zapcore.InfoLevel
	if l, ok := levelStrings[opts.LogLevel]; ok {
		level = l
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return zapr.NewLogger(zap.New(core))
}

// contextKey is unexported so only this package can stash a logger in a
// context.Context, the way sigs.k8s.io/controller-runtime's logger does.
type contextKey struct{}

// Discard is a no-op logger, used as the fallback FromContext result.
var Discard = logr.Discard()

// IntoContext returns a copy of ctx carrying log.
func IntoContext(ctx context.Context, log logr.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger carried by ctx, or Discard if none was set.
func FromContext(ctx context.Context) logr.Logger {
	if log, ok := ctx.Value(contextKey{}).(logr.Logger); ok {
		return log
	}
	return Discard
}
