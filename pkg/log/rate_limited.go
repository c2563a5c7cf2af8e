// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedLogger forwards at most one message per interval. The first
// message let through after a quiet period reports how many were dropped.
type rateLimitedLogger struct {
	logger  Logger
	limit   *rate.Limiter
	dropped atomic.Uint64
}

func (rl *rateLimitedLogger) admit(format string, v []any) (string, []any, bool) {
	if !rl.limit.Allow() {
		rl.dropped.Add(1)
		return "", nil, false
	}
	if n := rl.dropped.Swap(0); n > 0 {
		return format + " (%d similar messages suppressed)", append(v[:len(v):len(v)], n), true
	}
	return format, v, true
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if !rl.logger.IsLogging(Debug) {
		return
	}
	if format, v, ok := rl.admit(format, v); ok {
		rl.logger.Debugf(format, v...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if format, v, ok := rl.admit(format, v); ok {
		rl.logger.Infof(format, v...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if format, v, ok := rl.admit(format, v); ok {
		rl.logger.Warningf(format, v...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}

// BasicRateLimitedLogger returns a Logger that logs to the global logger no
// more than once per the provided duration.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(Log(), every)
}

// RateLimitedLogger returns a Logger that logs to the provided logger no more
// than once per the provided duration.
func RateLimitedLogger(logger Logger, every time.Duration) Logger {
	return &rateLimitedLogger{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}

// KeyedRateLimiter hands out one rate limited Logger per key. Faults of one
// task are limited independently of every other task's.
type KeyedRateLimiter[K comparable] struct {
	logger Logger
	every  time.Duration

	mu      sync.Mutex
	loggers map[K]Logger
}

// NewKeyedRateLimiter returns a KeyedRateLimiter backed by logger.
func NewKeyedRateLimiter[K comparable](logger Logger, every time.Duration) *KeyedRateLimiter[K] {
	return &KeyedRateLimiter[K]{
		logger:  logger,
		every:   every,
		loggers: make(map[K]Logger),
	}
}

// For returns the Logger for key.
func (k *KeyedRateLimiter[K]) For(key K) Logger {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.loggers[key]
	if !ok {
		l = RateLimitedLogger(k.logger, k.every)
		k.loggers[key] = l
	}
	return l
}

// Forget drops the Logger for key.
func (k *KeyedRateLimiter[K]) Forget(key K) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.loggers, key)
}
