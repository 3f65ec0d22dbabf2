// Copyright 2025 the ProtectedVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package console provides the firmware's diagnostic-output sink.
//
// Leveled logging goes through github.com/google/logger. Exception handlers
// take a scoped suppression of the sink while a fault is in flight so that no
// log write can touch the memory-mapped UART and raise a nested fault; the
// dedicated Eprintf path stays open for the final fail-stop report.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/logger"
)

// Sink is a diagnostic-output destination with scoped suppression.
type Sink struct {
	log        *logger.Logger
	w          io.Writer
	suppressed int32
}

// New returns a Sink writing to w.
func New(w io.Writer) *Sink {
	return &Sink{
		log: logger.Init("pvmfw", false, false, w),
		w:   w,
	}
}

// Default returns a Sink writing to standard error.
func Default() *Sink { return New(os.Stderr) }

// Suppress raises the suppression depth and returns the release function.
// While the depth is nonzero, leveled log output is dropped. The release is
// idempotent, so callers may both defer it and invoke it early.
func (s *Sink) Suppress() func() {
	atomic.AddInt32(&s.suppressed, 1)
	var once sync.Once
	return func() {
		once.Do(func() { atomic.AddInt32(&s.suppressed, -1) })
	}
}

// Suppressed reports whether leveled output is currently dropped.
func (s *Sink) Suppressed() bool { return atomic.LoadInt32(&s.suppressed) > 0 }

// Infof logs at info level unless suppressed.
func (s *Sink) Infof(format string, args ...any) {
	if s.Suppressed() {
		return
	}
	s.log.Infof(format, args...)
}

// Warningf logs at warning level unless suppressed.
func (s *Sink) Warningf(format string, args ...any) {
	if s.Suppressed() {
		return
	}
	s.log.Warningf(format, args...)
}

// Errorf logs at error level unless suppressed.
func (s *Sink) Errorf(format string, args ...any) {
	if s.Suppressed() {
		return
	}
	s.log.Errorf(format, args...)
}

// Eprintf writes one line straight to the underlying writer, bypassing both
// the logger and suppression. This is the fail-stop reporting path: the
// handler has already decided the write is safe to attempt.
func (s *Sink) Eprintf(format string, args ...any) {
	fmt.Fprintf(s.w, format+"\n", args...)
}

// Close releases the underlying logger.
func (s *Sink) Close() {
	s.log.Close()
}
