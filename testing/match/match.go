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

// Package match provides test helpers for checking errors against
// expectations.
package match

import (
	"errors"
	"strings"
)

// Error reports whether err matches the expected message wantErr. An empty
// wantErr means err must be nil; a non-nil err matches when its message
// contains wantErr.
func Error(err error, wantErr string) bool {
	if err == nil {
		return wantErr == ""
	}
	// Every message contains the empty string, so require wantErr to be
	// nonempty here: a test that expected no error must not accept one.
	return wantErr != "" && strings.Contains(err.Error(), wantErr)
}

// Sentinel reports whether err wraps target (errors.Is), with a nil target
// meaning err must be nil.
func Sentinel(err, target error) bool {
	if target == nil {
		return err == nil
	}
	return errors.Is(err, target)
}
