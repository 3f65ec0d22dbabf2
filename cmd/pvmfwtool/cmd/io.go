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

package cmd

import "os"

// IO provides the file access commands need.
type IO interface {
	// ReadFile reads the entire contents of a file at the given path, or
	// returns an error.
	ReadFile(path string) ([]byte, error)
}

// OSIO implements the IO interface with the os library.
type OSIO struct{}

// ReadFile reads the entire contents of a file at the given path, or returns
// an error.
func (OSIO) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
