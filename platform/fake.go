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

package platform

// Fake is a Machine whose register values are set directly and whose reboots
// are counted instead of performed. Unlike the real primitive, Reboot
// returns, so tests can assert on what the handler did afterwards.
type Fake struct {
	ESR     uint64
	FAR     uint64
	Reboots int
}

// ReadESR returns the programmed syndrome value.
func (f *Fake) ReadESR() uint64 { return f.ESR }

// ReadFAR returns the programmed fault address.
func (f *Fake) ReadFAR() uint64 { return f.FAR }

// Reboot records the reset request.
func (f *Fake) Reboot() { f.Reboots++ }
