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

// Package platform abstracts the machine-level primitives the firmware core
// consumes: syndrome and fault-address register reads, and the reset
// primitive. The exception vector ABI only passes the return address and
// saved processor state, so handlers read everything else through a Machine.
package platform

// UARTBase is the physical address of the console UART on the crosvm AArch64
// machine model. The UART is memory mapped, so a store to its page can itself
// raise a data abort while a fault is being reported.
const UARTBase uint64 = 0x3f8

// Machine provides access to the trapping CPU's machine state.
//
// Implementations must be callable from exception context: no allocation, no
// blocking, no re-entry into the exception machinery.
type Machine interface {
	// ReadESR returns the exception syndrome register for the current
	// exception level (ESR_EL1).
	ReadESR() uint64
	// ReadFAR returns the fault address register for the current exception
	// level (FAR_EL1).
	ReadFAR() uint64
	// Reboot resets the platform. On real hardware it does not return;
	// callers must not execute meaningful work after it.
	Reboot()
}
