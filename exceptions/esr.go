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

package exceptions

import "fmt"

// FaultClass is the closed set of semantic fault categories the firmware
// distinguishes. Only translation and permission faults are ever serviced.
type FaultClass int

const (
	// TranslationFault is a data abort on an unmapped page, the trigger for
	// demand-mapping MMIO guard pages.
	TranslationFault FaultClass = iota
	// PermissionFault is a data abort on a mapped page with insufficient
	// permissions, the trigger for lazy dirty-bit updates.
	PermissionFault
	// SyncExternalAbort is a synchronous external abort, reported but never
	// serviced.
	SyncExternalAbort
	// UnknownFault is any syndrome outside the recognized encodings.
	UnknownFault
)

// AArch64 ESR_EL1 encodings for 32-bit data aborts from the current
// exception level.
const (
	extAbortESR uint64 = 0x96000010

	translationFaultBase uint64 = 0x96000004
	translationFaultMask uint64 = 0x143

	permissionFaultBase uint64 = 0x9600004C
	permissionFaultMask uint64 = 0x103
)

// Esr is a classified exception syndrome. Raw always preserves the register
// value as read, so unknown syndromes stay diagnosable.
type Esr struct {
	Raw   uint64
	Class FaultClass
}

// ClassifyEsr decodes a raw syndrome value into its fault class. It is pure
// and total: every 64-bit input maps to exactly one class, exact encodings
// are matched before masked ones, and repeated calls always agree.
func ClassifyEsr(raw uint64) Esr {
	switch {
	case raw == extAbortESR:
		return Esr{Raw: raw, Class: SyncExternalAbort}
	case raw&^translationFaultMask == translationFaultBase:
		return Esr{Raw: raw, Class: TranslationFault}
	case raw&^permissionFaultMask == permissionFaultBase:
		return Esr{Raw: raw, Class: PermissionFault}
	default:
		return Esr{Raw: raw, Class: UnknownFault}
	}
}

func (e Esr) String() string {
	switch e.Class {
	case TranslationFault:
		return "Translation fault"
	case PermissionFault:
		return "Permission fault"
	case SyncExternalAbort:
		return "Synchronous external abort"
	default:
		return fmt.Sprintf("Unknown exception esr=%#08x", e.Raw)
	}
}
