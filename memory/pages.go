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

package memory

// GranuleSize is the translation granule. The protected VM runs with 4 KiB
// pages; the tracker, the MMIO guard, and the UART-page check in the
// exception path all operate at this granularity.
const GranuleSize uint64 = 0x1000

// PageOf returns the base address of the page containing addr.
func PageOf(addr uint64) uint64 { return addr &^ (GranuleSize - 1) }
