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

package avb

import "fmt"

// PartitionName identifies one of the boot partitions this firmware knows
// how to verify. The set is closed: a descriptor naming anything else is
// rejected during extraction.
type PartitionName int

const (
	// PartitionKernel is the guest kernel, named "boot" on the wire.
	PartitionKernel PartitionName = iota
	// PartitionInitrdNormal is the ramdisk for normal boot.
	PartitionInitrdNormal
	// PartitionInitrdDebug is the ramdisk for debuggable boot.
	PartitionInitrdDebug

	// NumKnownPartitions is the size of the closed partition set.
	NumKnownPartitions = 3
)

var partitionWireNames = [NumKnownPartitions]string{
	PartitionKernel:       "boot",
	PartitionInitrdNormal: "initrd_normal",
	PartitionInitrdDebug:  "initrd_debug",
}

// PartitionNameFromString maps a wire-format partition identifier onto the
// known set.
func PartitionNameFromString(s string) (PartitionName, error) {
	for p, name := range partitionWireNames {
		if s == name {
			return PartitionName(p), nil
		}
	}
	return 0, fmt.Errorf("unknown partition %q", s)
}

func (p PartitionName) String() string {
	if p < 0 || p >= NumKnownPartitions {
		return fmt.Sprintf("PartitionName(%d)", int(p))
	}
	return partitionWireNames[p]
}

// KnownPartitions returns every member of the closed partition set in wire
// order.
func KnownPartitions() []PartitionName {
	return []PartitionName{PartitionKernel, PartitionInitrdNormal, PartitionInitrdDebug}
}
