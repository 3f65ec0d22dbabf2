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

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/protectedvm/pvmfw/abi"
	"github.com/protectedvm/pvmfw/testing/fakeavb"
	"github.com/protectedvm/pvmfw/testing/match"
	"go.uber.org/multierr"
)

func TestBuildDescriptorsCleanMetadata(t *testing.T) {
	ds, err := BuildDescriptors(fakeavb.CleanExample(t))
	if err != nil {
		t.Fatalf("BuildDescriptors() = %v, want nil", err)
	}
	if got := ds.NumHashDescriptor(); got != 3 {
		t.Errorf("NumHashDescriptor() = %d, want 3", got)
	}
	for _, p := range KnownPartitions() {
		d, err := ds.FindHashDescriptor(p)
		if err != nil {
			t.Errorf("FindHashDescriptor(%v) = %v, want nil", p, err)
			continue
		}
		if d.PartitionName != p {
			t.Errorf("FindHashDescriptor(%v).PartitionName = %v", p, d.PartitionName)
		}
		if want := fakeavb.PartitionDigest(p.String()); d.Digest != want {
			t.Errorf("FindHashDescriptor(%v) stored digest %x, want %x", p, d.Digest, want)
		}
	}
	if err := ds.RequireAll(KnownPartitions()...); err != nil {
		t.Errorf("RequireAll() = %v, want nil", err)
	}
}

func TestBuildDescriptorsNilBlob(t *testing.T) {
	if _, err := BuildDescriptors(nil); !errors.Is(err, ErrIO) {
		t.Errorf("BuildDescriptors(nil) = %v, want %v", err, ErrIO)
	}
}

func TestBuildDescriptorsBadContainer(t *testing.T) {
	if _, err := BuildDescriptors([]byte("not a container")); !errors.Is(err, ErrIO) {
		t.Errorf("BuildDescriptors(garbage) = %v, want %v", err, ErrIO)
	}
}

func TestBuildDescriptorsRejectsNonHashKind(t *testing.T) {
	blob := fakeavb.Blob(t,
		fakeavb.HashRecord(t, "boot", 0x1000, 0),
		fakeavb.RecordWithTag(t, abi.DescriptorTagProperty, make([]byte, 16)),
	)
	_, err := BuildDescriptors(blob)
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("BuildDescriptors(property record) = %v, want %v", err, ErrInvalidMetadata)
	}
	if !match.Error(err, "unsupported descriptor tag 0") {
		t.Errorf("BuildDescriptors(property record) = %v, want tag rejection", err)
	}
}

func TestBuildDescriptorsRejectsUnknownPartition(t *testing.T) {
	blob := fakeavb.Blob(t, fakeavb.HashRecord(t, "vendor", 0x1000, 0))
	_, err := BuildDescriptors(blob)
	if !errors.Is(err, ErrInvalidMetadata) || !match.Error(err, `unknown partition "vendor"`) {
		t.Errorf("BuildDescriptors(unknown partition) = %v, want unknown-partition rejection", err)
	}
}

func TestBuildDescriptorsRejectsDuplicatePartition(t *testing.T) {
	blob := fakeavb.Blob(t,
		fakeavb.HashRecord(t, "boot", 0x1000, 0),
		fakeavb.HashRecord(t, "initrd_normal", 0x2000, 0),
		fakeavb.HashRecord(t, "boot", 0x3000, 0),
	)
	_, err := BuildDescriptors(blob)
	if !errors.Is(err, ErrInvalidMetadata) || !match.Error(err, `duplicate hash descriptor for partition "boot"`) {
		t.Errorf("BuildDescriptors(duplicate) = %v, want duplicate rejection", err)
	}
}

func TestBuildDescriptorsStopsAtFramingViolation(t *testing.T) {
	blob := fakeavb.TruncateLastRecord(t, fakeavb.CleanExample(t))
	if _, err := BuildDescriptors(blob); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("BuildDescriptors(truncated) = %v, want %v", err, ErrInvalidMetadata)
	}
}

func TestBuildDescriptorsRejectsWrappingBodySize(t *testing.T) {
	// A record header whose body size is within 16 bytes of the uint64
	// maximum (and 8-byte aligned) so that a naive header+body sum wraps.
	record := make([]byte, abi.SizeofDescriptorHeader)
	hdr := abi.DescriptorHeader{Tag: abi.DescriptorTagHash, NumBytesFollowing: ^uint64(15)}
	if err := hdr.Put(record); err != nil {
		t.Fatalf("Put() = %v, want nil", err)
	}
	_, err := BuildDescriptors(fakeavb.Blob(t, record))
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("BuildDescriptors(wrapping body size) = %v, want %v", err, ErrInvalidMetadata)
	}
	if !match.Error(err, "overruns region") {
		t.Errorf("BuildDescriptors(wrapping body size) = %v, want overrun rejection", err)
	}
}

func TestRejectedRecordDoesNotMutateStore(t *testing.T) {
	// Feed the same callback sequence by hand so the partial store is
	// observable: three good records, then a rejected fourth.
	seq, err := abi.NewDescriptorSeq(fakeavb.Blob(t,
		fakeavb.HashRecord(t, "boot", 0x1000, 0),
		fakeavb.HashRecord(t, "initrd_normal", 0x2000, 0),
		fakeavb.HashRecord(t, "initrd_debug", 0x3000, 0),
		fakeavb.HashRecord(t, "vendor", 0x4000, 0),
	))
	if err != nil {
		t.Fatalf("NewDescriptorSeq() = %v, want nil", err)
	}
	ds := &Descriptors{}
	var pushErrs []error
	for {
		raw, err := seq.Next()
		if err != nil {
			t.Fatalf("Next() = %v, want nil", err)
		}
		if raw == nil {
			break
		}
		if err := ds.push(raw); err != nil {
			pushErrs = append(pushErrs, err)
		}
	}
	if len(pushErrs) != 1 || !match.Error(pushErrs[0], `unknown partition "vendor"`) {
		t.Fatalf("push errors = %v, want exactly the vendor rejection", pushErrs)
	}
	if got := ds.NumHashDescriptor(); got != 3 {
		t.Errorf("NumHashDescriptor() after rejection = %d, want 3", got)
	}
	if _, err := ds.FindHashDescriptor(PartitionKernel); err != nil {
		t.Errorf("FindHashDescriptor(kernel) = %v, want nil", err)
	}
}

func TestFindHashDescriptorEmptyStore(t *testing.T) {
	ds, err := BuildDescriptors(fakeavb.Blob(t))
	if err != nil {
		t.Fatalf("BuildDescriptors(empty) = %v, want nil", err)
	}
	if got := ds.NumHashDescriptor(); got != 0 {
		t.Errorf("NumHashDescriptor() = %d, want 0", got)
	}
	for _, p := range KnownPartitions() {
		if _, err := ds.FindHashDescriptor(p); !errors.Is(err, ErrInvalidMetadata) {
			t.Errorf("FindHashDescriptor(%v) on empty store = %v, want %v", p, err, ErrInvalidMetadata)
		}
	}
	if _, err := ds.FindHashDescriptor(PartitionName(99)); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("FindHashDescriptor(out of range) = %v, want %v", err, ErrInvalidMetadata)
	}
}

func TestRequireAllAggregatesEveryAbsence(t *testing.T) {
	ds, err := BuildDescriptors(fakeavb.Blob(t, fakeavb.HashRecord(t, "boot", 0x1000, 0)))
	if err != nil {
		t.Fatalf("BuildDescriptors() = %v, want nil", err)
	}
	err = ds.RequireAll(KnownPartitions()...)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("RequireAll() reported %d absences (%v), want 2", got, err)
	}
	for _, want := range []string{"initrd_normal", "initrd_debug"} {
		if !match.Error(err, want) {
			t.Errorf("RequireAll() = %v, missing %q", err, want)
		}
	}
}

func TestPartitionNameMapping(t *testing.T) {
	for _, p := range KnownPartitions() {
		got, err := PartitionNameFromString(p.String())
		if err != nil {
			t.Errorf("PartitionNameFromString(%q) = %v, want nil", p.String(), err)
		}
		if got != p {
			t.Errorf("PartitionNameFromString(%q) = %v, want %v", p.String(), got, p)
		}
	}
	if _, err := PartitionNameFromString("system"); !match.Error(err, `unknown partition "system"`) {
		t.Errorf("PartitionNameFromString(system) = %v, want rejection", err)
	}
	if diff := cmp.Diff("boot", PartitionKernel.String()); diff != "" {
		t.Errorf("PartitionKernel wire name diff (-want +got): %s", diff)
	}
}
