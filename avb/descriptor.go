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

// Package avb builds the verified descriptor store from boot metadata.
//
// The store holds at most one hash descriptor per known partition. It is
// populated in exactly one pass over one metadata blob, before any
// concurrent access is possible, and is read only for the rest of the
// process; later image verification consults it for expected digests.
package avb

import (
	"errors"
	"fmt"

	"github.com/protectedvm/pvmfw/abi"
	"go.uber.org/multierr"
)

var (
	// ErrIO reports a nil or structurally unusable metadata blob.
	ErrIO = errors.New("I/O error while reading boot metadata")
	// ErrInvalidMetadata reports metadata whose descriptors violate what
	// this firmware accepts. Both errors are fatal to the boot sequence;
	// verification failures are never downgraded to warnings.
	ErrInvalidMetadata = errors.New("invalid boot metadata")
)

// HashDescriptor binds one known partition to the digest its image must
// have. Immutable once built; identity is the partition name.
type HashDescriptor struct {
	PartitionName PartitionName
	Digest        [abi.DigestSize]byte
	ImageSize     uint64
	Flags         uint32
}

// Descriptors is the verified descriptor store: one fixed slot per known
// partition, no dynamic growth. Distinctness of stored partition names holds
// by construction of the arena.
type Descriptors struct {
	slots   [NumKnownPartitions]HashDescriptor
	present [NumKnownPartitions]bool
	count   int
}

// BuildDescriptors folds the record sequence of blob into a store,
// terminating on the first rejected record. Rejections are: a record kind
// other than hash, an unknown partition identifier, a duplicate for an
// already-present partition, or a framing violation mid-sequence. A rejected
// record never mutates the store.
func BuildDescriptors(blob []byte) (*Descriptors, error) {
	seq, err := abi.NewDescriptorSeq(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	ds := &Descriptors{}
	for {
		raw, err := seq.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		if raw == nil {
			return ds, nil
		}
		if err := ds.push(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
	}
}

func (ds *Descriptors) push(raw *abi.RawDescriptor) error {
	if raw.Header.Tag != abi.DescriptorTagHash {
		return fmt.Errorf("unsupported descriptor tag %d", raw.Header.Tag)
	}
	decoded, err := abi.ParseHashDescriptor(raw.Body)
	if err != nil {
		return err
	}
	partition, err := PartitionNameFromString(decoded.PartitionName)
	if err != nil {
		return err
	}
	if ds.present[partition] {
		return fmt.Errorf("duplicate hash descriptor for partition %q", partition)
	}
	ds.slots[partition] = HashDescriptor{
		PartitionName: partition,
		Digest:        decoded.Digest,
		ImageSize:     decoded.ImageSize,
		Flags:         decoded.Flags,
	}
	ds.present[partition] = true
	ds.count++
	return nil
}

// FindHashDescriptor returns the stored descriptor for partition.
func (ds *Descriptors) FindHashDescriptor(partition PartitionName) (*HashDescriptor, error) {
	if partition < 0 || partition >= NumKnownPartitions || !ds.present[partition] {
		return nil, fmt.Errorf("%w: no hash descriptor for partition %q", ErrInvalidMetadata, partition)
	}
	return &ds.slots[partition], nil
}

// NumHashDescriptor returns how many partitions have a stored descriptor.
func (ds *Descriptors) NumHashDescriptor() int { return ds.count }

// RequireAll confirms that none of the given partitions had its descriptor
// silently omitted from the metadata, aggregating every absence into one
// error.
func (ds *Descriptors) RequireAll(partitions ...PartitionName) error {
	var errs []error
	for _, p := range partitions {
		if _, err := ds.FindHashDescriptor(p); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
