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

// Package fakeavb builds metadata blobs for tests: well-formed containers,
// individual hash records, and selectively corrupted variants.
package fakeavb

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/protectedvm/pvmfw/abi"
)

// PartitionDigest returns the deterministic digest fakeavb assigns to a
// partition: the SHA-256 of its name.
func PartitionDigest(partition string) [abi.DigestSize]byte {
	return sha256.Sum256([]byte(partition))
}

// HashRecord encodes one complete hash record for partition with the
// package's deterministic digest.
func HashRecord(t testing.TB, partition string, imageSize uint64, flags uint32) []byte {
	t.Helper()
	d := &abi.HashDescriptor{
		ImageSize:     imageSize,
		Flags:         flags,
		PartitionName: partition,
		Digest:        PartitionDigest(partition),
	}
	b, err := d.Bytes()
	if err != nil {
		t.Fatalf("failed to encode hash record for %q: %v", partition, err)
	}
	return b
}

// RecordWithTag encodes a record with an arbitrary tag and body, for
// exercising the unsupported-kind rejection.
func RecordWithTag(t testing.TB, tag uint64, body []byte) []byte {
	t.Helper()
	if len(body)%8 != 0 {
		t.Fatalf("record body of %d bytes is not 8-byte aligned", len(body))
	}
	out := make([]byte, abi.SizeofDescriptorHeader+len(body))
	hdr := abi.DescriptorHeader{Tag: tag, NumBytesFollowing: uint64(len(body))}
	if err := hdr.Put(out); err != nil {
		t.Fatalf("failed to encode record header: %v", err)
	}
	copy(out[abi.SizeofDescriptorHeader:], body)
	return out
}

// Blob wraps records in a container header.
func Blob(t testing.TB, records ...[]byte) []byte {
	t.Helper()
	var size int
	for _, r := range records {
		size += len(r)
	}
	out := make([]byte, abi.SizeofContainerHeader, abi.SizeofContainerHeader+size)
	hdr := abi.ContainerHeader{Version: abi.ContainerVersion, DescriptorsSize: uint64(size)}
	if err := hdr.Put(out); err != nil {
		t.Fatalf("failed to encode container header: %v", err)
	}
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// CleanExample returns a blob carrying one well-formed hash record per known
// partition.
func CleanExample(t testing.TB) []byte {
	t.Helper()
	return Blob(t,
		HashRecord(t, "boot", 0x200000, 0),
		HashRecord(t, "initrd_normal", 0x80000, 0),
		HashRecord(t, "initrd_debug", 0x90000, 0),
	)
}

// TruncateLastRecord drops the final 8 bytes of blob's descriptor region and
// shrinks the advertised region size to match, so the container parses but
// the last record overruns the region: a framing violation mid-sequence.
func TruncateLastRecord(t testing.TB, blob []byte) []byte {
	t.Helper()
	if len(blob) < abi.SizeofContainerHeader+8 {
		t.Fatalf("blob of %d bytes has no record to truncate", len(blob))
	}
	out := make([]byte, len(blob)-8)
	copy(out, blob)
	binary.BigEndian.PutUint64(out[8:16], uint64(len(out)-abi.SizeofContainerHeader))
	return out
}
