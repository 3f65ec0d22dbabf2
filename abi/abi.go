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

// Package abi defines binary interface conversion functions for the
// descriptor records carried in verified-boot metadata.
//
// All integer fields are big endian and every record is padded to an 8-byte
// boundary, as produced by the metadata signing tooling. Signature
// verification over the container is the verification library's concern;
// this package only converts between bytes and typed records.
package abi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// ContainerMagic opens every metadata blob.
	ContainerMagic = "AVBD"
	// ContainerVersion is the only release version of the container format.
	ContainerVersion = 1
	// SizeofContainerHeader is the ABI size of the container header:
	// magic, version, and the total size of the descriptor region.
	SizeofContainerHeader = 16

	// SizeofDescriptorHeader is the ABI size of the generic record header.
	SizeofDescriptorHeader = 16
	// SizeofHashDescriptorBody is the fixed portion of a hash record body,
	// before the variable-length partition name and digest.
	SizeofHashDescriptorBody = 24

	// DescriptorTagProperty tags a free-form property record. Not handled by
	// this firmware.
	DescriptorTagProperty uint64 = 0
	// DescriptorTagHash tags a hash record binding a partition to a digest.
	DescriptorTagHash uint64 = 2

	// DigestSize is the length of every digest field (SHA-256).
	DigestSize = 32
	// MaxPartitionNameLen bounds the partition name field.
	MaxPartitionNameLen = 64
)

// DescriptorHeader is the generic header preceding every record.
type DescriptorHeader struct {
	Tag               uint64
	NumBytesFollowing uint64
}

// PopulateFromBytes reads a DescriptorHeader from data.
func (h *DescriptorHeader) PopulateFromBytes(data []byte) error {
	if len(data) < SizeofDescriptorHeader {
		return fmt.Errorf("data too small for descriptor header: %d < %d", len(data), SizeofDescriptorHeader)
	}
	h.Tag = binary.BigEndian.Uint64(data[0:8])
	h.NumBytesFollowing = binary.BigEndian.Uint64(data[8:16])
	return nil
}

// Put writes the header to data.
func (h *DescriptorHeader) Put(data []byte) error {
	if len(data) < SizeofDescriptorHeader {
		return fmt.Errorf("data too small for descriptor header: %d < %d", len(data), SizeofDescriptorHeader)
	}
	binary.BigEndian.PutUint64(data[0:8], h.Tag)
	binary.BigEndian.PutUint64(data[8:16], h.NumBytesFollowing)
	return nil
}

// HashDescriptor is the decoded form of a hash record: the expected digest
// of imageSize bytes of the named partition.
type HashDescriptor struct {
	ImageSize     uint64
	Flags         uint32
	PartitionName string
	Digest        [DigestSize]byte
}

// ParseHashDescriptor decodes a hash record body (the bytes following the
// generic header).
func ParseHashDescriptor(body []byte) (*HashDescriptor, error) {
	if len(body) < SizeofHashDescriptorBody {
		return nil, fmt.Errorf("hash descriptor body too small: %d < %d", len(body), SizeofHashDescriptorBody)
	}
	imageSize := binary.BigEndian.Uint64(body[0:8])
	nameLen := binary.BigEndian.Uint32(body[8:12])
	digestLen := binary.BigEndian.Uint32(body[12:16])
	flags := binary.BigEndian.Uint32(body[16:20])
	// body[20:24] is reserved.
	if nameLen == 0 || nameLen > MaxPartitionNameLen {
		return nil, fmt.Errorf("invalid partition name length %d", nameLen)
	}
	if digestLen != DigestSize {
		return nil, fmt.Errorf("invalid digest length %d, want %d", digestLen, DigestSize)
	}
	need := SizeofHashDescriptorBody + int(nameLen) + DigestSize
	if len(body) < need {
		return nil, fmt.Errorf("hash descriptor body truncated: %d < %d", len(body), need)
	}
	d := &HashDescriptor{
		ImageSize:     imageSize,
		Flags:         flags,
		PartitionName: string(body[SizeofHashDescriptorBody : SizeofHashDescriptorBody+int(nameLen)]),
	}
	copy(d.Digest[:], body[SizeofHashDescriptorBody+int(nameLen):need])
	return d, nil
}

// Bytes encodes the descriptor as a complete record, generic header
// included, padded to an 8-byte boundary.
func (d *HashDescriptor) Bytes() ([]byte, error) {
	nameLen := len(d.PartitionName)
	if nameLen == 0 || nameLen > MaxPartitionNameLen {
		return nil, fmt.Errorf("invalid partition name length %d", nameLen)
	}
	bodyLen := SizeofHashDescriptorBody + nameLen + DigestSize
	padded := (bodyLen + 7) &^ 7
	out := make([]byte, SizeofDescriptorHeader+padded)
	hdr := DescriptorHeader{Tag: DescriptorTagHash, NumBytesFollowing: uint64(padded)}
	if err := hdr.Put(out); err != nil {
		return nil, err
	}
	body := out[SizeofDescriptorHeader:]
	binary.BigEndian.PutUint64(body[0:8], d.ImageSize)
	binary.BigEndian.PutUint32(body[8:12], uint32(nameLen))
	binary.BigEndian.PutUint32(body[12:16], DigestSize)
	binary.BigEndian.PutUint32(body[16:20], d.Flags)
	copy(body[SizeofHashDescriptorBody:], d.PartitionName)
	copy(body[SizeofHashDescriptorBody+nameLen:], d.Digest[:])
	return out, nil
}

// ContainerHeader is the header opening every metadata blob.
type ContainerHeader struct {
	Version         uint32
	DescriptorsSize uint64
}

// PopulateFromBytes reads a ContainerHeader from data, validating magic and
// version.
func (c *ContainerHeader) PopulateFromBytes(data []byte) error {
	if len(data) < SizeofContainerHeader {
		return fmt.Errorf("data too small for container header: %d < %d", len(data), SizeofContainerHeader)
	}
	if !bytes.Equal(data[0:4], []byte(ContainerMagic)) {
		return fmt.Errorf("bad container magic %q", data[0:4])
	}
	c.Version = binary.BigEndian.Uint32(data[4:8])
	if c.Version != ContainerVersion {
		return fmt.Errorf("unsupported container version %d", c.Version)
	}
	c.DescriptorsSize = binary.BigEndian.Uint64(data[8:16])
	return nil
}

// Put writes the header, magic included, to data.
func (c *ContainerHeader) Put(data []byte) error {
	if len(data) < SizeofContainerHeader {
		return fmt.Errorf("data too small for container header: %d < %d", len(data), SizeofContainerHeader)
	}
	copy(data[0:4], ContainerMagic)
	binary.BigEndian.PutUint32(data[4:8], c.Version)
	binary.BigEndian.PutUint64(data[8:16], c.DescriptorsSize)
	return nil
}
