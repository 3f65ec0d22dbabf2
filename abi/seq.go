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

package abi

import "fmt"

// RawDescriptor is one undecoded record from a metadata blob.
type RawDescriptor struct {
	Header DescriptorHeader
	Body   []byte
}

// DescriptorSeq walks the records of one metadata blob in order. It is
// finite and restartable: Reset rewinds to the first record. Consumers fold
// over it and stop at the first rejection instead of threading an
// accumulator through a callback boundary.
type DescriptorSeq struct {
	records []byte
	rest    []byte
}

// NewDescriptorSeq validates the container header of blob and returns a
// sequence over its descriptor region. A nil blob, a short or ill-formed
// header, or a descriptor region overrunning the blob is a structural error.
func NewDescriptorSeq(blob []byte) (*DescriptorSeq, error) {
	if blob == nil {
		return nil, fmt.Errorf("nil metadata blob")
	}
	var hdr ContainerHeader
	if err := hdr.PopulateFromBytes(blob); err != nil {
		return nil, err
	}
	if hdr.DescriptorsSize > uint64(len(blob)-SizeofContainerHeader) {
		return nil, fmt.Errorf("descriptor region overruns blob: %d > %d",
			hdr.DescriptorsSize, len(blob)-SizeofContainerHeader)
	}
	records := blob[SizeofContainerHeader : SizeofContainerHeader+int(hdr.DescriptorsSize)]
	return &DescriptorSeq{records: records, rest: records}, nil
}

// Next returns the next record, or (nil, nil) once the sequence is
// exhausted. A record whose header or body violates the record framing ends
// the sequence with an error.
func (s *DescriptorSeq) Next() (*RawDescriptor, error) {
	if len(s.rest) == 0 {
		return nil, nil
	}
	var hdr DescriptorHeader
	if err := hdr.PopulateFromBytes(s.rest); err != nil {
		return nil, err
	}
	if hdr.NumBytesFollowing%8 != 0 {
		return nil, fmt.Errorf("descriptor body size %d is not 8-byte aligned", hdr.NumBytesFollowing)
	}
	// Compare against the remaining bytes rather than summing with the
	// header size: the body size field is attacker controlled and the sum
	// can wrap around uint64.
	remaining := uint64(len(s.rest) - SizeofDescriptorHeader)
	if hdr.NumBytesFollowing > remaining {
		return nil, fmt.Errorf("descriptor overruns region: body of %d bytes with %d left", hdr.NumBytesFollowing, remaining)
	}
	total := uint64(SizeofDescriptorHeader) + hdr.NumBytesFollowing
	d := &RawDescriptor{
		Header: hdr,
		Body:   s.rest[SizeofDescriptorHeader:total],
	}
	s.rest = s.rest[total:]
	return d, nil
}

// Reset rewinds the sequence to the first record.
func (s *DescriptorSeq) Reset() { s.rest = s.records }
