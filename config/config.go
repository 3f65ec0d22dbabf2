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

// Package config locates the payloads appended to the firmware image: the
// verified-boot metadata blob, the debug policy, and the DICE handover.
//
// The appended region ends with a GUID-entry table. Each 18-byte entry is a
// GUID plus the combined size of the entry and the content block that
// precedes it; the table is terminated by a footer entry whose size covers
// the whole table. The table is walked back to front from the end of the
// image, and duplicate GUIDs are rejected.
package config

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	// SizeofEntry is the ABI size of one GUID-table entry.
	SizeofEntry = 18

	// FooterGUID terminates the appended-payload GUID table.
	FooterGUID = "2a07d5a8-e1d0-4e3e-8b44-3b4e31cf79e3"
	// VBMetaBlobGUID identifies the verified-boot metadata blob.
	VBMetaBlobGUID = "4ba5f439-2916-47d7-9a3d-2e9657dd33cb"
	// DebugPolicyGUID identifies the debug policy overlay.
	DebugPolicyGUID = "8835daae-e119-4b4c-9368-cbe69c9a7f2b"
	// DiceHandoverGUID identifies the DICE handover from the boot loader.
	DiceHandoverGUID = "d96c271c-2e8c-4e9e-8ddd-0269e16bbf9e"
)

// Entry is one decoded GUID-table entry.
type Entry struct {
	GUID uuid.UUID
	// Size covers the entry itself plus its content block.
	Size uint16
}

// PopulateFromBytes reads an Entry from data.
func (e *Entry) PopulateFromBytes(data []byte) error {
	if len(data) < SizeofEntry {
		return fmt.Errorf("data too small for GUID-table entry: %d < %d", len(data), SizeofEntry)
	}
	g, err := uuid.FromBytes(data[0:16])
	if err != nil {
		return err
	}
	e.GUID = g
	e.Size = binary.BigEndian.Uint16(data[16:18])
	return nil
}

// Put writes the entry to data.
func (e *Entry) Put(data []byte) error {
	if len(data) < SizeofEntry {
		return fmt.Errorf("data too small for GUID-table entry: %d < %d", len(data), SizeofEntry)
	}
	b, err := e.GUID.MarshalBinary()
	if err != nil {
		return err
	}
	copy(data[0:16], b)
	binary.BigEndian.PutUint16(data[16:18], e.Size)
	return nil
}

// GUIDToBlockMap returns a map from GUID string to the content block it
// identifies. The footer entry must close image; a missing footer, an entry
// overrunning the table, or a duplicate GUID is an error.
func GUIDToBlockMap(image []byte) (map[string][]byte, error) {
	if len(image) < SizeofEntry {
		return nil, fmt.Errorf("image too small for GUID-table footer: %d < %d", len(image), SizeofEntry)
	}
	var footer Entry
	if err := footer.PopulateFromBytes(image[len(image)-SizeofEntry:]); err != nil {
		return nil, err
	}
	if footer.GUID != uuid.MustParse(FooterGUID) {
		return nil, fmt.Errorf("image without appended GUID table: got footer %v, want %v",
			footer.GUID, FooterGUID)
	}
	if int(footer.Size) < SizeofEntry || int(footer.Size) > len(image) {
		return nil, fmt.Errorf("invalid GUID-table size %d for image of %d bytes", footer.Size, len(image))
	}

	// The table body sits between the footer's coverage start and the footer
	// entry itself.
	table := image[len(image)-int(footer.Size) : len(image)-SizeofEntry]
	unprocessed := len(table)
	blocks := make(map[string][]byte)
	for unprocessed > 0 {
		if unprocessed < SizeofEntry {
			return nil, fmt.Errorf("GUID table truncated: %d bytes left, entry needs %d", unprocessed, SizeofEntry)
		}
		var entry Entry
		if err := entry.PopulateFromBytes(table[unprocessed-SizeofEntry : unprocessed]); err != nil {
			return nil, err
		}
		if int(entry.Size) < SizeofEntry || int(entry.Size) > unprocessed {
			return nil, fmt.Errorf("corrupt GUID-table entry %v: size %d with %d bytes left",
				entry.GUID, entry.Size, unprocessed)
		}
		key := entry.GUID.String()
		if _, ok := blocks[key]; ok {
			return nil, fmt.Errorf("duplicate GUID %s in appended table", key)
		}
		blockStart := unprocessed - int(entry.Size)
		blocks[key] = table[blockStart : unprocessed-SizeofEntry]
		unprocessed = blockStart
	}
	return blocks, nil
}

// Entries is the typed view of the appended payloads. Absent payloads are
// nil; GUIDs this firmware does not recognize are preserved in Unknown.
type Entries struct {
	VBMeta       []byte
	DebugPolicy  []byte
	DiceHandover []byte
	Unknown      map[string][]byte
}

// ParseEntries builds the typed payload view of image.
func ParseEntries(image []byte) (*Entries, error) {
	blocks, err := GUIDToBlockMap(image)
	if err != nil {
		return nil, err
	}
	e := &Entries{Unknown: make(map[string][]byte)}
	for guid, block := range blocks {
		switch guid {
		case VBMetaBlobGUID:
			e.VBMeta = block
		case DebugPolicyGUID:
			e.DebugPolicy = block
		case DiceHandoverGUID:
			e.DiceHandover = block
		default:
			e.Unknown[guid] = block
		}
	}
	return e, nil
}
