// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Property (directory) entries. Each is a fixed 128-byte record; the root
// storage, storages and streams are all the same shape, ported from
// libclamav's ole2_read_property_tree. The flat enumerator below ignores
// prev/next/child sibling pointers on purpose -- spec.md calls for
// enumerating every entry in storage order rather than reconstructing the
// red-black tree, since a scanner only cares about reachable streams, not
// directory structure. BuildTree (tree.go) reconstructs the tree separately,
// for internal/fuse's presentation, by reading the same prev/next/child
// fields off the entries this enumerator already decoded.
package cfb

import (
	"fmt"
	"unicode/utf16"
)

const propertyEntrySize = 128

// Property types, from the on-disk color/type byte at offset 0x42.
const (
	PropTypeInvalid   = 0
	PropTypeStorage   = 1
	PropTypeStream    = 2
	PropTypeLockBytes = 3
	PropTypeProperty  = 4
	PropTypeRoot      = 5
)

// Property is one decoded directory entry.
type Property struct {
	Name       string
	RawName    string // name before non-printable escaping, for diagnostics
	Type       byte
	Color      byte
	Prev       int32
	Next       int32
	Child      int32
	StartBlock int32
	Size       int64

	// Index is this entry's slot in the directory stream (unused slots
	// included), the number Prev/Next/Child refer to; BuildTree resolves
	// those pointers against it.
	Index int
}

func (p *Property) IsStream() bool  { return p.Type == PropTypeStream }
func (p *Property) IsStorage() bool { return p.Type == PropTypeStorage || p.Type == PropTypeRoot }

// decodeProperty parses one 128-byte property record.
func decodeProperty(buf []byte, index int) (*Property, error) {
	if len(buf) != propertyEntrySize {
		return nil, fmt.Errorf("cfb: property entry must be %d bytes, got %d", propertyEntrySize, len(buf))
	}

	nameSize := int(le16(buf[64:66]))
	if nameSize > 64 {
		nameSize = 64
	}
	// nameSize counts bytes including the trailing UTF-16 NUL; drop it.
	nameChars := nameSize / 2
	if nameChars > 0 {
		nameChars--
	}

	units := make([]uint16, nameChars)
	for i := 0; i < nameChars; i++ {
		units[i] = le16(buf[i*2 : i*2+2])
	}
	raw := string(utf16.Decode(units))

	p := &Property{
		RawName:    raw,
		Name:       escapePropertyName(raw),
		Type:       buf[66],
		Color:      buf[67],
		Prev:       leI32(buf[68:72]),
		Next:       leI32(buf[72:76]),
		Child:      leI32(buf[76:80]),
		StartBlock: leI32(buf[116:120]),
		Size:       int64(le32(buf[120:124])),
		Index:      index,
	}
	return p, nil
}

// escapePropertyName mirrors libclamav's get_property_name: printable ASCII
// passes through unchanged; digits 0-9 that occur as non-printable control
// bytes become "_N_"; any other non-printable becomes "_".
func escapePropertyName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 0x20 && r < 0x7f:
			out = append(out, r)
		case r >= 0 && r < 10:
			out = append(out, []rune(fmt.Sprintf("_%d_", r))...)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// walkProperties streams every property entry reachable from the property
// chain rooted at header.PropStart, in on-disk storage order, invoking fn
// for each. It sets header.SbatRootStart as soon as the root storage entry
// (type 5) is seen, the same side effect ole2_read_property_tree has in the
// original.
func walkProperties(src Source, h *Header, fn func(*Property) error) error {
	entriesPerBlock := h.BigBlockSize / propertyEntrySize
	if entriesPerBlock == 0 {
		return fmt.Errorf("%w: big block too small to hold a property entry", ErrBlockSize)
	}

	index := 0
	cur := h.PropStart
	visited := 0
	maxBlocks := h.BatCount*h.entriesPerBigBlock() + 1

	for cur >= 0 {
		visited++
		if int32(visited) > maxBlocks {
			return ErrChainCycle
		}

		buf, err := readBigBlock(src, h, cur)
		if err != nil {
			return err
		}

		for i := 0; i < entriesPerBlock; i++ {
			off := i * propertyEntrySize
			entry, err := decodeProperty(buf[off:off+propertyEntrySize], index)
			if err != nil {
				return err
			}
			index++

			if entry.Type == PropTypeInvalid {
				continue
			}
			if entry.Type == PropTypeRoot && h.SbatRootStart < 0 {
				h.SbatRootStart = entry.StartBlock
			}
			if err := fn(entry); err != nil {
				return err
			}
		}

		next, err := nextBig(src, h, cur)
		if err != nil {
			return err
		}
		cur = next
	}
	return nil
}
