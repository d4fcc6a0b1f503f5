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

// Optional tree reconstruction over the flat property list. Extract itself
// never needs this -- it enumerates storage order and materializes streams
// as it goes -- but a consumer presenting the container as a filesystem
// (internal/fuse) wants real nesting, so this walks the prev/next/child
// pointers the flat enumerator otherwise ignores.
package cfb

import "fmt"

// Node is one entry in the reconstructed storage tree.
type Node struct {
	Prop     *Property
	Children []*Node // only populated for storages; sorted by name
}

// EnumerateProperties runs the property-tree enumerator to completion and
// returns every entry in storage order, along with the header (with
// SbatRootStart resolved). It performs no stream materialization.
func EnumerateProperties(src Source) (*Header, []*Property, error) {
	header, _, err := ParseHeader(src)
	if err != nil {
		return nil, nil, err
	}
	var entries []*Property
	if err := walkProperties(src, header, func(p *Property) error {
		entries = append(entries, p)
		return nil
	}); err != nil {
		return header, entries, err
	}
	return header, entries, nil
}

// ReadStream materializes p's stream data. It is the exported counterpart
// of the unexported helper Extract uses internally, for consumers (like
// internal/fuse) that walk the tree themselves instead of driving Extract.
func ReadStream(src Source, header *Header, p *Property) ([]byte, error) {
	return readStream(src, header, p)
}

// BuildTree reconstructs the storage/stream hierarchy from a flat property
// list by walking each storage's Child pointer and, within a sibling set,
// each entry's Prev/Next pointers -- the on-disk layout is a binary search
// tree keyed by name, so an in-order walk yields children sorted by name.
func BuildTree(entries []*Property) (*Node, error) {
	byIndex := make(map[int]*Property, len(entries))
	var root *Property
	for _, p := range entries {
		byIndex[p.Index] = p
		if p.Type == PropTypeRoot && root == nil {
			root = p
		}
	}
	if root == nil {
		return nil, fmt.Errorf("cfb: no root storage entry in property list")
	}

	node := &Node{Prop: root}
	children, err := collectSiblings(root.Child, byIndex, make(map[int32]bool, len(byIndex)))
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

// collectSiblings walks an in-order Prev/self/Next traversal, recursing into
// Child for storages. visited is shared across the whole call tree (not just
// one sibling chain) since Prev/Next/Child all draw from the same index
// space: a crafted entry pointing back at an ancestor would otherwise recurse
// forever, the same hazard readBigStream/readMiniStream and walkProperties
// guard against for FAT/mini-FAT chains.
func collectSiblings(idx int32, byIndex map[int]*Property, visited map[int32]bool) ([]*Node, error) {
	if idx < 0 {
		return nil, nil
	}
	if visited[idx] {
		return nil, ErrChainCycle
	}
	visited[idx] = true

	p, ok := byIndex[int(idx)]
	if !ok {
		return nil, nil
	}

	var out []*Node
	prev, err := collectSiblings(p.Prev, byIndex, visited)
	if err != nil {
		return nil, err
	}
	out = append(out, prev...)

	node := &Node{Prop: p}
	if p.IsStorage() {
		children, err := collectSiblings(p.Child, byIndex, visited)
		if err != nil {
			return nil, err
		}
		node.Children = children
	}
	out = append(out, node)

	next, err := collectSiblings(p.Next, byIndex, visited)
	if err != nil {
		return nil, err
	}
	out = append(out, next...)
	return out, nil
}
