//go:build linux
// +build linux

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

// RecoverFS exposes a decoded compound file's property tree as a read-only
// filesystem: storages become directories, streams become files. Unlike a
// flat carve-report mount, directory structure here comes from walking the
// property entries' own prev/next/child pointers (internal/cfb.BuildTree),
// not from a byte-offset list.
package fuse

import (
	"bytes"
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/ostafen/cfbx/internal/cfb"
)

// RecoverFS serves one compound file's storage tree over FUSE. Stream data
// is materialized lazily, on first Read, and cached for the life of the
// mount -- re-walking a mini-FAT chain on every read would be wasteful for
// files opened repeatedly by a shell or a file manager.
type RecoverFS struct {
	src    cfb.Source
	header *cfb.Header
	root   *cfb.Node

	mtx   sync.Mutex
	cache map[*cfb.Property][]byte
}

// NewRecoverFS decodes src's property tree up front and returns a
// filesystem ready to be served.
func NewRecoverFS(src cfb.Source) (*RecoverFS, error) {
	header, entries, err := cfb.EnumerateProperties(src)
	if err != nil {
		return nil, err
	}
	root, err := cfb.BuildTree(entries)
	if err != nil {
		return nil, err
	}
	return &RecoverFS{
		src:    src,
		header: header,
		root:   root,
		cache:  make(map[*cfb.Property][]byte),
	}, nil
}

func (rfs *RecoverFS) Root() (fs.Node, error) {
	return &Dir{fs: rfs, node: rfs.root}, nil
}

func (rfs *RecoverFS) dataFor(p *cfb.Property) ([]byte, error) {
	rfs.mtx.Lock()
	defer rfs.mtx.Unlock()

	if data, ok := rfs.cache[p]; ok {
		return data, nil
	}
	data, err := cfb.ReadStream(rfs.src, rfs.header, p)
	if err != nil {
		return nil, err
	}
	rfs.cache[p] = data
	return data, nil
}

// Dir implements both fs.Node and fs.HandleReadDirAller over one storage's
// children.
type Dir struct {
	fs   *RecoverFS
	node *cfb.Node
}

func (*Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	for _, child := range d.node.Children {
		if child.Prop.Name != name {
			continue
		}
		if child.Prop.IsStorage() {
			return &Dir{fs: d.fs, node: child}, nil
		}
		return &File{fs: d.fs, prop: child.Prop}, nil
	}
	return nil, fuse.ENOENT
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries := make([]fuse.Dirent, len(d.node.Children))
	for i, child := range d.node.Children {
		typ := fuse.DT_File
		if child.Prop.IsStorage() {
			typ = fuse.DT_Dir
		}
		entries[i] = fuse.Dirent{
			Inode: uint64(i + 1),
			Name:  child.Prop.Name,
			Type:  typ,
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// File implements both fs.Node and fs.HandleReader over one stream entry.
type File struct {
	fs   *RecoverFS
	prop *cfb.Property
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.prop.Size)
	a.Mtime = time.Now()
	return nil
}

func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := f.fs.dataFor(f.prop)
	if err != nil {
		return err
	}

	offset := req.Offset
	if offset >= int64(len(data)) {
		resp.Data = []byte{}
		return nil
	}
	end := offset + int64(req.Size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	resp.Data = bytes.Clone(data[offset:end])
	return nil
}
