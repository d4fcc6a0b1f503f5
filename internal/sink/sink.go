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

// Package sink decouples internal/cfb's stream consumer from where decoded
// streams end up. The extract command wires a DirSink; a scanner embedding
// this module for anti-malware use can wire something that never touches
// disk at all (e.g. feeding bytes straight into a signature matcher).
package sink

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ioutil "github.com/ostafen/cfbx/pkg/util/io"
	osutil "github.com/ostafen/cfbx/pkg/util/os"
)

// Sink receives one decoded stream at a time.
type Sink interface {
	Write(name string, data []byte) error
	Close() error
}

// DirSink writes each stream to its own file inside a directory, created if
// necessary. Duplicate names (two streams escaping to the same text, or two
// storages each containing a same-named stream, since the flat enumerator
// does not qualify names by their parent storage) are disambiguated with a
// numeric suffix rather than silently overwritten.
type DirSink struct {
	dir string

	mtx  sync.Mutex
	seen map[string]int
}

// NewDirSink ensures dir exists (creating it if necessary) and returns a
// Sink that writes into it.
func NewDirSink(dir string) (*DirSink, error) {
	if _, err := osutil.EnsureDir(dir, false); err != nil {
		return nil, err
	}
	return &DirSink{dir: dir, seen: make(map[string]int)}, nil
}

func (s *DirSink) Write(name string, data []byte) error {
	path := filepath.Join(s.dir, s.uniqueName(sanitize(name)))
	if err := ioutil.CopyFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("sink: failed to write stream %q: %w", name, err)
	}
	return nil
}

func (s *DirSink) Close() error { return nil }

func (s *DirSink) uniqueName(name string) string {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	n := s.seen[name]
	s.seen[name] = n + 1
	if n == 0 {
		return name
	}
	return name + "_" + strconv.Itoa(n)
}

// sanitize strips path separators and leading dots so a stream name can
// never escape the sink directory or collide with "." / "..".
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "_"
	}
	return name
}
