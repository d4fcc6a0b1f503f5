//go:build !linux
// +build !linux

package fuse

import (
	"fmt"

	"github.com/ostafen/cfbx/internal/cfb"
)

func Mount(mountpoint string, src cfb.Source) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
