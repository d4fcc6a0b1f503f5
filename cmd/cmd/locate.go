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
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ostafen/cfbx/internal/cfb"
	"github.com/ostafen/cfbx/internal/locate"
	"github.com/ostafen/cfbx/internal/sink"
)

type LocateOptions struct {
	OutputDir string
}

func DefineLocateCommand() *cobra.Command {
	opts := &LocateOptions{}

	cmd := &cobra.Command{
		Use:   "locate <device_or_image>",
		Short: "Find compound files embedded in a raw disk image or volume",
		Long: `The 'locate' command scans a raw disk image or volume for the compound
file signature at every partition boundary it can find (falling back to a
whole-image scan if no MBR partition table is present), and optionally
extracts the streams of every container it finds.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Extract every container found into this directory (one subdirectory per offset)")
	return cmd
}

func runLocate(path string, opts *LocateOptions) error {
	d, err := locate.Open(path)
	if err != nil {
		return fmt.Errorf("locate: %w", err)
	}
	defer d.Close()

	regions, hadMBR, err := locate.Partitions(d, uint64(d.RealSize))
	if err != nil {
		return err
	}

	candidates := locate.Scan(d, regions)
	if len(candidates) == 0 {
		fmt.Println("no compound file signature found")
		return nil
	}

	if !hadMBR && len(candidates) > 1 {
		if blockSize, offset := locate.GuessAlignment(candidates); blockSize > 0 {
			fmt.Printf("no partition table found; containers align to %d-byte blocks (offset %d)\n", blockSize, offset)
		}
	}

	for _, c := range candidates {
		fmt.Printf("compound file at offset %d\n", c.Offset)

		if opts.OutputDir == "" {
			continue
		}

		src := locate.AtOffset(d, c.Offset)
		out, err := sink.NewDirSink(filepath.Join(opts.OutputDir, fmt.Sprintf("0x%x", c.Offset)))
		if err != nil {
			return err
		}

		count := 0
		_, err = cfb.Extract(src, nil, func(info cfb.StreamInfo, data []byte) error {
			count++
			return out.Write(info.Name, data)
		})
		out.Close()
		if err != nil {
			fmt.Printf("  failed to extract: %v\n", err)
			continue
		}
		fmt.Printf("  extracted %d stream(s)\n", count)
	}

	return nil
}
