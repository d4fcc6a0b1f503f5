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
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ostafen/cfbx/internal/cfb"
	"github.com/ostafen/cfbx/internal/env"
	"github.com/ostafen/cfbx/internal/fs"
	"github.com/ostafen/cfbx/internal/logger"
	"github.com/ostafen/cfbx/internal/mmap"
	"github.com/ostafen/cfbx/internal/sink"
	"github.com/ostafen/cfbx/pkg/dfxml"
	"github.com/ostafen/cfbx/pkg/pbar"
)

// openSource picks the ByteSource backing the decoder: a plain positioned
// *os.File (via internal/fs, portable to Windows raw-volume paths) or a
// memory-mapped view of it, per --mmap.
func openSource(path string, useMmap bool) (cfb.Source, func() error, int64, error) {
	if useMmap {
		mf, err := mmap.NewMmapFile(path)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to mmap %q: %w", path, err)
		}
		return mf, mf.Close, int64(mf.FileSize), nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to open %q: %w", path, err)
	}
	size := int64(0)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return f, f.Close, size, nil
}

// ExtractOptions collects extract's cobra flags.
type ExtractOptions struct {
	OutputDir  string
	ReportPath string
	LogLevel   string
	LogFile    string
	Quiet      bool
	Mmap       bool
}

func DefineExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <compound_file>",
		Short: "Decode a compound file and write out every stream it contains",
		Long: `The 'extract' command reads a compound file (OLE2/CFB container, e.g. a
legacy .doc/.xls/.ppt) and writes each of its streams to the output
directory, one file per stream, optionally alongside a DFXML report
describing what was found.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "extracted", "Directory to write decoded streams into")
	cmd.Flags().StringVarP(&opts.ReportPath, "report", "r", "", "Optional path to write a DFXML report of decoded streams")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "INFO", "Log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "Write logs to this file instead of discarding them")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Suppress the progress bar")
	cmd.Flags().BoolVar(&opts.Mmap, "mmap", false, "Decode through a memory-mapped view of the file instead of positioned reads")

	return cmd
}

func setupLogger(opts *ExtractOptions) (*slog.Logger, func(), error) {
	level := logger.ParseLevel(opts.LogLevel).ToSlog()

	if opts.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})), func() {}, nil
	}

	f, err := os.Create(opts.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file %q: %w", opts.LogFile, err)
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(handler), func() { f.Close() }, nil
}

func runExtract(path string, opts *ExtractOptions) error {
	log, closeLog, err := setupLogger(opts)
	if err != nil {
		return err
	}
	defer closeLog()

	src, closeSrc, srcSize, err := openSource(path, opts.Mmap)
	if err != nil {
		return err
	}
	defer closeSrc()

	out, err := sink.NewDirSink(opts.OutputDir)
	if err != nil {
		return err
	}
	defer out.Close()

	var report *dfxml.DFXMLWriter
	if opts.ReportPath != "" {
		reportFile, err := os.Create(opts.ReportPath)
		if err != nil {
			return fmt.Errorf("failed to create report file %q: %w", opts.ReportPath, err)
		}
		defer reportFile.Close()

		report = dfxml.NewDFXMLWriter(reportFile)
		hdr := dfxml.DFXMLHeader{
			XmlOutput: dfxml.XmlOutputVersion,
			Metadata:  dfxml.DefaultMetadata,
			Creator: dfxml.Creator{
				Package:              AppName,
				Version:              env.Version,
				ExecutionEnvironment: dfxml.GetExecEnv(),
			},
			Source: dfxml.Source{ImageFilename: path},
		}
		if err := report.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write report header: %w", err)
		}
		defer report.Close()
	}

	var bar *pbar.ProgressBarState
	if !opts.Quiet && srcSize > 0 {
		bar = pbar.NewProgressBarState(srcSize)
	}

	count := 0
	warnings, err := cfb.Extract(src, log, func(info cfb.StreamInfo, data []byte) error {
		if err := out.Write(info.Name, data); err != nil {
			return err
		}
		count++

		if report != nil {
			_ = report.WriteFileObject(dfxml.FileObject{
				Filename: info.Name,
				FileSize: uint64(info.Size),
				ByteRuns: dfxml.ByteRuns{
					Runs: []dfxml.ByteRun{{Offset: 0, ImgOffset: uint64(info.StartBlock), Length: uint64(info.Size)}},
				},
			})
		}

		if bar != nil {
			bar.ProcessedBytes += info.Size
			bar.FilesFound = count
			bar.Render(false)
		}
		return nil
	})
	if bar != nil {
		bar.Render(true)
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "[WARN] %s\n", w)
	}
	fmt.Printf("Extracted %d stream(s) to %s\n", count, opts.OutputDir)
	return nil
}
