// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command comprestimator estimates the fraction of all-zero blocks and
// the achievable deflate-style compression ratio of a block device or
// file, reporting both with statistical confidence bounds.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"cloudeng.io/errors"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/comprestimator"
	"github.com/cosnicolaou/comprestimator/internal/device"
	"github.com/cosnicolaou/comprestimator/internal/report"
	"github.com/cosnicolaou/comprestimator/internal/stats"
	"github.com/schollz/progressbar/v2"
)

type estimateFlags struct {
	Device     string `subcmd:"device,,'device path or s3:// URL to estimate (required)'"`
	Procs      int    `subcmd:"procs,1,'number of concurrent samplers, 0-128'"`
	LogFile    string `subcmd:"log,,'text log file path'"`
	CSVFile    string `subcmd:"csv,,'intermediate CSV output path'"`
	ResultFile string `subcmd:"result,,'final CSV result path'"`
	Seed       int64  `subcmd:"seed,0,'PRNG seed, 0 means use the current time'"`
	Exhaustive bool   `subcmd:"exhaustive,false,'walk the device sequentially instead of random sampling'"`
	Progress   bool   `subcmd:"progress,true,'display a progress bar on a terminal'"`
}

var cmdSet *subcmd.CommandSet

func init() {
	estimateCmd := subcmd.NewCommand("estimate",
		subcmd.MustRegisterFlagStruct(&estimateFlags{}, nil, nil),
		estimate, subcmd.ExactlyNumArguments(0))
	estimateCmd.Document(`estimate zero-block fraction and compression ratio for a device. Files may be local or on S3.`)

	cmdSet = subcmd.NewCommandSet(estimateCmd)
	cmdSet.Document(`estimate how much space zero-elimination and real-time compression would save on a device, without reading all of it.`)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}

func estimate(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*estimateFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	if len(cl.Device) == 0 {
		return fmt.Errorf("--device is required")
	}
	if cl.Procs < 0 || cl.Procs > 128 {
		return fmt.Errorf("--procs must be in [0, 128], got %d", cl.Procs)
	}

	errs := errors.M{}

	sizer, err := device.Open(ctx, cl.Device)
	if err != nil {
		return fmt.Errorf("opening %v: %w", cl.Device, err)
	}
	deviceSize := sizer.Size
	errs.Append(sizer.Close(ctx))

	opts := []comprestimator.Option{
		comprestimator.WithConcurrency(cl.Procs),
		comprestimator.WithExhaustive(cl.Exhaustive),
	}
	if cl.Seed != 0 {
		opts = append(opts, comprestimator.WithSeed(cl.Seed))
	}

	logWriter := os.Stderr
	if len(cl.LogFile) > 0 {
		lf, err := os.Create(cl.LogFile)
		if err != nil {
			return fmt.Errorf("creating %v: %w", cl.LogFile, err)
		}
		defer lf.Close()
		logWriter = lf
	}

	var csvRow *report.Row
	if len(cl.CSVFile) > 0 {
		cf, err := os.Create(cl.CSVFile)
		if err != nil {
			return fmt.Errorf("creating %v: %w", cl.CSVFile, err)
		}
		defer cf.Close()
		csvRow = report.NewRow(cf)
	}

	progressCh := make(chan comprestimator.Progress, cl.Procs)
	opts = append(opts, comprestimator.WithProgress(progressCh))

	isTTY := terminal.IsTerminal(int(os.Stdout.Fd()))
	var bar *progressbar.ProgressBar
	if cl.Progress && isTTY {
		bar = progressbar.NewOptions64(deviceSize,
			progressbar.OptionSetBytes64(deviceSize),
			progressbar.OptionSetWriter(os.Stdout),
			progressbar.OptionSetPredictTime(true))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var lastRead int64
		for p := range progressCh {
			fmt.Fprintf(logWriter, "reap %d: %+v\n", p.Reaped, p.Info)
			if csvRow != nil {
				derived := stats.Compute(p.Info, deviceSize)
				if err := csvRow.Write(derived, report.Report{
					NumZeroBlocks:    p.Info.NumZeroBlocks,
					NumNonZeroBlocks: p.Info.NumNonZeroBlocks,
					TotalBlocksRead:  p.Info.TotalBlocksRead,
					CompressionRatio: p.Info.CompressionRatio,
					DeviceSizeMB:     float64(deviceSize) / (1 << 20),
				}); err != nil {
					fmt.Fprintf(logWriter, "csv write failed: %v\n", err)
				}
			}
			if bar != nil {
				delta := p.Info.TotalBlocksRead - lastRead
				lastRead = p.Info.TotalBlocksRead
				bar.Add(int(delta) * 2048)
			}
		}
	}()

	started := time.Now()
	opener := func() (comprestimator.ReaderAt, comprestimator.Closer, error) {
		h, err := device.Open(ctx, cl.Device)
		if err != nil {
			return nil, nil, err
		}
		return h, comprestimator.CloserFunc(func() error { return h.Close(ctx) }), nil
	}

	summary, runErr := comprestimator.Run(ctx, opener, deviceSize, opts...)
	close(progressCh)
	<-done
	duration := time.Since(started)

	report.Summary(logWriter, summary.Report)

	if len(cl.ResultFile) > 0 {
		rf, err := os.Create(cl.ResultFile)
		if err != nil {
			errs.Append(err)
		} else {
			defer rf.Close()
			final := report.NewRow(rf)
			errs.Append(final.Header(started, cl.Device, float64(deviceSize)/(1<<20), cl.Procs, cl.Exhaustive))
			errs.Append(final.Write(summary.Report, report.Report{
				NumZeroBlocks:    summary.Info.NumZeroBlocks,
				NumNonZeroBlocks: summary.Info.NumNonZeroBlocks,
				TotalBlocksRead:  summary.Info.TotalBlocksRead,
				CompressionRatio: summary.Info.CompressionRatio,
				DeviceSizeMB:     float64(deviceSize) / (1 << 20),
			}))
			errs.Append(final.Trailer(duration))
		}
	}

	errs.Append(runErr)
	return errs.Err()
}
