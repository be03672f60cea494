package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segfetch/segfetch/internal/clog"
	"github.com/segfetch/segfetch/internal/errs"
	"github.com/segfetch/segfetch/internal/merge"
	"github.com/segfetch/segfetch/internal/netio"
	"github.com/segfetch/segfetch/internal/probe"
	"github.com/segfetch/segfetch/internal/progress"
	"github.com/segfetch/segfetch/internal/segment"
	"github.com/segfetch/segfetch/internal/urlkit"
)

// DefaultOutputName is used when the caller supplies none.
const DefaultOutputName = "Downloaded_File"

// Options configures one Download call.
type Options struct {
	// Threads > 1 requests the multi-segment engine; 0 or 1 means
	// single-stream only.
	Threads int
	// RateLimitBytesPerSec caps aggregate throughput; <= 0 is unlimited.
	RateLimitBytesPerSec int64
	Proxy                string
	SkipTLSVerify        bool
}

// Result summarizes a completed download.
type Result struct {
	OutputPath   string
	BytesWritten int64
	Segments     int
	Elapsed      time.Duration
	MultiSegment bool
}

// Download is the single entry point: it validates arguments, decides
// between the multi-segment engine and the single-stream fallback, and
// always leaves either a complete output file or none at all.
func Download(ctx context.Context, rawURL, outputName, outputDir string, opts Options) (Result, error) {
	start := time.Now()

	if rawURL == "" {
		return Result{}, errs.New(errs.URLParse, "empty URL")
	}
	if outputName == "" {
		outputName = DefaultOutputName
	}
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Result{}, errs.Wrap(errs.FileOpen, "resolve working directory", err)
		}
		outputDir = wd
	}
	outputDir = filepath.Clean(outputDir)
	if err := os.MkdirAll(outputDir, 0700); err != nil {
		return Result{}, errs.Wrap(errs.FileOpen, "create output directory", err)
	}
	outputPath := filepath.Join(outputDir, outputName)

	netOpts := netio.Options{SkipTLSVerify: opts.SkipTLSVerify, Proxy: opts.Proxy}

	if opts.Threads > 1 {
		res, err := multiSegmentDownload(ctx, rawURL, outputPath, opts, netOpts)
		if err == nil {
			res.Elapsed = time.Since(start)
			return res, nil
		}
		clog.Warnf("multi-segment download failed, falling back to single-stream: %v", err)
	}

	written, err := singleStreamDownload(ctx, rawURL, outputPath, netOpts, opts.RateLimitBytesPerSec, nil)
	if err != nil {
		os.Remove(outputPath)
		return Result{}, err
	}
	return Result{OutputPath: outputPath, BytesWritten: written, Elapsed: time.Since(start)}, nil
}

func multiSegmentDownload(ctx context.Context, rawURL, outputPath string, opts Options, netOpts netio.Options) (Result, error) {
	u, err := urlkit.Parse(rawURL)
	if err != nil {
		return Result{}, err
	}
	if u.HostKind == urlkit.HostInvalid {
		return Result{}, errs.New(errs.URLParse, "invalid host: "+u.Host)
	}

	capability, err := probe.Probe(ctx, u, netOpts)
	if err != nil {
		return Result{}, err
	}
	if !capability.RangeSupported || capability.Size <= segment.MinSegmentSize {
		return Result{}, errs.New(errs.HTTPResponse, "origin does not support multi-segment download")
	}

	ranges := segment.Plan(capability.Size, opts.Threads)
	rangePairs := make([][2]int64, len(ranges))
	parts := make([]merge.TempPart, len(ranges))
	for i, r := range ranges {
		rangePairs[i] = [2]int64{r.Start, r.End}
		parts[i] = merge.TempPart{
			Path: fmt.Sprintf("%s.part%d", outputPath, i),
			Size: r.End - r.Start + 1,
		}
	}

	tracker := progress.NewTracker(rangePairs)
	limiter := sharedLimiter(opts.RateLimitBytesPerSec)
	var stopFlag int32

	display := progress.NewDisplay(tracker)
	displayStop := make(chan struct{})
	go display.Run(displayStop)

	var wg sync.WaitGroup
	errCh := make(chan error, len(ranges))
	for i, r := range ranges {
		wg.Add(1)
		go func(id int, rng segment.Range) {
			defer wg.Done()
			err := segment.RunWorker(ctx, id, rng, capability.Size, u, parts[id].Path, tracker, netOpts, &stopFlag, limiter)
			errCh <- err
		}(i, r)
	}

	// Bridge ctx cancellation to stopFlag while workers are still running,
	// so a caller that cancels ctx (e.g. the CLI's signal handler) actually
	// stops in-flight workers instead of only being observed after they've
	// all already joined. doneCh lets this watcher exit once every worker
	// has finished on its own.
	doneCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&stopFlag, 1)
		case <-doneCh:
		}
	}()

	wg.Wait()
	close(doneCh)
	close(displayStop)
	display.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if err != nil {
			atomic.StoreInt32(&stopFlag, 1)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		for _, p := range parts {
			os.Remove(p.Path)
		}
		return Result{}, firstErr
	}

	if err := merge.Merge(outputPath, parts, capability.Size); err != nil {
		return Result{}, err
	}

	return Result{
		OutputPath:   outputPath,
		BytesWritten: capability.Size,
		Segments:     len(ranges),
		MultiSegment: true,
	}, nil
}
