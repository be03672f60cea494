package segment

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/segfetch/segfetch/internal/errs"
	"github.com/segfetch/segfetch/internal/netio"
	"github.com/segfetch/segfetch/internal/progress"
	"github.com/segfetch/segfetch/internal/urlkit"
	"github.com/segfetch/segfetch/internal/wire"
)

const (
	recvChunk     = 16 * 1024
	incompleteMsg = "下载不完整"
)

// maxAttempts and retrySleep are vars, not consts, so tests can shrink the
// retry backoff; production leaves them at their spec-mandated defaults.
var (
	maxAttempts = 5
	retrySleep  = 3 * time.Second
)

// RunWorker drives one segment's retry-with-resume fetch loop against
// tempPath, reporting progress through tracker under id. fileSize is the
// origin's total size, used only to recognize the single-segment case in
// the §4.H step-4 status check. stopFlag is a pointer to a job-wide atomic
// flag; a nonzero value requests cooperative cancellation. limiter, if
// non-nil, is a job-wide shared rate.Limiter that every segment worker
// draws from so the aggregate throughput across all segments stays under
// the requested cap.
func RunWorker(ctx context.Context, id int, original Range, fileSize int64, u *urlkit.URL, tempPath string,
	tracker *progress.Tracker, netOpts netio.Options, stopFlag *int32, limiter *rate.Limiter) error {

	expected := original.End - original.Start + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retrySleep)
		}
		if atomic.LoadInt32(stopFlag) != 0 {
			tracker.SetState(id, progress.Stopped)
			return errs.New(errs.Network, "stopped")
		}

		start := original.Start
		resumed := int64(0)
		if fi, statErr := os.Stat(tempPath); statErr == nil {
			k := fi.Size()
			if k > 0 && k < expected {
				start = original.Start + k
				resumed = k
			} else if k >= expected {
				tracker.AdvanceStart(id, original.End+1, expected)
				tracker.SetState(id, progress.Completed)
				return nil
			}
		}
		tracker.AdvanceStart(id, start, resumed)

		err := attemptOnce(ctx, id, original, fileSize, start, resumed, expected, u, tempPath, tracker, netOpts, stopFlag, limiter)
		if err == nil {
			tracker.SetState(id, progress.Completed)
			return nil
		}
		if atomic.LoadInt32(stopFlag) != 0 {
			return err
		}
		lastErr = err
		if !retryable(err) {
			tracker.SetState(id, progress.Error, err.Error())
			return err
		}
		tracker.SetState(id, progress.Error, err.Error())
	}
	return lastErr
}

// retryable reports whether a segment-layer error is worth another
// attempt, per the URLParse/FileOpen exclusions.
func retryable(err error) bool {
	e, ok := errs.As(err)
	if !ok {
		return true
	}
	return e.Kind != errs.URLParse && e.Kind != errs.FileOpen
}

func attemptOnce(ctx context.Context, id int, original Range, fileSize, start, resumed, expected int64,
	u *urlkit.URL, tempPath string, tracker *progress.Tracker, netOpts netio.Options, stopFlag *int32,
	limiter *rate.Limiter) error {

	tracker.SetState(id, progress.Connecting)

	flags := os.O_CREATE | os.O_WRONLY
	if resumed > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return errs.Wrap(errs.FileOpen, "open segment temp file", err)
	}
	defer f.Close()

	result, err := wire.RoundTrip(ctx, u, "GET", start, original.End, netOpts)
	if err != nil {
		return err
	}
	defer result.Transport.Close()

	status := result.Response.StatusCode
	spansWholeFile := original.Start == 0 && original.End == fileSize-1
	if !(status == 206 || (status == 200 && start == 0 && spansWholeFile)) {
		return errs.New(errs.HTTPResponse, "unexpected status for range request")
	}

	tracker.SetState(id, progress.Downloading)

	downloaded := resumed

	residual := result.Buffer.Residual()
	if len(residual) > 0 {
		remaining := expected - downloaded
		if int64(len(residual)) > remaining {
			residual = residual[:remaining]
		}
		if len(residual) > 0 {
			if _, err := f.Write(residual); err != nil {
				return errs.Wrap(errs.FileWrite, "write segment residual", err)
			}
			downloaded += int64(len(residual))
			tracker.RecordChunk(id, int64(len(residual)))
		}
	}

	buf := make([]byte, recvChunk)
	for downloaded < expected {
		if atomic.LoadInt32(stopFlag) != 0 {
			tracker.SetState(id, progress.Stopped)
			return errs.New(errs.Network, "stopped")
		}

		toRead := buf
		if remaining := expected - downloaded; remaining < int64(len(buf)) {
			toRead = buf[:remaining]
		}
		n, err := result.Transport.Recv(toRead)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if limiter != nil {
			if err := limiter.WaitN(ctx, n); err != nil {
				return errs.Wrap(errs.Network, "rate limit wait", err)
			}
		}
		if _, err := f.Write(toRead[:n]); err != nil {
			return errs.Wrap(errs.FileWrite, "write segment chunk", err)
		}
		if err := f.Sync(); err != nil {
			return errs.Wrap(errs.FileWrite, "fsync segment temp file", err)
		}
		downloaded += int64(n)
		tracker.RecordChunk(id, int64(n))
	}

	if atomic.LoadInt32(stopFlag) != 0 {
		tracker.SetState(id, progress.Stopped)
		return errs.New(errs.Network, "stopped")
	}
	if downloaded != expected {
		return errs.New(errs.Network, incompleteMsg)
	}
	return nil
}
