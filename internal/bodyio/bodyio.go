// Package bodyio drains an HTTP response body from a read-ahead buffer
// onto an io.Writer, in the two variants spec §4.E describes: a known
// content-length and a close-delimited ("length unknown") stream. Grounded
// on the C original's src/download.c body-copy loop; the progress-tick
// cadence (2s or 8 KiB, whichever first) comes from the same source.
package bodyio

import (
	"io"
	"time"

	"github.com/segfetch/segfetch/internal/errs"
)

const readChunk = 8 * 1024

// Recver is the minimal transport read operation.
type Recver interface {
	Recv(buf []byte) (int, error)
}

// ProgressFunc is invoked with the cumulative bytes written so far.
type ProgressFunc func(total int64)

const tickInterval = 2 * time.Second
const tickBytes = 8 * 1024

// ReadKnownLength drains residual (clipped to length) then reads from r in
// readChunk pieces until exactly length bytes have been written to w.
// Returns (writtenSoFar, err): on early peer close the bytes already
// written are still reported.
func ReadKnownLength(r Recver, residual []byte, length int64, w io.Writer, onProgress ProgressFunc) (int64, error) {
	var written int64
	lastTick := time.Now()
	sinceTick := int64(0)

	writeN := func(p []byte) error {
		if len(p) == 0 {
			return nil
		}
		n, err := w.Write(p)
		written += int64(n)
		sinceTick += int64(n)
		if err != nil {
			return errs.Wrap(errs.FileWrite, "write body", err)
		}
		if onProgress != nil && (sinceTick >= tickBytes || time.Since(lastTick) >= tickInterval) {
			onProgress(written)
			lastTick = time.Now()
			sinceTick = 0
		}
		return nil
	}

	if len(residual) > 0 {
		clip := residual
		if int64(len(clip)) > length {
			clip = clip[:length]
		}
		if err := writeN(clip); err != nil {
			return written, err
		}
	}

	buf := make([]byte, readChunk)
	for written < length {
		toRead := buf
		if remaining := length - written; remaining < int64(len(buf)) {
			toRead = buf[:remaining]
		}
		n, err := r.Recv(toRead)
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, errs.New(errs.Network, "peer closed before content-length reached")
		}
		if err := writeN(toRead[:n]); err != nil {
			return written, err
		}
	}
	if onProgress != nil {
		onProgress(written)
	}
	return written, nil
}

// ReadUntilClose drains residual then reads until the peer closes the
// connection (Recv returns 0, nil), writing every chunk as it arrives.
func ReadUntilClose(r Recver, residual []byte, w io.Writer, onProgress ProgressFunc) (int64, error) {
	var written int64
	lastTick := time.Now()
	sinceTick := int64(0)

	writeN := func(p []byte) error {
		if len(p) == 0 {
			return nil
		}
		n, err := w.Write(p)
		written += int64(n)
		sinceTick += int64(n)
		if err != nil {
			return errs.Wrap(errs.FileWrite, "write body", err)
		}
		if onProgress != nil && (sinceTick >= tickBytes || time.Since(lastTick) >= tickInterval) {
			onProgress(written)
			lastTick = time.Now()
			sinceTick = 0
		}
		return nil
	}

	if err := writeN(residual); err != nil {
		return written, err
	}

	buf := make([]byte, readChunk)
	for {
		n, err := r.Recv(buf)
		if err != nil {
			return written, err
		}
		if n == 0 {
			break
		}
		if err := writeN(buf[:n]); err != nil {
			return written, err
		}
	}
	if onProgress != nil {
		onProgress(written)
	}
	return written, nil
}
