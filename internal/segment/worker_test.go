package segment

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segfetch/segfetch/internal/netio"
	"github.com/segfetch/segfetch/internal/progress"
	"github.com/segfetch/segfetch/internal/urlkit"
)

// readRequestRange reads one HTTP request off conn and returns the
// requested Range lo (0 if none/absent).
func readRequestRangeLo(r *bufio.Reader) (int64, error) {
	if _, err := r.ReadString('\n'); err != nil {
		return 0, err
	}
	lo := int64(0)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return 0, err
		}
		if line == "\r\n" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "range:") {
			// "Range: bytes=LO-HI\r\n"
			eq := strings.IndexByte(line, '=')
			dash := strings.IndexByte(line, '-')
			if eq >= 0 && dash > eq {
				lo, _ = strconv.ParseInt(strings.TrimSpace(line[eq+1:dash]), 10, 64)
			}
		}
	}
	return lo, nil
}

func TestRunWorkerResumesAfterEarlyClose(t *testing.T) {
	full := bytes.Repeat([]byte("A"), 1000)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		// First connection: serve 206 with full Content-Length but only
		// write 500 bytes, then close.
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		r := bufio.NewReader(conn)
		readRequestRangeLo(r)
		conn.Write([]byte("HTTP/1.1 206 Partial Content\r\nContent-Length: 1000\r\nContent-Range: bytes 0-999/1000\r\n\r\n"))
		conn.Write(full[:500])
		conn.Close()

		// Second connection: resume from byte 500.
		conn2, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn2.Close()
		r2 := bufio.NewReader(conn2)
		lo, _ := readRequestRangeLo(r2)
		if lo != 500 {
			return
		}
		conn2.Write([]byte("HTTP/1.1 206 Partial Content\r\nContent-Length: 500\r\nContent-Range: bytes 500-999/1000\r\n\r\n"))
		conn2.Write(full[500:])
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	u := &urlkit.URL{Host: host, Port: port, Path: "/f", Protocol: urlkit.HTTP, HostKind: urlkit.HostIPv4}

	tempPath := t.TempDir() + "/seg0.part"
	defer os.Remove(tempPath)

	tr := progress.NewTracker([][2]int64{{0, 999}})
	origRetrySleep := retrySleep
	retrySleep = 10 * time.Millisecond
	defer func() { retrySleep = origRetrySleep }()

	var stopFlag int32
	err = RunWorker(context.Background(), 0, Range{Start: 0, End: 999}, 1000, u, tempPath, tr, netio.Options{}, &stopFlag, nil)
	if err != nil {
		t.Fatalf("RunWorker: %v", err)
	}

	fi, statErr := os.Stat(tempPath)
	if statErr != nil {
		t.Fatalf("stat temp file: %v", statErr)
	}
	if fi.Size() != 1000 {
		t.Fatalf("temp file size = %d, want 1000", fi.Size())
	}

	snap := tr.Snapshot()
	if snap.Segments[0].State != progress.Completed {
		t.Fatalf("segment state = %v, want Completed", snap.Segments[0].State)
	}
	if snap.Segments[0].DownloadedBytes != 1000 {
		t.Fatalf("downloaded = %d, want 1000", snap.Segments[0].DownloadedBytes)
	}
}

func TestRunWorkerStopFlagHalts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		readRequestRangeLo(r)
		conn.Write([]byte("HTTP/1.1 206 Partial Content\r\nContent-Length: 1000\r\nContent-Range: bytes 0-999/1000\r\n\r\n"))
		conn.Write(bytes.Repeat([]byte("B"), 100))
		time.Sleep(500 * time.Millisecond)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	u := &urlkit.URL{Host: host, Port: port, Path: "/f", Protocol: urlkit.HTTP, HostKind: urlkit.HostIPv4}

	tempPath := t.TempDir() + "/seg0.part"

	tr := progress.NewTracker([][2]int64{{0, 999}})
	var stopFlag int32
	go func() {
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&stopFlag, 1)
	}()

	err = RunWorker(context.Background(), 0, Range{Start: 0, End: 999}, 1000, u, tempPath, tr, netio.Options{}, &stopFlag, nil)
	if err == nil {
		t.Fatal("expected error after stop flag set")
	}
	snap := tr.Snapshot()
	if snap.Segments[0].State != progress.Stopped {
		t.Fatalf("segment state = %v, want Stopped", snap.Segments[0].State)
	}
}

// TestRunWorkerAccepts200WhenSegmentSpansWholeFile covers the single-
// segment degenerate case (spec §4.H step 4): an origin that ignores the
// Range header and replies 200 is accepted only when the segment spans
// the entire file.
func TestRunWorkerAccepts200WhenSegmentSpansWholeFile(t *testing.T) {
	full := bytes.Repeat([]byte("C"), 1000)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		readRequestRangeLo(r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 1000\r\n\r\n"))
		conn.Write(full)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	u := &urlkit.URL{Host: host, Port: port, Path: "/f", Protocol: urlkit.HTTP, HostKind: urlkit.HostIPv4}

	tempPath := t.TempDir() + "/seg0.part"
	tr := progress.NewTracker([][2]int64{{0, 999}})
	var stopFlag int32

	err = RunWorker(context.Background(), 0, Range{Start: 0, End: 999}, 1000, u, tempPath, tr, netio.Options{}, &stopFlag, nil)
	if err != nil {
		t.Fatalf("RunWorker: %v", err)
	}
	snap := tr.Snapshot()
	if snap.Segments[0].State != progress.Completed {
		t.Fatalf("segment state = %v, want Completed", snap.Segments[0].State)
	}
}

// TestRunWorkerRejects200WhenSegmentIsPartialFile covers the multi-segment
// case: a 200 reply to segment 0's range request is rejected (not treated
// as the whole-file fallback) when the segment doesn't span the whole file.
func TestRunWorkerRejects200WhenSegmentIsPartialFile(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		readRequestRangeLo(r)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2000\r\n\r\n"))
		conn.Write(bytes.Repeat([]byte("D"), 2000))
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	u := &urlkit.URL{Host: host, Port: port, Path: "/f", Protocol: urlkit.HTTP, HostKind: urlkit.HostIPv4}

	tempPath := t.TempDir() + "/seg0.part"
	tr := progress.NewTracker([][2]int64{{0, 999}, {1000, 1999}})
	var stopFlag int32

	origRetrySleep := retrySleep
	retrySleep = 10 * time.Millisecond
	defer func() { retrySleep = origRetrySleep }()
	origMaxAttempts := maxAttempts
	maxAttempts = 1
	defer func() { maxAttempts = origMaxAttempts }()

	err = RunWorker(context.Background(), 0, Range{Start: 0, End: 999}, 2000, u, tempPath, tr, netio.Options{}, &stopFlag, nil)
	if err == nil {
		t.Fatal("expected error for 200 reply to a partial-file segment")
	}
}
