// Package progress holds the job's shared segment table behind a single
// mutex and exposes consistent read-only snapshots, per spec §3's
// "progress snapshot" and §4.I. Grounded on the teacher's joiner/http.go
// shared-state pattern (a single struct mutated by many goroutines, read
// by one display loop) though the teacher itself updates pb.ProgressBar
// directly from each worker instead of through a snapshot.
package progress

import (
	"sync"
	"time"
)

// State is a segment's lifecycle stage. Transitions are monotone except
// that Error may retry back to Connecting; Completed and Stopped are
// terminal.
type State int

const (
	Idle State = iota
	Connecting
	Downloading
	Completed
	Error
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Downloading:
		return "downloading"
	case Completed:
		return "completed"
	case Error:
		return "error"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type segment struct {
	startByte, endByte int64
	downloaded         int64
	state              State
	errMessage         string
}

func (s segment) size() int64 { return s.endByte - s.startByte + 1 }

// Tracker is the mutex-guarded segment table a job shares across its
// workers and its display loop.
type Tracker struct {
	mu             sync.Mutex
	segments       []segment
	startTime      time.Time
	completedCount int
	errorCount     int
}

// NewTracker builds a tracker with one idle segment per (startByte,
// endByte) pair, in id order.
func NewTracker(ranges [][2]int64) *Tracker {
	segs := make([]segment, len(ranges))
	for i, r := range ranges {
		segs[i] = segment{startByte: r[0], endByte: r[1]}
	}
	return &Tracker{segments: segs, startTime: time.Now()}
}

// RecordChunk adds bytes to segment id's downloaded counter. Monotonic:
// callers supply only positive increments observed since the last call.
func (t *Tracker) RecordChunk(id int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments[id].downloaded += bytes
}

// SetState transitions segment id to state, recording msg (if any) as its
// error message and adjusting the job-level completed/error counters.
func (t *Tracker) SetState(id int, state State, msg ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.segments[id].state
	t.segments[id].state = state
	if len(msg) > 0 {
		t.segments[id].errMessage = msg[0]
	}
	if prev != Completed && state == Completed {
		t.completedCount++
	}
	if prev != Error && state == Error {
		t.errorCount++
	}
}

// StartByte returns segment id's current (possibly resume-advanced) start
// offset; SegmentOriginalStart is not tracked here, callers that need the
// original offset retain it themselves.
func (t *Tracker) StartByte(id int) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.segments[id].startByte
}

// AdvanceStart moves segment id's start offset forward by resumed bytes
// and records the matching downloaded count, per the worker pool's
// resume step.
func (t *Tracker) AdvanceStart(id int, newStart, downloaded int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments[id].startByte = newStart
	t.segments[id].downloaded = downloaded
}

// SegmentSnapshot is one segment's state as of a Snapshot() call.
type SegmentSnapshot struct {
	ID              int
	StartByte       int64
	EndByte         int64
	DownloadedBytes int64
	Size            int64
	State           State
	ErrorMessage    string
	Percent         float64
}

// Snapshot is an immutable, internally consistent view of the whole job,
// taken under the same lock that guards every mutator.
type Snapshot struct {
	Segments        []SegmentSnapshot
	TotalDownloaded int64
	TotalSize       int64
	Elapsed         time.Duration
	CompletedCount  int
	ErrorCount      int
	SpeedBytesPerS  float64
}

// Snapshot returns a consistent read of the whole segment table.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := Snapshot{
		Segments:       make([]SegmentSnapshot, len(t.segments)),
		CompletedCount: t.completedCount,
		ErrorCount:     t.errorCount,
		Elapsed:        time.Since(t.startTime),
	}
	for i, s := range t.segments {
		size := s.size()
		pct := float64(0)
		if size > 0 {
			pct = float64(s.downloaded) * 100 / float64(size)
		}
		out.Segments[i] = SegmentSnapshot{
			ID:              i,
			StartByte:       s.startByte,
			EndByte:         s.endByte,
			DownloadedBytes: s.downloaded,
			Size:            size,
			State:           s.state,
			ErrorMessage:    s.errMessage,
			Percent:         pct,
		}
		out.TotalDownloaded += s.downloaded
		out.TotalSize += size
	}
	if secs := out.Elapsed.Seconds(); secs > 0 {
		out.SpeedBytesPerS = float64(out.TotalDownloaded) / secs
	}
	return out
}

// Len reports the segment count.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}
