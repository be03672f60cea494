package progress

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	pb "gopkg.in/cheggaaa/pb.v1"

	"github.com/segfetch/segfetch/internal/humanize"
)

const tickInterval = 50 * time.Millisecond

// Enabled reports whether a redrawing progress display should be used,
// mirroring the teacher's DisplayProgressBar terminal check.
func Enabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// Display drives one pb.v1 progress bar per segment, redrawn on the
// tracker's snapshots, plus a plain-text fallback for non-terminal output.
type Display struct {
	tracker *Tracker
	bars    []*pb.ProgressBar
	pool    *pb.Pool
	stopped int32
	done    chan struct{}
	tty     bool
}

// NewDisplay builds a display worker for tracker, one bar per segment.
func NewDisplay(tracker *Tracker) *Display {
	d := &Display{tracker: tracker, done: make(chan struct{}), tty: Enabled()}
	if !d.tty {
		return d
	}
	d.bars = make([]*pb.ProgressBar, tracker.Len())
	snap := tracker.Snapshot()
	for _, s := range snap.Segments {
		bar := pb.New64(s.Size).SetUnits(pb.U_BYTES).
			Prefix(color.CyanString(fmt.Sprintf("Thread %d", s.ID)))
		d.bars[s.ID] = bar
	}
	return d
}

// Run redraws every 50 ms until stop is closed, then prints one final
// frame. Intended to run in its own goroutine, joined by the caller.
func (d *Display) Run(stop <-chan struct{}) {
	defer close(d.done)

	if d.tty && len(d.bars) > 0 {
		pool, err := pb.StartPool(d.bars...)
		if err == nil {
			d.pool = pool
		}
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			d.redraw()
			d.finish()
			return
		case <-ticker.C:
			d.redraw()
		}
	}
}

// Wait blocks until Run has produced its final frame.
func (d *Display) Wait() {
	<-d.done
}

func (d *Display) redraw() {
	if atomic.LoadInt32(&d.stopped) == 1 {
		return
	}
	snap := d.tracker.Snapshot()
	if d.tty && d.bars != nil {
		for _, s := range snap.Segments {
			d.bars[s.ID].Set64(s.DownloadedBytes)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "\r%d/%d bytes (%s/s)", snap.TotalDownloaded, snap.TotalSize,
		humanize.Bytes(int64(snap.SpeedBytesPerS)))
}

func (d *Display) finish() {
	if !atomic.CompareAndSwapInt32(&d.stopped, 0, 1) {
		return
	}
	if d.pool != nil {
		d.pool.Stop()
		return
	}
	if !d.tty {
		fmt.Fprintln(os.Stderr)
	}
}
