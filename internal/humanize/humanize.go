// Package humanize renders byte counts and speeds the way the CLI and the
// progress display want them, and parses bandwidth-limit strings like the
// teacher's "-rate 10MiB" flag.
package humanize

import (
	"fmt"
	"time"

	"github.com/alecthomas/units"
)

// Bytes renders n bytes as a human string, e.g. "12.3 MB".
func Bytes(n int64) string {
	const unit = 1024.0
	f := float64(n)
	switch {
	case f < unit:
		return fmt.Sprintf("%d B", n)
	case f < unit*unit:
		return fmt.Sprintf("%.1f KB", f/unit)
	case f < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", f/(unit*unit))
	default:
		return fmt.Sprintf("%.1f GB", f/(unit*unit*unit))
	}
}

// Speed renders a bytes-per-second rate, e.g. "1.2 MB/s".
func Speed(bytesPerSec float64) string {
	return Bytes(int64(bytesPerSec)) + "/s"
}

// Duration renders an elapsed duration with second precision, e.g. "1m32s".
func Duration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

// ParseRate parses strings like "10kB" or "10MiB" into bytes/sec, using the
// same grammar the teacher exposes via its "-rate" flag. An empty string
// means "no limit" and returns 0, nil.
func ParseRate(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := units.ParseStrictBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return v, nil
}
