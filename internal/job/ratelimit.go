package job

import "golang.org/x/time/rate"

// sharedLimiter builds the job-wide token-bucket limiter every segment
// worker draws from, so the combined throughput across all segments stays
// under bytesPerSec. Returns nil (unlimited) when bytesPerSec <= 0.
func sharedLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}
