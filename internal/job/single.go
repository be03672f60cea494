// Package job implements the redirect driver and single-stream fallback
// (§4.K), and the Download entry point that dispatches between the
// multi-segment engine and this fallback. Grounded on the teacher's
// NewDownloader/do in http.go for the redirect-follow shape, reworked onto
// the hand-rolled wire package instead of net/http.Client.
package job

import (
	"context"
	"io"
	"os"

	"github.com/fujiwara/shapeio"

	"github.com/segfetch/segfetch/internal/bodyio"
	"github.com/segfetch/segfetch/internal/clog"
	"github.com/segfetch/segfetch/internal/errs"
	"github.com/segfetch/segfetch/internal/netio"
	"github.com/segfetch/segfetch/internal/urlkit"
	"github.com/segfetch/segfetch/internal/wire"
)

const maxRedirects = 10

// transportReader adapts netio.Transport's Recv to io.Reader so it can be
// wrapped by shapeio for single-stream rate shaping.
type transportReader struct{ t *netio.Transport }

func (r transportReader) Read(p []byte) (int, error) { return r.t.Recv(p) }

// singleStreamDownload follows redirects from rawURL (up to maxRedirects)
// and streams the final 2xx response body to outputPath. rateBytesPerSec
// <= 0 means unshaped.
func singleStreamDownload(ctx context.Context, rawURL, outputPath string, netOpts netio.Options, rateBytesPerSec int64, onProgress bodyio.ProgressFunc) (written int64, err error) {
	u, perr := urlkit.Parse(rawURL)
	if perr != nil {
		return 0, perr
	}

	var result *wire.Result
redirectLoop:
	for redirect := 0; ; redirect++ {
		if u.HostKind == urlkit.HostInvalid {
			return 0, errs.New(errs.URLParse, "invalid host: "+u.Host)
		}
		if redirect > maxRedirects {
			return 0, errs.New(errs.HTTPResponse, "too many redirects")
		}

		var rtErr error
		result, rtErr = wire.RoundTrip(ctx, u, "GET", -1, -1, netOpts)
		if rtErr != nil {
			return 0, rtErr
		}

		status := result.Response.StatusCode
		switch {
		case status >= 200 && status < 300:
			break redirectLoop
		case status >= 300 && status < 400:
			loc := result.Response.Location
			result.Transport.Close()
			if loc == "" {
				return 0, errs.New(errs.HTTPResponse, "redirect without Location")
			}
			next, nerr := urlkit.Parse(loc)
			if nerr != nil {
				return 0, nerr
			}
			u = next
		default:
			result.Transport.Close()
			return 0, errs.New(errs.HTTPResponse, "unexpected status")
		}
	}

	defer result.Transport.Close()

	f, ferr := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if ferr != nil {
		return 0, errs.Wrap(errs.FileOpen, "open output file", ferr)
	}
	defer f.Close()

	var reader bodyio.Recver = result.Transport
	if rateBytesPerSec > 0 {
		shaped := shapeio.NewReader(transportReader{t: result.Transport})
		shaped.SetRateLimit(float64(rateBytesPerSec))
		reader = shapedRecver{r: shaped}
	}

	if result.Response.ContentLength >= 0 {
		written, err = bodyio.ReadKnownLength(reader, result.Buffer.Residual(), result.Response.ContentLength, f, onProgress)
	} else {
		written, err = bodyio.ReadUntilClose(reader, result.Buffer.Residual(), f, onProgress)
	}
	if err != nil {
		clog.Warnf("single-stream download failed: %v", err)
		return written, err
	}
	if err := f.Sync(); err != nil {
		return written, errs.Wrap(errs.FileWrite, "sync output file", err)
	}
	return written, nil
}

// shapedRecver adapts an io.Reader (shapeio's rate-limited wrapper) back to
// bodyio.Recver's Recv signature.
type shapedRecver struct{ r io.Reader }

func (s shapedRecver) Recv(buf []byte) (int, error) {
	n, err := s.r.Read(buf)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}
