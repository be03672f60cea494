// Package wire glues netio's transport, httpmsg's request builder and
// response parser together into a single connect+send+parse round trip,
// shared by the range prober, the segment workers and the single-stream
// downloader so none of them duplicate the connect/build/parse sequence.
package wire

import (
	"context"

	"github.com/segfetch/segfetch/internal/errs"
	"github.com/segfetch/segfetch/internal/httpmsg"
	"github.com/segfetch/segfetch/internal/netio"
	"github.com/segfetch/segfetch/internal/urlkit"
)

// Result bundles the parsed response with the still-open transport and its
// read-ahead buffer so the caller can drain the body.
type Result struct {
	Transport *netio.Transport
	Buffer    *httpmsg.ReadAhead
	Response  *httpmsg.Response
}

// RoundTrip connects to u, sends a method request for path (with an
// optional byte range and extra headers), and parses the response. On any
// error the transport is closed before returning. On success, the caller
// owns Result.Transport and must close it.
func RoundTrip(ctx context.Context, u *urlkit.URL, method string, rangeLo, rangeHi int64, netOpts netio.Options, extraHeaders ...map[string]string) (*Result, error) {
	netOpts.TLS = u.Protocol == urlkit.HTTPS
	tr, err := netio.Connect(ctx, u.Host, u.Port, netOpts)
	if err != nil {
		return nil, err
	}

	path := u.Path
	if u.Query != "" {
		path += "?" + u.Query
	}
	var headers map[string]string
	if len(extraHeaders) > 0 {
		headers = extraHeaders[0]
	}
	req, err := httpmsg.BuildRequest(method, u.Host, path, rangeLo, rangeHi, headers)
	if err != nil {
		tr.Close()
		return nil, err
	}
	if err := tr.SendAll(req); err != nil {
		tr.Close()
		return nil, err
	}

	buf := httpmsg.NewReadAhead(tr)
	resp, err := httpmsg.ParseResponse(buf)
	if err != nil {
		tr.Close()
		return nil, err
	}

	return &Result{Transport: tr, Buffer: buf, Response: resp}, nil
}

// DiscardHead closes a HEAD response's transport; any residual bytes in its
// buffer (a well-behaved origin sends none, but spec doesn't forbid it) are
// dropped unread.
func DiscardHead(r *Result) {
	r.Transport.Close()
}

// EnsureStatus returns an HTTPResponse error unless resp.StatusCode is one
// of want.
func EnsureStatus(resp *httpmsg.Response, want ...int) error {
	for _, w := range want {
		if resp.StatusCode == w {
			return nil
		}
	}
	return errs.New(errs.HTTPResponse, "unexpected status code")
}
