// Package httpmsg hand-parses HTTP/1.1 responses off a read-ahead buffer
// and builds request bytes, grounded on the C original's src/parser.c and
// src/http.c rather than net/http, since spec §4.C/§4.D want a StatusLine
// -> Headers -> Complete state machine directly over transport bytes.
package httpmsg

import (
	"strconv"
	"strings"

	"github.com/segfetch/segfetch/internal/errs"
)

// Response is the parsed record described in spec §3.
type Response struct {
	StatusCode       int
	StatusMessage    string
	ContentLength    int64 // -1 = unknown
	ContentType      string
	Server           string
	TransferEncoding string
	AcceptRanges     string
	ContentRange     string
	Chunked          bool
	ConnectionClose  bool
	Location         string
	Cookies          string
}

// ParseResponse runs the StatusLine -> Headers -> Complete state machine
// over buf. On return, buf's Residual() holds the first bytes of the body.
func ParseResponse(buf *ReadAhead) (*Response, error) {
	resp := &Response{ContentLength: -1}

	statusLine, ok, err := buf.readLine()
	if err != nil {
		return nil, err
	}
	if !ok && statusLine == "" {
		return nil, errs.New(errs.HTTPResponse, "connection closed before status line")
	}
	if err := parseStatusLine(statusLine, resp); err != nil {
		return nil, err
	}

	for {
		line, ok, err := buf.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			// empty line terminates the header block
			return resp, nil
		}
		if err := parseHeaderLine(line, resp); err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.New(errs.HTTPResponse, "connection closed mid-headers")
		}
	}
}

func parseStatusLine(line string, resp *Response) error {
	// "HTTP/<ver> <code> <msg?>"
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return errs.New(errs.HTTPResponse, "malformed status line: "+line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return errs.New(errs.HTTPResponse, "non-numeric status code: "+parts[1])
	}
	resp.StatusCode = code
	if len(parts) == 3 {
		resp.StatusMessage = parts[2]
	} else {
		resp.StatusMessage = "OK"
	}
	return nil
}

func parseHeaderLine(line string, resp *Response) error {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return errs.New(errs.HTTPResponse, "malformed header line: "+line)
	}
	name := line[:idx]
	value := strings.TrimRight(strings.TrimLeft(line[idx+1:], " \t"), " \t\r")

	switch strings.ToLower(name) {
	case "content-length":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return errs.New(errs.HTTPResponse, "invalid Content-Length: "+value)
		}
		resp.ContentLength = n
	case "content-type":
		resp.ContentType = value
	case "transfer-encoding":
		resp.TransferEncoding = value
		if strings.EqualFold(value, "chunked") {
			resp.Chunked = true
		}
	case "connection":
		if strings.EqualFold(value, "close") {
			resp.ConnectionClose = true
		}
	case "location":
		resp.Location = value
	case "server":
		resp.Server = value
	case "set-cookie":
		if resp.Cookies == "" {
			resp.Cookies = value
		} else {
			resp.Cookies += "; " + value
		}
	case "accept-ranges":
		resp.AcceptRanges = value
	case "content-range":
		resp.ContentRange = value
	}
	return nil
}
