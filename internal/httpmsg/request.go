package httpmsg

import (
	"fmt"
	"strings"

	"github.com/segfetch/segfetch/internal/errs"
)

// RequestCapacity bounds a single built request, matching spec §4.D's
// BufferOverflow failure.
const RequestCapacity = 4096

// DefaultUserAgent is what every non-probe request sends.
const DefaultUserAgent = "CHttpDownloader/1.0"

// ProbeUserAgent is a browser-compatible UA used for capability probes,
// since some origins short-circuit Accept-Ranges advertisement for
// unrecognized clients.
const ProbeUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// BuildRequest composes method/path/host/headers into request bytes per
// spec §4.D. rangeLo < 0 means "no Range header". A "User-Agent" entry in
// extraHeaders overrides DefaultUserAgent.
func BuildRequest(method, host, path string, rangeLo, rangeHi int64, extraHeaders map[string]string) ([]byte, error) {
	if path == "" {
		path = "/"
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ua := DefaultUserAgent
	if v, ok := extraHeaders["User-Agent"]; ok {
		ua = v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", ua)
	b.WriteString("Connection: close\r\n")
	b.WriteString("Accept: */*\r\n")

	if rangeLo >= 0 {
		if rangeHi >= 0 {
			fmt.Fprintf(&b, "Range: bytes=%d-%d\r\n", rangeLo, rangeHi)
		} else {
			fmt.Fprintf(&b, "Range: bytes=%d-\r\n", rangeLo)
		}
	}

	for k, v := range extraHeaders {
		if k == "User-Agent" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")

	out := b.String()
	if len(out) > RequestCapacity {
		return nil, errs.New(errs.HTTPRequest, "BufferOverflow")
	}
	return []byte(out), nil
}
