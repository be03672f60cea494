// Package urlkit parses the scheme://host[:port]/path[?query] URLs the
// downloader accepts and classifies the host the way spec §4.A requires,
// grounded on the C original's src/parser.c rather than net/url, since the
// spec's host classifier (dotted-quad / domain-label rules) has no
// equivalent in net/url.
package urlkit

import (
	"strconv"
	"strings"

	"github.com/segfetch/segfetch/internal/errs"
)

// Protocol identifies the wire protocol implied by the scheme.
type Protocol int

const (
	HTTP Protocol = iota
	HTTPS
)

func (p Protocol) String() string {
	if p == HTTPS {
		return "https"
	}
	return "http"
}

// HostKind classifies the host field.
type HostKind int

const (
	HostInvalid HostKind = iota
	HostIPv4
	HostDomain
	HostIPv6
)

// URL is the parsed record described in spec §3.
type URL struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	Query    string
	Protocol Protocol
	HostKind HostKind
}

// Parse splits rawURL into its fields and classifies the host. It never
// performs network I/O. An empty URL, a missing host or a port that is not
// a number in 1-65535 is a URLParse error. A host that is present but fails
// classification is not an error: the URL is returned with HostKind ==
// HostInvalid, and callers must not perform network operations on it.
func Parse(rawURL string) (*URL, error) {
	if rawURL == "" {
		return nil, errs.New(errs.URLParse, "empty URL")
	}

	scheme := "http"
	rest := rawURL
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		scheme = strings.ToLower(rawURL[:idx])
		rest = rawURL[idx+3:]
	}

	proto := HTTP
	if scheme == "https" {
		proto = HTTPS
	}

	if rest == "" {
		return nil, errs.New(errs.URLParse, "missing host")
	}

	// host runs up to the first of ':', '/', '?', or end.
	hostEnd := len(rest)
	for i, c := range rest {
		if c == ':' || c == '/' || c == '?' {
			hostEnd = i
			break
		}
	}
	host := rest[:hostEnd]
	remainder := rest[hostEnd:]

	if host == "" {
		return nil, errs.New(errs.URLParse, "missing host")
	}

	port := defaultPort(proto)
	if strings.HasPrefix(remainder, ":") {
		remainder = remainder[1:]
		portEnd := len(remainder)
		for i, c := range remainder {
			if c == '/' || c == '?' {
				portEnd = i
				break
			}
		}
		portStr := remainder[:portEnd]
		remainder = remainder[portEnd:]
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 || p > 65535 {
			return nil, errs.New(errs.URLParse, "invalid port: "+portStr)
		}
		port = p
	}

	path := "/"
	query := ""
	if strings.HasPrefix(remainder, "/") {
		if q := strings.IndexByte(remainder, '?'); q >= 0 {
			path = remainder[:q]
			query = remainder[q+1:]
		} else {
			path = remainder
		}
	} else if strings.HasPrefix(remainder, "?") {
		query = remainder[1:]
	}

	return &URL{
		Scheme:   scheme,
		Host:     host,
		Port:     port,
		Path:     path,
		Query:    query,
		Protocol: proto,
		HostKind: ClassifyHost(host),
	}, nil
}

func defaultPort(p Protocol) int {
	if p == HTTPS {
		return 443
	}
	return 80
}

// ClassifyHost determines whether host is an IPv4 literal, a domain name,
// an IPv6 literal (currently always Invalid — spec §9 open question,
// left as a future extension), or Invalid.
func ClassifyHost(host string) HostKind {
	if host == "" {
		return HostInvalid
	}
	if strings.HasPrefix(host, "[") {
		// IPv6 literal syntax recognized but not supported yet.
		return HostInvalid
	}
	if isIPv4(host) {
		return HostIPv4
	}
	if isDomain(host) {
		return HostDomain
	}
	return HostInvalid
}

func isIPv4(host string) bool {
	labels := strings.Split(host, ".")
	if len(labels) != 4 {
		return false
	}
	for _, l := range labels {
		if l == "" || len(l) > 3 {
			return false
		}
		for _, c := range l {
			if c < '0' || c > '9' {
				return false
			}
		}
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 || v > 255 {
			return false
		}
		// reject leading zero like "01" (not a valid octet in our grammar)
		if len(l) > 1 && l[0] == '0' {
			return false
		}
	}
	return true
}

func isDomain(host string) bool {
	if len(host) > 253 {
		return false
	}
	labels := strings.Split(host, ".")
	for _, l := range labels {
		if len(l) == 0 || len(l) > 63 {
			return false
		}
		if l[0] == '-' || l[len(l)-1] == '-' {
			return false
		}
		for _, c := range l {
			if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') &&
				!(c >= '0' && c <= '9') && c != '-' {
				return false
			}
		}
	}
	return true
}
