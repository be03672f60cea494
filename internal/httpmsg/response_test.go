package httpmsg

import (
	"strings"
	"testing"
)

// chunkedRecver splits data into arbitrary pieces to test that parsing is
// insensitive to how bytes are split across transport reads, per spec §8.
type chunkedRecver struct {
	chunks [][]byte
	idx    int
}

func (c *chunkedRecver) Recv(buf []byte) (int, error) {
	if c.idx >= len(c.chunks) {
		return 0, nil
	}
	n := copy(buf, c.chunks[c.idx])
	c.idx++
	return n, nil
}

func splitEvery(data []byte, n int) [][]byte {
	var out [][]byte
	for i := 0; i < len(data); i += n {
		end := i + n
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[i:end])
	}
	return out
}

func TestParseResponseArbitrarySplitting(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	for _, chunkSize := range []int{1, 2, 3, 7, 1024} {
		r := &chunkedRecver{chunks: splitEvery([]byte(raw), chunkSize)}
		buf := NewReadAhead(r)
		resp, err := ParseResponse(buf)
		if err != nil {
			t.Fatalf("chunkSize=%d: ParseResponse error: %v", chunkSize, err)
		}
		if resp.StatusCode != 200 || resp.ContentLength != 5 {
			t.Fatalf("chunkSize=%d: got status=%d len=%d", chunkSize, resp.StatusCode, resp.ContentLength)
		}
		body := string(buf.Residual())
		for len(body) < 5 {
			more := make([]byte, 64)
			n, _ := r.Recv(more)
			if n == 0 {
				break
			}
			body += string(more[:n])
		}
		if body == "" && chunkSize >= len(raw) {
			t.Fatalf("chunkSize=%d: expected residual body bytes", chunkSize)
		}
		if body != "hello" {
			t.Fatalf("chunkSize=%d: body = %q, want %q", chunkSize, body, "hello")
		}
	}
}

func TestParseResponseBareNewlineTolerance(t *testing.T) {
	raw := "HTTP/1.1 200 OK\nContent-Length: 5\n\nhello"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	buf := NewReadAhead(r)
	resp, err := ParseResponse(buf)
	if err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if resp.StatusCode != 200 || resp.ContentLength != 5 {
		t.Fatalf("got status=%d len=%d", resp.StatusCode, resp.ContentLength)
	}
	if string(buf.Residual()) != "hello" {
		t.Fatalf("residual = %q, want %q", buf.Residual(), "hello")
	}
}

func TestParseResponseMissingMessageDefaultsToOK(t *testing.T) {
	raw := "HTTP/1.1 204\r\n\r\n"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	resp, err := ParseResponse(NewReadAhead(r))
	if err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if resp.StatusMessage != "OK" {
		t.Errorf("StatusMessage = %q, want %q", resp.StatusMessage, "OK")
	}
}

func TestParseResponseNonNumericCodeFails(t *testing.T) {
	raw := "HTTP/1.1 ABC OK\r\n\r\n"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	if _, err := ParseResponse(NewReadAhead(r)); err == nil {
		t.Error("expected error for non-numeric status code")
	}
}

func TestParseResponseHeaders(t *testing.T) {
	raw := "HTTP/1.1 206 Partial Content\r\n" +
		"Content-Range: bytes 0-1023/2048\r\n" +
		"Accept-Ranges: bytes\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"Connection: close\r\n" +
		"Set-Cookie: a=1\r\n" +
		"Set-Cookie: b=2\r\n" +
		"Location: http://x/y\r\n" +
		"Server: test\r\n" +
		"\r\n"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	resp, err := ParseResponse(NewReadAhead(r))
	if err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if resp.StatusCode != 206 || resp.StatusMessage != "Partial Content" {
		t.Fatalf("status mismatch: %d %q", resp.StatusCode, resp.StatusMessage)
	}
	if resp.ContentRange != "bytes 0-1023/2048" {
		t.Errorf("ContentRange = %q", resp.ContentRange)
	}
	if resp.AcceptRanges != "bytes" || !resp.Chunked || !resp.ConnectionClose {
		t.Errorf("flag fields mismatch: %+v", resp)
	}
	if resp.Cookies != "a=1; b=2" {
		t.Errorf("Cookies = %q, want %q", resp.Cookies, "a=1; b=2")
	}
	if resp.Location != "http://x/y" || resp.Server != "test" {
		t.Errorf("location/server mismatch: %+v", resp)
	}
}

func TestParseResponseNegativeContentLengthFails(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: -5\r\n\r\n"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	if _, err := ParseResponse(NewReadAhead(r)); err == nil {
		t.Error("expected error for negative Content-Length")
	}
}

func TestParseResponseMalformedStatusLine(t *testing.T) {
	raw := "not a status line\r\n\r\n"
	r := &chunkedRecver{chunks: [][]byte{[]byte(raw)}}
	if _, err := ParseResponse(NewReadAhead(r)); err == nil {
		t.Error("expected error for malformed status line")
	}
}

func TestProtocolTooLong(t *testing.T) {
	huge := strings.Repeat("a", ReadAheadCapacity+10)
	r := &chunkedRecver{chunks: [][]byte{[]byte("HTTP/1.1 200 " + huge)}}
	if _, err := ParseResponse(NewReadAhead(r)); err == nil {
		t.Error("expected ProtocolTooLong error")
	}
}
