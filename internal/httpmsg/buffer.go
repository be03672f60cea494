package httpmsg

import "github.com/segfetch/segfetch/internal/errs"

// ReadAheadCapacity bounds a single status/header line, matching spec's
// ProtocolTooLong failure when a line never terminates within capacity.
const ReadAheadCapacity = 8192

// Recver is the minimal transport operation the parser needs: a blocking
// read into the caller's buffer.
type Recver interface {
	Recv(buf []byte) (int, error)
}

// ReadAhead is the fixed-capacity staging buffer spec §3 describes: bytes
// read from the transport that line/header parsing hasn't consumed yet.
// Invariant: 0 <= pos <= len <= cap(data).
type ReadAhead struct {
	data []byte
	pos  int
	len  int
	r    Recver
}

// NewReadAhead wraps r with a ReadAheadCapacity-sized staging buffer.
func NewReadAhead(r Recver) *ReadAhead {
	return &ReadAhead{data: make([]byte, ReadAheadCapacity), r: r}
}

// fill reads more bytes from the transport when the buffer is exhausted,
// compacting first so pos resets to 0. Returns the number of new bytes,
// which is 0 on orderly peer close.
func (b *ReadAhead) fill() (int, error) {
	if b.pos > 0 {
		copy(b.data, b.data[b.pos:b.len])
		b.len -= b.pos
		b.pos = 0
	}
	if b.len == len(b.data) {
		return 0, errs.New(errs.HTTPResponse, "ProtocolTooLong")
	}
	n, err := b.r.Recv(b.data[b.len:])
	if err != nil {
		return 0, err
	}
	b.len += n
	return n, nil
}

// readLine scans for a line terminator (\r\n, tolerating a bare \n),
// advancing pos past it and returning the line without the terminator.
// On orderly peer close before any terminator, the remaining buffered
// bytes are returned as the final line (ok=false signals "no more after
// this").
func (b *ReadAhead) readLine() (line string, ok bool, err error) {
	for {
		for i := b.pos; i < b.len; i++ {
			if b.data[i] == '\n' {
				end := i
				if end > b.pos && b.data[end-1] == '\r' {
					end--
				}
				line = string(b.data[b.pos:end])
				b.pos = i + 1
				return line, true, nil
			}
		}
		n, ferr := b.fill()
		if ferr != nil {
			return "", false, ferr
		}
		if n == 0 {
			line = string(b.data[b.pos:b.len])
			b.pos = b.len
			return line, false, nil
		}
	}
}

// Residual returns the unconsumed bytes data[pos:len] — the first bytes of
// the body, per spec's parser completion invariant.
func (b *ReadAhead) Residual() []byte {
	return b.data[b.pos:b.len]
}

// ConsumeResidual marks the first n residual bytes as consumed.
func (b *ReadAhead) ConsumeResidual(n int) {
	b.pos += n
}
