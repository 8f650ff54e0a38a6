package stream

import (
	"bufio"
	"bytes"
	"io"
)

// maxLineBytes bounds one data line; screenshots are the largest events.
const maxLineBytes = 16 << 20

// Reader splits a response body into events. Each event is one
// "data: <json>" line; blank lines, comments and other fields are skipped.
type Reader struct {
	sc *bufio.Scanner
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	return &Reader{sc: sc}
}

// Next returns the next event, io.EOF at the end of the stream, or the decode
// error of a malformed line. Callers may continue after a decode error.
func (r *Reader) Next() (Event, error) {
	for r.sc.Scan() {
		line := bytes.TrimRight(r.sc.Bytes(), "\r")
		data, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return nil, io.EOF
		}

		return DecodeEvent(data)
	}

	if err := r.sc.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}
