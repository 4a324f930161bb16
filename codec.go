package linesock

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Delimiter terminates every line on the wire.
const Delimiter = '\n'

// ErrInvalidUTF8 is returned when a complete line is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("line is not valid utf-8")

// DecodeError reports a frame that cannot be delivered.
// Start and End delimit the offending bytes within the buffer passed to Decode.
type DecodeError struct {
	Start, End int
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode fault in bytes [%d, %d): %v", e.Start, e.End, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Line is a single decoded line with its delimiter stripped.
type Line string

// Length returns the length of the line in bytes.
func (l Line) Length() int {
	return len(l)
}

// Body returns the line bytes without the delimiter.
func (l Line) Body() []byte {
	return []byte(l)
}

// LineCodec frames messages as newline-delimited UTF-8 text.
type LineCodec struct{}

// NewLineCodec returns a codec for newline-delimited text.
func NewLineCodec() *LineCodec {
	return &LineCodec{}
}

// NewDecoder implements Codec.
func (c *LineCodec) NewDecoder() Decoder {
	return &LineDecoder{}
}

// Encode implements Codec. The message body is written verbatim followed by
// the delimiter; a body that already contains '\n' will decode as several lines.
func (c *LineCodec) Encode(msg Message) ([]byte, error) {
	if l, ok := msg.(Line); ok {
		return AppendLine(nil, string(l)), nil
	}
	body := msg.Body()
	buf := make([]byte, 0, len(body)+1)
	buf = append(buf, body...)
	return append(buf, Delimiter), nil
}

// AppendLine appends line and the delimiter to dst, growing dst at most once.
func AppendLine(dst []byte, line string) []byte {
	if cap(dst)-len(dst) < len(line)+1 {
		grown := make([]byte, len(dst), len(dst)+len(line)+1)
		copy(grown, dst)
		dst = grown
	}
	dst = append(dst, line...)
	return append(dst, Delimiter)
}

// LineDecoder is the incremental decoder used by LineCodec.
//
// It remembers how much of the buffer it has already searched, so a line
// that arrives over many reads is scanned once in total rather than once
// per read.
type LineDecoder struct {
	// next is the first index of the buffer not yet examined for a delimiter.
	next int
	// scanned counts every byte examined since the decoder was created.
	scanned int
}

// Decode implements Decoder.
func (d *LineDecoder) Decode(buf []byte) (Message, int, error) {
	if d.next > len(buf) {
		// The caller dropped bytes we had not consumed; start over.
		d.next = 0
	}

	i := bytes.IndexByte(buf[d.next:], Delimiter)
	if i < 0 {
		d.scanned += len(buf) - d.next
		d.next = len(buf)
		return nil, 0, nil
	}

	d.scanned += i + 1
	end := d.next + i
	d.next = 0

	payload := buf[:end]
	if !utf8.Valid(payload) {
		return nil, 0, &DecodeError{Start: 0, End: end, Err: ErrInvalidUTF8}
	}

	return Line(payload), end + 1, nil
}
