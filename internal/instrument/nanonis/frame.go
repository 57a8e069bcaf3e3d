package nanonis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

func floatBits(v float32) uint32 { return math.Float32bits(v) }
func floatFrom(b uint32) float32 { return math.Float32frombits(b) }

// The Nanonis TCP interface frames every request and response with a fixed
// 40-byte header: the command name zero-padded to 32 bytes, the body size
// as a big-endian uint32, a response-requested flag, and two filler bytes.
// All numeric body fields are big-endian.
const (
	commandNameLen = 32
	headerLen      = commandNameLen + 8
)

// frame is an outgoing request body under construction.
type frame struct {
	command string
	body    []byte
}

func newFrame(command string) *frame {
	return &frame{command: command}
}

func (f *frame) appendInt32(v int32) {
	f.body = binary.BigEndian.AppendUint32(f.body, uint32(v))
}

func (f *frame) appendUint32(v uint32) {
	f.body = binary.BigEndian.AppendUint32(f.body, v)
}

func (f *frame) appendFloat32(v float32) {
	f.body = binary.BigEndian.AppendUint32(f.body, floatBits(v))
}

// encode renders the full wire frame: header plus body.
func (f *frame) encode() []byte {
	buf := make([]byte, headerLen, headerLen+len(f.body))
	copy(buf[:commandNameLen], f.command)
	binary.BigEndian.PutUint32(buf[commandNameLen:], uint32(len(f.body)))
	binary.BigEndian.PutUint16(buf[commandNameLen+4:], 1) // request a response
	return append(buf, f.body...)
}

// response is a decoded reply body with a read cursor.
type response struct {
	command string
	body    []byte
	off     int
}

// readResponse reads one framed reply from r.
func readResponse(r io.Reader) (*response, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	name := header[:commandNameLen]
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}

	size := binary.BigEndian.Uint32(header[commandNameLen:])
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &response{command: string(name[:end]), body: body}, nil
}

func (r *response) remaining() int {
	return len(r.body) - r.off
}

func (r *response) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("%s: truncated response body", r.command)
	}
	v := binary.BigEndian.Uint32(r.body[r.off:])
	r.off += 4
	return v, nil
}

func (r *response) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *response) float32() (float32, error) {
	v, err := r.uint32()
	return floatFrom(v), err
}

func (r *response) bytes(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("%s: truncated response body", r.command)
	}
	b := r.body[r.off : r.off+n]
	r.off += n
	return b, nil
}

// checkError consumes the trailing error block every Nanonis reply carries:
// a status word followed by a length-prefixed description.
func (r *response) checkError() error {
	status, err := r.uint32()
	if err != nil {
		return err
	}
	descLen, err := r.uint32()
	if err != nil {
		return err
	}
	desc, err := r.bytes(int(descLen))
	if err != nil {
		return err
	}
	if status != 0 {
		return &Error{Command: r.command, Status: status, Description: string(desc)}
	}
	return nil
}

// Error is a non-zero status returned by the instrument.
type Error struct {
	Command     string
	Status      uint32
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("nanonis %s: %s (status %d)", e.Command, e.Description, e.Status)
	}
	return fmt.Sprintf("nanonis %s: status %d", e.Command, e.Status)
}
