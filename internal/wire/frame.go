// Package wire implements the framing used between a pool and its worker processes.
//
// Every message is a 4-byte big-endian length followed by that many bytes of JSON.
// A worker announces itself with a Hello, then answers each Request with exactly one
// Response carrying the same ID. Closing the worker's stdin asks it to exit.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// MaxFrameSize bounds a single frame so a corrupt length prefix cannot trigger a
// huge allocation.
const MaxFrameSize = 64 << 20

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteFrame writes one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload))) // #nosec G115 -- bounded by MaxFrameSize
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame. A clean end of stream before the
// header is reported as io.EOF; a stream cut inside a frame as io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// Conn exchanges JSON messages over a pair of byte streams.
// It is not safe for concurrent use; each worker owns exactly one.
type Conn struct {
	r *bufio.Reader
	w *bufio.Writer
}

func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{
		r: bufio.NewReader(r),
		w: bufio.NewWriter(w),
	}
}

// Send encodes v, writes it as one frame and flushes.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := WriteFrame(c.w, data); err != nil {
		return err
	}
	return c.w.Flush()
}

// Recv reads one frame and decodes it into v.
func (c *Conn) Recv(v any) error {
	data, err := ReadFrame(c.r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
