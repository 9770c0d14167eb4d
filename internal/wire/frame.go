// Package wire implements the fixed two-field frame header used on every
// MIMPI pipe, plus the fully-populate-or-fail read/write loops that ride on
// top of it.
//
// Every frame carries a header of two little-endian, fixed-width int32s:
// count then tag. Control tags (NoMessage, Deadlock) carry no payload and
// use Count as a sentinel; all other tags are followed by exactly Count
// bytes of payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the number of bytes occupied by a frame header on the wire.
const HeaderSize = 8

// Header is the fixed two-field frame header: Count then Tag.
type Header struct {
	Count int32
	Tag   int32
}

// Encode writes h into buf, which must be at least HeaderSize bytes long.
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Count))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Tag))
}

// Decode reads a Header out of buf, which must be at least HeaderSize bytes
// long.
func Decode(buf []byte) Header {
	return Header{
		Count: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Tag:   int32(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

// ErrPeerClosed is returned by ReadFull/WriteFull when the peer end of the
// pipe has been closed (observed as a non-positive read or write), mirroring
// the channel abstraction's chsend/chrecv contract in the specification.
var ErrPeerClosed = fmt.Errorf("wire: peer closed")

// ReadFull reads exactly len(buf) bytes from r, looping over short reads.
// Any non-positive read (including io.EOF before buf is full) is reported as
// ErrPeerClosed, matching the "zero/negative read means peer closed" channel
// contract.
func ReadFull(r io.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		if n <= 0 || (err != nil && n == 0) {
			return ErrPeerClosed
		}
		read += n
		if err != nil && read < len(buf) {
			return ErrPeerClosed
		}
	}
	return nil
}

// WriteFull writes all of buf to w, looping over short writes. Any
// non-positive write is reported as ErrPeerClosed.
func WriteFull(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		if n <= 0 {
			return ErrPeerClosed
		}
		written += n
		if err != nil && written < len(buf) {
			return ErrPeerClosed
		}
	}
	return nil
}

// ReadHeader reads and decodes a single frame header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if err := ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Decode(buf[:]), nil
}

// WriteFrame writes a header followed by payload (if non-empty) to w as a
// single logical frame. The caller is responsible for omitting payload for
// control tags.
func WriteFrame(w io.Writer, h Header, payload []byte) error {
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	if err := WriteFull(w, buf); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	return WriteFull(w, payload)
}
