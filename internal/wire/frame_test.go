package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Count: 128, Tag: -3}
	buf := make([]byte, HeaderSize)
	h.Encode(buf)
	got := Decode(buf)
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFrameThenReadHeaderAndPayload(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteFrame(&buf, Header{Count: int32(len(payload)), Tag: 7}, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	hdr, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Count != int32(len(payload)) || hdr.Tag != 7 {
		t.Fatalf("header = %+v", hdr)
	}

	got := make([]byte, hdr.Count)
	if err := ReadFull(&buf, got); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFrameOmitsPayloadForControlTags(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Header{Count: 0, Tag: -1}, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("wrote %d bytes, want exactly a header (%d)", buf.Len(), HeaderSize)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) { return 0, nil }

func TestReadFullReportsPeerClosedOnNonPositiveRead(t *testing.T) {
	if err := ReadFull(zeroReader{}, make([]byte, 4)); err != ErrPeerClosed {
		t.Errorf("got %v, want %v", err, ErrPeerClosed)
	}
	if err := ReadFull(bytes.NewReader(nil), make([]byte, 4)); err != ErrPeerClosed {
		t.Errorf("got %v, want %v", err, ErrPeerClosed)
	}
}

func TestReadFullZeroLengthNeverReads(t *testing.T) {
	if err := ReadFull(eofReader{}, nil); err != nil {
		t.Errorf("ReadFull with empty buf: %v", err)
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
