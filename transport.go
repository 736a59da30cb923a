package edhoc

import (
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/go-edhoc/edhoc/protocol"
)

// Transport is the caller-provided rx/tx collaborator. Rx fills buf up
// to its length and returns the number of bytes actually received; Tx
// sends exactly len(buf) bytes. Run returns an error from either method
// unchanged and aborts with no further protocol messages sent;
// NetTransport reports its own I/O failures as protocol.ErrTransport.
type Transport interface {
	Rx(buf []byte) (n int, err error)
	Tx(buf []byte) error
}

// NetTransport adapts a net.Conn to Transport, the default binding for
// the cmd/edhoc-responder demo and for tests that exercise Run over a
// real socket pair.
type NetTransport struct {
	Conn net.Conn
}

func (t NetTransport) Rx(buf []byte) (int, error) {
	n, err := t.Conn.Read(buf)
	if err != nil && err != io.EOF {
		return n, protocol.Errf(protocol.ErrTransport, "rx: %v", err)
	}
	return n, nil
}

func (t NetTransport) Tx(buf []byte) error {
	n, err := t.Conn.Write(buf)
	if err != nil {
		return protocol.Errf(protocol.ErrTransport, "tx: %v", err)
	}
	if n != len(buf) {
		return protocol.Errf(protocol.ErrTransport, "tx: short write %d/%d", n, len(buf))
	}
	return nil
}

// BufferTransport is a Transport over two in-memory frames, used by
// tests to drive Run against fixed msg1/msg3 byte vectors without a
// real socket.
type BufferTransport struct {
	RxFrames [][]byte
	TxFrames [][]byte

	read int
}

func (t *BufferTransport) Rx(buf []byte) (int, error) {
	if t.read >= len(t.RxFrames) {
		return 0, errors.New("no more rx frames queued")
	}
	frame := t.RxFrames[t.read]
	t.read++
	n := copy(buf, frame)
	if n < len(frame) {
		return n, protocol.Errf(protocol.ErrBufferTooSmall, "rx buffer too small for queued frame")
	}
	return n, nil
}

func (t *BufferTransport) Tx(buf []byte) error {
	frame := make([]byte, len(buf))
	copy(frame, buf)
	t.TxFrames = append(t.TxFrames, frame)
	return nil
}
