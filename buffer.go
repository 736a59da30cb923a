package edhoc

import "github.com/go-edhoc/edhoc/protocol"

// Default capacities for the fixed-size working buffers a responder run
// allocates. These limits are part of the protocol's resource model
// and are enforced by CheckedCopy: Msg1DefaultSize/Msg3DefaultSize bound
// the receive buffers Run reads msg1/msg3 into, Msg2DefaultSize/
// Msg4DefaultSize bound the encoded msg2/msg4 buffers Run sends.
const (
	Msg1DefaultSize = 256
	Msg2DefaultSize = 256
	Msg3DefaultSize = 256
	Msg4DefaultSize = 256

	// GXMaxSize bounds the initiator's ephemeral public key field
	// decoded out of msg1, sized to the largest ephemeral key any
	// registered suite's ECDH curve produces.
	GXMaxSize = 65
)

// CheckedCopy copies src into a buffer of the given capacity, rejecting
// the copy with ErrBufferTooSmall when src does not fit. Run passes each
// received msg1/msg3, each encoded msg2/msg4 and the g_x field through
// it.
func CheckedCopy(capacity int, src []byte) ([]byte, error) {
	if len(src) > capacity {
		return nil, protocol.Errf(protocol.ErrBufferTooSmall, "copy of %d bytes exceeds buffer capacity %d", len(src), capacity)
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}
