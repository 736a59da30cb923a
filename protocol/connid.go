package protocol

import (
	"github.com/fxamacker/cbor/v2"
)

// ConnTag distinguishes the two wire encodings a connection identifier
// can take. EDHOC's C_x is CDDL `int / bstr`, modeled here as a proper
// sum type rather than an untagged union with a side discriminant.
type ConnTag uint8

const (
	ConnInt ConnTag = iota
	ConnBstr
)

// ConnID is a connection identifier (C_I, C_R). Equality compares by
// tag and value: an int-tagged 3 and a bstr-tagged []byte{3} are
// distinct identifiers even though some peers collapse the two.
type ConnID struct {
	Tag  ConnTag
	Int  int64
	Bstr []byte
}

// NewConnInt builds an int-tagged connection id.
func NewConnInt(v int64) ConnID { return ConnID{Tag: ConnInt, Int: v} }

// NewConnBstr builds a bstr-tagged connection id. The byte slice is
// copied so the caller's buffer can be reused.
func NewConnBstr(b []byte) ConnID {
	cp := append([]byte(nil), b...)
	return ConnID{Tag: ConnBstr, Bstr: cp}
}

// Equal compares by tag and underlying value.
func (c ConnID) Equal(o ConnID) bool {
	if c.Tag != o.Tag {
		return false
	}
	if c.Tag == ConnInt {
		return c.Int == o.Int
	}
	if len(c.Bstr) != len(o.Bstr) {
		return false
	}
	for i := range c.Bstr {
		if c.Bstr[i] != o.Bstr[i] {
			return false
		}
	}
	return true
}

// Bytes returns the connection identifier's "bstr identifier" form used
// to key OSCORE/EDHOC correlation and credential lookup tables: for an
// int-tagged id in the preferred range this is the CBOR-int encoding of
// that value (RFC 9528 §3.3.2's "deterministic" mapping); for a
// bstr-tagged id it is the raw bytes.
func (c ConnID) Bytes() []byte {
	if c.Tag == ConnBstr {
		return c.Bstr
	}
	if c.Int >= 0 && c.Int <= 23 {
		return []byte{byte(c.Int)}
	}
	if c.Int >= -24 && c.Int < 0 {
		return []byte{byte(0x20 + (-1 - c.Int))}
	}
	// outside the one-byte range: fall back to the raw CBOR encoding
	b, _ := cbor.Marshal(c.Int)
	return b
}

// MarshalCBOR encodes the id as a bare int or bstr, never wrapped in an
// array - each message schema places C_x directly in its CBOR sequence.
func (c ConnID) MarshalCBOR() ([]byte, error) {
	if c.Tag == ConnInt {
		return cbor.Marshal(c.Int)
	}
	return cbor.Marshal(c.Bstr)
}

// UnmarshalCBOR decodes either form, picking the variant based on the
// CBOR major type actually present on the wire.
func (c *ConnID) UnmarshalCBOR(data []byte) error {
	var asInt int64
	if err := cbor.Unmarshal(data, &asInt); err == nil {
		c.Tag = ConnInt
		c.Int = asInt
		c.Bstr = nil
		return nil
	}
	var asBytes []byte
	if err := cbor.Unmarshal(data, &asBytes); err != nil {
		return Errf(ErrCBORDecoding, "C_x is neither int nor bstr: %v", err)
	}
	c.Tag = ConnBstr
	c.Bstr = append([]byte(nil), asBytes...)
	c.Int = 0
	return nil
}
