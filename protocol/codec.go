package protocol

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
)

// EDHOC messages are CBOR *sequences*: independent top-level data items
// concatenated with no enclosing array header. fxamacker/cbor's
// streaming Decoder reads exactly one item per Decode call and reports
// how many bytes it consumed, which is exactly the primitive this
// format needs; there is no single Marshal/Unmarshal call that can
// express a sequence, so the codecs below always walk field-by-field.

var encOpts = cbor.CanonicalEncOptions()

func marshal(v interface{}) ([]byte, error) {
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, err
	}
	b, err := em.Marshal(v)
	if err != nil {
		return nil, Errf(ErrCBOREncoding, "%v", err)
	}
	return b, nil
}

// seqDecoder decodes successive items out of a CBOR sequence, tracking
// total bytes consumed so callers can report how much of the receive
// buffer a message occupied.
type seqDecoder struct {
	dec      *cbor.Decoder
	consumed int
	buf      *bytes.Reader
}

func newSeqDecoder(b []byte) *seqDecoder {
	r := bytes.NewReader(b)
	return &seqDecoder{dec: cbor.NewDecoder(r), buf: r}
}

func (s *seqDecoder) next(v interface{}) error {
	if err := s.dec.Decode(v); err != nil {
		return Errf(ErrCBORDecoding, "%v", err)
	}
	// The Decoder reads ahead from buf, so the reader's position says
	// nothing about item boundaries; NumBytesRead counts decoded bytes only.
	s.consumed = s.dec.NumBytesRead()
	return nil
}

// remaining reports whether any bytes are left undecoded.
func (s *seqDecoder) remaining() bool {
	return int64(s.consumed) < s.buf.Size()
}

// DecodeMessage1 decodes `METHOD | SUITES_I | G_X | C_I | ?ead_1`.
// SUITES_I is CDDL `int / [ 2*suite: int ]`; the two shapes are told
// apart by first decoding to a cbor.RawMessage and attempting an int64
// unmarshal before falling back to a slice.
func DecodeMessage1(buf []byte) (Message1, int, error) {
	var m Message1
	d := newSeqDecoder(buf)

	var methodInt int64
	if err := d.next(&methodInt); err != nil {
		return Message1{}, 0, err
	}
	method, err := ParseMethod(methodInt)
	if err != nil {
		return Message1{}, 0, err
	}
	m.Method = method

	var suitesRaw cbor.RawMessage
	if err := d.next(&suitesRaw); err != nil {
		return Message1{}, 0, err
	}
	var single int64
	if err := cbor.Unmarshal(suitesRaw, &single); err == nil {
		m.SuitesI = []SuiteLabel{SuiteLabel(single)}
	} else {
		var list []int64
		if err := cbor.Unmarshal(suitesRaw, &list); err != nil {
			return Message1{}, 0, Errf(ErrCBORDecoding, "SUITES_I is neither int nor array: %v", err)
		}
		if len(list) > 32 {
			return Message1{}, 0, Errf(ErrSuitesIListTooLong, "SUITES_I has %d entries", len(list))
		}
		m.SuitesI = make([]SuiteLabel, len(list))
		for i, v := range list {
			m.SuitesI[i] = SuiteLabel(v)
		}
	}

	if err := d.next(&m.GX); err != nil {
		return Message1{}, 0, err
	}

	if err := d.next(&m.CI); err != nil {
		return Message1{}, 0, err
	}

	if d.remaining() {
		if err := d.next(&m.EAD1); err != nil {
			return Message1{}, 0, err
		}
	}

	return m, d.consumed, nil
}

// EncodeMessage2 encodes `G_Y_CIPHERTEXT_2 (bstr) | C_R (int|bstr)`.
func EncodeMessage2(m Message2) ([]byte, error) {
	gyc, err := marshal(m.GYCiphertext2)
	if err != nil {
		return nil, err
	}
	cr, err := m.CR.MarshalCBOR()
	if err != nil {
		return nil, Errf(ErrCBOREncoding, "%v", err)
	}
	return append(gyc, cr...), nil
}

// DecodeMessage2 is the mirror of EncodeMessage2, used by initiator-side
// test vectors and round-trip tests.
func DecodeMessage2(buf []byte) (Message2, int, error) {
	var m Message2
	d := newSeqDecoder(buf)
	if err := d.next(&m.GYCiphertext2); err != nil {
		return Message2{}, 0, err
	}
	if err := d.next(&m.CR); err != nil {
		return Message2{}, 0, err
	}
	return m, d.consumed, nil
}

// EncodeByteString wraps b as a single CBOR bstr item - the schema for
// both msg3 and msg4.
func EncodeByteString(b []byte) ([]byte, error) {
	return marshal(b)
}

// DecodeByteString decodes a single CBOR bstr item and reports the
// number of bytes it consumed.
func DecodeByteString(buf []byte) ([]byte, int, error) {
	d := newSeqDecoder(buf)
	var b []byte
	if err := d.next(&b); err != nil {
		return nil, 0, err
	}
	return b, d.consumed, nil
}

// EncodeErrorMessage encodes `C_x | ERR_CODE | ERR_INFO`, where ERR_INFO
// is a suites list on WireErrWrongSelectedCipherSuite and a diagnostic
// string otherwise.
func EncodeErrorMessage(m ErrorMessage) ([]byte, error) {
	cx, err := m.Cx.MarshalCBOR()
	if err != nil {
		return nil, Errf(ErrCBOREncoding, "%v", err)
	}
	code, err := marshal(int64(m.ErrCode))
	if err != nil {
		return nil, err
	}
	var info []byte
	if m.ErrCode == WireErrWrongSelectedCipherSuite {
		labels := make([]int64, len(m.Suites))
		for i, s := range m.Suites {
			labels[i] = int64(s)
		}
		info, err = marshal(labels)
	} else {
		info, err = marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	out := append(append(cx, code...), info...)
	return out, nil
}

// DecodeErrorMessage decodes `C_x | ERR_CODE | ERR_INFO`, inferring
// ERR_INFO's shape from ERR_CODE.
func DecodeErrorMessage(buf []byte) (ErrorMessage, int, error) {
	var m ErrorMessage
	d := newSeqDecoder(buf)
	if err := d.next(&m.Cx); err != nil {
		return ErrorMessage{}, 0, err
	}
	var code int64
	if err := d.next(&code); err != nil {
		return ErrorMessage{}, 0, err
	}
	m.ErrCode = WireErrCode(code)

	var infoRaw cbor.RawMessage
	if err := d.next(&infoRaw); err != nil {
		return ErrorMessage{}, 0, err
	}
	if m.ErrCode == WireErrWrongSelectedCipherSuite {
		var list []int64
		if err := cbor.Unmarshal(infoRaw, &list); err != nil {
			return ErrorMessage{}, 0, Errf(ErrCBORDecoding, "ERR_INFO: %v", err)
		}
		m.Suites = make([]SuiteLabel, len(list))
		for i, v := range list {
			m.Suites[i] = SuiteLabel(v)
		}
	} else {
		if err := cbor.Unmarshal(infoRaw, &m.Text); err != nil {
			return ErrorMessage{}, 0, Errf(ErrCBORDecoding, "ERR_INFO: %v", err)
		}
	}
	return m, d.consumed, nil
}

// TryDecodeMessage3 attempts to decode buf as ciphertext_3. A buffer
// that is actually an error message (more than one top-level CBOR
// item, the first of which is a valid C_x) is reported back as such
// instead of failing decoding outright.
func TryDecodeMessage3(buf []byte) (ciphertext3 []byte, errMsg *ErrorMessage, err error) {
	ct3, n, decErr := DecodeByteString(buf)
	if decErr == nil && n == len(buf) {
		return ct3, nil, nil
	}
	em, n2, emErr := DecodeErrorMessage(buf)
	if emErr == nil && n2 == len(buf) {
		return nil, &em, nil
	}
	if decErr != nil {
		return nil, nil, decErr
	}
	return nil, nil, Errf(ErrCBORDecoding, "msg3 has trailing bytes")
}
