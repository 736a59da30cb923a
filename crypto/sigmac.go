package crypto

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/go-edhoc/edhoc/protocol"
)

// Op selects GENERATE or VERIFY for SignatureOrMAC.
type Op uint8

const (
	OpGenerate Op = iota
	OpVerify
)

// macInfo is the CBOR-structured info input to EDHOC-KDF when deriving
// MAC_2/MAC_3: [context_label, TH, id_cred, cred, ead]. context_label
// is "MAC_2" or "MAC_3".
type macInfo struct {
	_          struct{} `cbor:",toarray"`
	ContextLbl string
	TH         []byte
	IDCred     []byte
	Cred       []byte
	EAD        []byte
}

// macN computes MAC_n = EDHOC-KDF(PRK, TH, contextLabel, idCred, cred,
// ead, macLen).
func macN(alg protocol.HashAlg, prk []byte, contextLabel string, th, idCred, cred, ead []byte, macLen int) ([]byte, error) {
	info, err := cbor.Marshal(macInfo{ContextLbl: contextLabel, TH: th, IDCred: idCred, Cred: cred, EAD: ead})
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "encode mac info: %v", err)
	}
	mac, err := HKDFExpand(alg, prk, info, macLen)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "derive mac: %v", err)
	}
	return mac, nil
}

// sigInput is what a signature method signs over: (TH, id_cred, cred,
// ead, MAC_n), concatenated as raw bytes with no CBOR framing.
func sigInput(th, idCred, cred, ead, mac []byte) []byte {
	out := make([]byte, 0, len(th)+len(idCred)+len(cred)+len(ead)+len(mac))
	out = append(out, th...)
	out = append(out, idCred...)
	out = append(out, cred...)
	out = append(out, ead...)
	out = append(out, mac...)
	return out
}

// SignatureOrMAC implements a uniform signature_or_mac(op, is_static_dh,
// suite, sk, pk, PRK, TH, id_cred, cred, ead, context_label, out)
// interface. On GENERATE it returns the authenticator bytes to embed in
// the ciphertext plaintext; on VERIFY it checks auth against a freshly
// recomputed MAC_n (and signature, if applicable) and returns a
// non-nil error on any mismatch, without revealing which subfield
// failed.
func SignatureOrMAC(op Op, isStaticDH bool, suite protocol.Suite, signer Signer, rnd io.Reader,
	sk, pk, prk []byte, th, idCred, cred, ead []byte, contextLabel string, auth []byte) ([]byte, error) {

	mac, err := macN(suite.Hash, prk, contextLabel, th, idCred, cred, ead, suite.MACLen)
	if err != nil {
		return nil, err
	}

	if isStaticDH {
		switch op {
		case OpGenerate:
			return mac, nil
		default:
			if !constantTimeEqual(auth, mac) {
				return nil, protocol.Errf(protocol.ErrMACAuthenticationFailed, "mac_3/mac_2 mismatch")
			}
			return mac, nil
		}
	}

	msg := sigInput(th, idCred, cred, ead, mac)
	switch op {
	case OpGenerate:
		sig, err := signer.Sign(rnd, sk, msg)
		if err != nil {
			return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "sign: %v", err)
		}
		return sig, nil
	default:
		if !signer.Verify(pk, msg, auth) {
			return nil, protocol.Errf(protocol.ErrSignatureAuthenticationFailed, "signature verification failed")
		}
		return mac, nil
	}
}

// constantTimeEqual compares two byte slices in time independent of
// where they first differ, avoiding a timing oracle on MAC comparison.
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
