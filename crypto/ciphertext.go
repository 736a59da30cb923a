package crypto

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/go-edhoc/edhoc/protocol"
)

// plaintext2 is the CBOR sequence XORed under KEYSTREAM_2:
// id_cred_r | sign_or_mac_2 | ?ead_2.
type plaintext2 struct {
	IDCredR    []byte
	SignOrMac2 []byte
	EAD2       []byte // nil if absent
}

func (p plaintext2) encode() ([]byte, error) {
	out, err := cbor.Marshal(p.IDCredR)
	if err != nil {
		return nil, err
	}
	b, err := cbor.Marshal(p.SignOrMac2)
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	if p.EAD2 != nil {
		b, err = cbor.Marshal(p.EAD2)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func decodePlaintext2(buf []byte) (plaintext2, error) {
	var p plaintext2
	items, err := decodeSequence(buf, 2, 3)
	if err != nil {
		return plaintext2{}, err
	}
	p.IDCredR = items[0]
	p.SignOrMac2 = items[1]
	if len(items) == 3 {
		p.EAD2 = items[2]
	}
	return p, nil
}

// plaintext3 is the CBOR sequence inside ciphertext_3's AEAD payload:
// id_cred_i | sign_or_mac | ?ead_3.
type plaintext3 struct {
	IDCredI    []byte
	SignOrMac  []byte
	EAD3       []byte
}

func (p plaintext3) encode() ([]byte, error) {
	out, err := cbor.Marshal(p.IDCredI)
	if err != nil {
		return nil, err
	}
	b, err := cbor.Marshal(p.SignOrMac)
	if err != nil {
		return nil, err
	}
	out = append(out, b...)
	if p.EAD3 != nil {
		b, err = cbor.Marshal(p.EAD3)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func decodePlaintext3(buf []byte) (plaintext3, error) {
	items, err := decodeSequence(buf, 2, 3)
	if err != nil {
		return plaintext3{}, err
	}
	p := plaintext3{IDCredI: items[0], SignOrMac: items[1]}
	if len(items) == 3 {
		p.EAD3 = items[2]
	}
	return p, nil
}

// decodeSequence decodes a CBOR sequence of bstr items, requiring
// between min and max items and that the whole buffer is consumed.
func decodeSequence(buf []byte, min, max int) ([][]byte, error) {
	var items [][]byte
	rest := buf
	for len(rest) > 0 && len(items) < max {
		var b []byte
		n, err := decodeOneByteString(rest, &b)
		if err != nil {
			break
		}
		items = append(items, b)
		rest = rest[n:]
	}
	if len(items) < min || len(rest) != 0 {
		return nil, protocol.Errf(protocol.ErrCBORDecoding, "plaintext does not decode as %d-%d byte strings", min, max)
	}
	return items, nil
}

func decodeOneByteString(buf []byte, out *[]byte) (int, error) {
	b, n, err := protocol.DecodeByteString(buf)
	if err != nil {
		return 0, err
	}
	*out = b
	return n, nil
}

// EncryptMessage2 derives KEYSTREAM_2 from PRK_2e/TH_2 (length equal to
// the serialized plaintext) and XORs it over
// (id_cred_r, sign_or_mac_2, ?ead_2), EDHOC's KEYSTREAM construction
// for msg2.
func EncryptMessage2(alg protocol.HashAlg, prk2e, th2, idCredR, signOrMac2, ead2 []byte) (ciphertext2 []byte, err error) {
	pt, err := plaintext2{IDCredR: idCredR, SignOrMac2: signOrMac2, EAD2: ead2}.encode()
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCBOREncoding, "encode plaintext_2: %v", err)
	}
	ks, err := HKDFExpand(alg, prk2e, th2, len(pt))
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "derive keystream_2: %v", err)
	}
	ct := make([]byte, len(pt))
	for i := range pt {
		ct[i] = pt[i] ^ ks[i]
	}
	return ct, nil
}

// DecryptMessage2 is the KEYSTREAM_2 inverse, used by initiator-side
// test vectors and round-trip tests.
func DecryptMessage2(alg protocol.HashAlg, prk2e, th2, ciphertext2 []byte) (idCredR, signOrMac2, ead2 []byte, err error) {
	ks, err := HKDFExpand(alg, prk2e, th2, len(ciphertext2))
	if err != nil {
		return nil, nil, nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "derive keystream_2: %v", err)
	}
	pt := make([]byte, len(ciphertext2))
	for i := range ciphertext2 {
		pt[i] = ciphertext2[i] ^ ks[i]
	}
	p, err := decodePlaintext2(pt)
	if err != nil {
		return nil, nil, nil, err
	}
	return p.IDCredR, p.SignOrMac2, p.EAD2, nil
}

// aeadKeyIV derives (K, IV) for the msg3/msg4 AEAD from (PRK, TH) via
// HKDF-Expand with the AEAD's own key/info labels.
func aeadKeyIV(alg protocol.HashAlg, aead AEADCipher, prk, th []byte, keyLabel, ivLabel string) (key, iv []byte, err error) {
	key, err = HKDFExpand(alg, prk, append([]byte(keyLabel), th...), aead.KeyLen())
	if err != nil {
		return nil, nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "derive key: %v", err)
	}
	iv, err = HKDFExpand(alg, prk, append([]byte(ivLabel), th...), aead.IVLen())
	if err != nil {
		return nil, nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "derive iv: %v", err)
	}
	return key, iv, nil
}

// aad builds the CBOR-encoded Encrypt0-style additional authenticated
// data bound to TH.
func aad(th []byte) ([]byte, error) {
	// ["Encrypt0", bstr(""), bstr(TH)]
	return cbor.Marshal([]interface{}{"Encrypt0", []byte{}, th})
}

// CiphertextGen encrypts plaintext (id_cred, authenticator, ead) under
// AEAD(K_n, IV_n), where n is 3 or 4 depending on which PRK/TH pair is
// passed.
func CiphertextGen(suite protocol.Suite, aeadCipher AEADCipher, prk, th, idCred, auth, ead []byte, keyLabel, ivLabel string) ([]byte, error) {
	pt, err := plaintext3{IDCredI: idCred, SignOrMac: auth, EAD3: ead}.encode()
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCBOREncoding, "encode plaintext: %v", err)
	}
	key, iv, err := aeadKeyIV(suite.Hash, aeadCipher, prk, th, keyLabel, ivLabel)
	if err != nil {
		return nil, err
	}
	a, err := aad(th)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCBOREncoding, "encode aad: %v", err)
	}
	ct, err := aeadCipher.Seal(key, iv, a, pt)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "aead seal: %v", err)
	}
	return ct, nil
}

// CiphertextDecryptSplit decrypts ciphertext_3 under AEAD(K_3, IV_3) and
// parses the plaintext into (id_cred_i, sign_or_mac, ead_3). An AEAD
// mismatch returns aead_authentication_failed; a malformed plaintext
// returns cbor_decoding_error.
func CiphertextDecryptSplit(suite protocol.Suite, aeadCipher AEADCipher, prk, th, ciphertext []byte, keyLabel, ivLabel string) (idCredI, signOrMac, ead3 []byte, err error) {
	key, iv, err := aeadKeyIV(suite.Hash, aeadCipher, prk, th, keyLabel, ivLabel)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := aad(th)
	if err != nil {
		return nil, nil, nil, protocol.Errf(protocol.ErrCBOREncoding, "encode aad: %v", err)
	}
	pt, err := aeadCipher.Open(key, iv, a, ciphertext)
	if err != nil {
		return nil, nil, nil, err // already protocol.ErrAEADAuthenticationFailed from the AEADCipher impl
	}
	p, err := decodePlaintext3(pt)
	if err != nil {
		return nil, nil, nil, err
	}
	return p.IDCredI, p.SignOrMac, p.EAD3, nil
}

// EncryptEAD4 encrypts ead_4 directly under AEAD(K_4, IV_4) with no
// id_cred/authenticator wrapping: msg4's plaintext is ead_4 alone, so
// that |ciphertext_4| = |ead_4| + AEAD tag length.
func EncryptEAD4(suite protocol.Suite, aeadCipher AEADCipher, prk4x3m, th4, ead4 []byte, keyLabel, ivLabel string) ([]byte, error) {
	key, iv, err := aeadKeyIV(suite.Hash, aeadCipher, prk4x3m, th4, keyLabel, ivLabel)
	if err != nil {
		return nil, err
	}
	a, err := aad(th4)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCBOREncoding, "encode aad: %v", err)
	}
	ct, err := aeadCipher.Seal(key, iv, a, ead4)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "aead seal: %v", err)
	}
	return ct, nil
}

// DecryptEAD4 is the inverse of EncryptEAD4, used by initiator-side
// test vectors and round-trip tests.
func DecryptEAD4(suite protocol.Suite, aeadCipher AEADCipher, prk4x3m, th4, ciphertext4 []byte, keyLabel, ivLabel string) ([]byte, error) {
	key, iv, err := aeadKeyIV(suite.Hash, aeadCipher, prk4x3m, th4, keyLabel, ivLabel)
	if err != nil {
		return nil, err
	}
	a, err := aad(th4)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCBOREncoding, "encode aad: %v", err)
	}
	return aeadCipher.Open(key, iv, a, ciphertext4)
}
