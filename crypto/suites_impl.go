package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
	"math/big"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/go-edhoc/edhoc/protocol"
)

// HashFamily is the concrete backing for a protocol.HashAlg: a
// hash.Hash constructor (needed by HKDF) and the digest size.
type HashFamily struct {
	New  func() hash.Hash
	Size int
}

func hashFamily(alg protocol.HashAlg) HashFamily {
	switch alg {
	case protocol.HashSHA384:
		return HashFamily{New: sha512.New384, Size: sha512.Size384}
	default:
		return HashFamily{New: sha256.New, Size: sha256.Size}
	}
}

// Hash performs a one-shot digest using the suite's configured hash.
func Hash(alg protocol.HashAlg, data []byte) []byte {
	h := hashFamily(alg).New()
	h.Write(data)
	return h.Sum(nil)
}

// HKDFExtract implements hkdf_extract(salt, ikm) -> PRK. A nil salt is
// replaced by a zero-filled block of the hash's size, per RFC 5869.
func HKDFExtract(alg protocol.HashAlg, salt, ikm []byte) []byte {
	fam := hashFamily(alg)
	return hkdf.Extract(fam.New, ikm, salt)
}

// HKDFExpand implements EDHOC-KDF's underlying HKDF-Expand(PRK, info,
// length).
func HKDFExpand(alg protocol.HashAlg, prk, info []byte, length int) ([]byte, error) {
	fam := hashFamily(alg)
	r := hkdf.Expand(fam.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.Wrap(err, "hkdf expand")
	}
	return out, nil
}

// ECDHGroupFor resolves the concrete Diffie-Hellman group backing a
// suite's ECDH curve choice.
func ECDHGroupFor(curve protocol.ECDHCurve) ECDHGroup {
	switch curve {
	case protocol.ECDHP256:
		return p256Group{}
	default:
		return x25519Group{}
	}
}

// x25519Group implements ECDHGroup over Curve25519. Key generation
// clamps the raw random scalar with filippo.io/edwards25519's
// RFC 8032 clamping (identical bit manipulation to X25519's own
// clamping step), which also reduces it modulo the group order, and
// hands the resulting scalar bytes to golang.org/x/crypto/curve25519's
// constant-time scalar multiply (which clamps its input again).
type x25519Group struct{}

func (x25519Group) PublicKeyLen() int { return 32 }

func (x25519Group) GenerateKey(rnd io.Reader) (priv, pub []byte, err error) {
	var raw [32]byte
	if _, err := io.ReadFull(rnd, raw[:]); err != nil {
		return nil, nil, errors.Wrap(err, "generate x25519 key")
	}
	sc, err := edwards25519.NewScalar().SetBytesWithClamping(raw[:])
	if err != nil {
		return nil, nil, errors.Wrap(err, "clamp x25519 scalar")
	}
	priv = sc.Bytes()
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, errors.Wrap(err, "derive x25519 public key")
	}
	return priv, pub, nil
}

func (x25519Group) SharedSecret(priv, peerPub []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, errors.Wrap(err, "x25519 shared secret")
	}
	return shared, nil
}

// p256Group implements ECDHGroup over NIST P-256 using the stdlib
// crypto/ecdh package.
type p256Group struct{}

func (p256Group) PublicKeyLen() int { return 65 } // uncompressed SEC1 point

func (p256Group) GenerateKey(rnd io.Reader) (priv, pub []byte, err error) {
	key, err := ecdh.P256().GenerateKey(rnd)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate p256 key")
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

func (p256Group) SharedSecret(priv, peerPub []byte) ([]byte, error) {
	curve := ecdh.P256()
	privKey, err := curve.NewPrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "p256 private key")
	}
	pubKey, err := curve.NewPublicKey(peerPub)
	if err != nil {
		return nil, errors.Wrap(err, "p256 public key")
	}
	shared, err := privKey.ECDH(pubKey)
	if err != nil {
		return nil, errors.Wrap(err, "p256 shared secret")
	}
	return shared, nil
}

// AEADFor resolves the concrete AEAD construction backing a suite.
func AEADFor(alg protocol.AEADAlg) (AEADCipher, error) {
	switch alg {
	case protocol.AEADAES128GCM:
		return gcmCipher{keyLen: 16}, nil
	case protocol.AEADAES256GCM:
		return gcmCipher{keyLen: 32}, nil
	case protocol.AEADChaCha20Poly1305:
		return chachaCipher{}, nil
	default:
		return nil, errors.Errorf("unsupported AEAD algorithm %d", alg)
	}
}

type gcmCipher struct{ keyLen int }

func (g gcmCipher) KeyLen() int   { return g.keyLen }
func (g gcmCipher) IVLen() int    { return 12 }
func (g gcmCipher) Overhead() int { return 16 }

func (g gcmCipher) aead(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes cipher")
	}
	return cipher.NewGCM(block)
}

func (g gcmCipher) Seal(key, iv, aad, plaintext []byte) ([]byte, error) {
	a, err := g.aead(key)
	if err != nil {
		return nil, err
	}
	return a.Seal(nil, iv, plaintext, aad), nil
}

func (g gcmCipher) Open(key, iv, aad, ciphertext []byte) ([]byte, error) {
	a, err := g.aead(key)
	if err != nil {
		return nil, err
	}
	pt, err := a.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrAEADAuthenticationFailed, "aead open: %v", err)
	}
	return pt, nil
}

type chachaCipher struct{}

func (chachaCipher) KeyLen() int   { return chacha20poly1305.KeySize }
func (chachaCipher) IVLen() int    { return chacha20poly1305.NonceSize }
func (chachaCipher) Overhead() int { return chacha20poly1305.Overhead }

func (chachaCipher) Seal(key, iv, aad, plaintext []byte) ([]byte, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "chacha20poly1305")
	}
	return a.Seal(nil, iv, plaintext, aad), nil
}

func (chachaCipher) Open(key, iv, aad, ciphertext []byte) ([]byte, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "chacha20poly1305")
	}
	pt, err := a.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrAEADAuthenticationFailed, "aead open: %v", err)
	}
	return pt, nil
}

// SignerFor resolves the concrete signature scheme backing a suite.
func SignerFor(curve protocol.SigCurve) Signer {
	switch curve {
	case protocol.SigP256:
		return ecdsaP256Signer{}
	default:
		return ed25519Signer{}
	}
}

type ed25519Signer struct{}

func (ed25519Signer) Sign(rnd io.Reader, priv, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("ed25519 private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (ed25519Signer) Verify(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// ecdsaP256Signer signs/verifies with ECDSA over P-256, encoding
// signatures as the fixed-length r||s form EDHOC's COSE-inspired
// signature structures use rather than ASN.1 DER. The message is
// pre-hashed with SHA-256, as crypto/ecdsa expects a digest rather than
// the message itself.
type ecdsaP256Signer struct{}

func (ecdsaP256Signer) Sign(rnd io.Reader, priv, msg []byte) ([]byte, error) {
	curve := elliptic.P256()
	size := (curve.Params().BitSize + 7) / 8
	if len(priv) != size {
		return nil, errors.Errorf("p256 private key must be %d bytes, got %d", size, len(priv))
	}
	key := new(ecdsa.PrivateKey)
	key.Curve = curve
	key.D = new(big.Int).SetBytes(priv)
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(priv)

	digest := sha256.Sum256(msg)
	r, s, err := ecdsa.Sign(rnd, key, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "ecdsa sign")
	}
	return rsToFixed(r, s, size), nil
}

func (ecdsaP256Signer) Verify(pub, msg, sig []byte) bool {
	curve := elliptic.P256()
	size := (curve.Params().BitSize + 7) / 8
	if len(sig) != 2*size || len(pub) != 2*size+1 {
		return false
	}
	x := new(big.Int).SetBytes(pub[1 : 1+size])
	y := new(big.Int).SetBytes(pub[1+size:])
	r := new(big.Int).SetBytes(sig[:size])
	s := new(big.Int).SetBytes(sig[size:])

	key := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	digest := sha256.Sum256(msg)
	return ecdsa.Verify(key, digest[:], r, s)
}

// rsToFixed encodes r, s as two big-endian, zero-padded fields of size
// bytes each, concatenated.
func rsToFixed(r, s *big.Int, size int) []byte {
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out
}
