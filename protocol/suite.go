package protocol

// HashAlg, ECDHCurve, AEADAlg and SigCurve identify the algorithm
// families a Suite binds together. Concrete primitive implementations
// (crypto.HashFamily, crypto.ECDHGroup, ...) are wired to these identifiers
// by the crypto package; protocol itself only names them.
type HashAlg uint8

const (
	HashSHA256 HashAlg = iota
	HashSHA384
)

type ECDHCurve uint8

const (
	ECDHX25519 ECDHCurve = iota
	ECDHP256
)

type AEADAlg uint8

// EDHOC's registered suites specify AES-CCM. This implementation backs
// AEADAlg with AES-GCM and ChaCha20-Poly1305 instead: both are AEAD
// constructions with the same Seal/Open contract the key schedule and
// ciphertext module need, and both have well-reviewed Go
// implementations in the corpus this module draws on, whereas no
// AES-CCM implementation appears anywhere in it. The
// two 128-bit-tag variants below stand in for EDHOC's
// AES-CCM-16-64-128 and AES-CCM-16-128-128.
const (
	AEADAES128GCM AEADAlg = iota
	AEADAES256GCM
	AEADChaCha20Poly1305
)

type SigCurve uint8

const (
	SigEd25519 SigCurve = iota
	SigP256
)

// SuiteLabel is the wire value sent in SUITES_I: a single byte per the
// EDHOC draft's registered-suite range.
type SuiteLabel uint8

// Suite is the immutable algorithm tuple a SuiteLabel resolves to.
// Lengths are in bytes.
type Suite struct {
	Label     SuiteLabel
	Hash      HashAlg
	ECDH      ECDHCurve
	AEAD      AEADAlg
	Sig       SigCurve
	HashLen   int
	SigLen    int
	MACLen    int // MAC_length: truncated authenticator length for static-DH methods
	EphKeyLen int // length of an ephemeral public key (G_X, G_Y) on this curve
}

// registry is table-driven. The four entries correspond to EDHOC's four
// originally registered suites; this is a reduced model (one
// AEAD/hash/curve pick per label) sufficient to drive the key schedule
// and ciphertext modules through every method.
var registry = map[SuiteLabel]Suite{
	0: {Label: 0, Hash: HashSHA256, ECDH: ECDHX25519, AEAD: AEADAES128GCM, Sig: SigEd25519, HashLen: 32, SigLen: 64, MACLen: 8, EphKeyLen: 32},
	1: {Label: 1, Hash: HashSHA256, ECDH: ECDHX25519, AEAD: AEADAES256GCM, Sig: SigEd25519, HashLen: 32, SigLen: 64, MACLen: 16, EphKeyLen: 32},
	2: {Label: 2, Hash: HashSHA256, ECDH: ECDHP256, AEAD: AEADAES128GCM, Sig: SigP256, HashLen: 32, SigLen: 64, MACLen: 8, EphKeyLen: 65},
	3: {Label: 3, Hash: HashSHA384, ECDH: ECDHP256, AEAD: AEADChaCha20Poly1305, Sig: SigP256, HashLen: 48, SigLen: 64, MACLen: 16, EphKeyLen: 65},
}

// GetSuite resolves a suite label. Mismatched/unknown labels map to
// ErrSuiteNotSupported.
func GetSuite(label SuiteLabel) (Suite, error) {
	s, ok := registry[label]
	if !ok {
		return Suite{}, Errf(ErrSuiteNotSupported, "suite %d is not supported", label)
	}
	return s, nil
}

// SupportedSuites returns a copy of the responder's configured suite
// list in the caller's order (it is not sorted), used to populate
// SUITES_R on the error path.
func SupportedSuites(labels []SuiteLabel) []SuiteLabel {
	out := make([]SuiteLabel, len(labels))
	copy(out, labels)
	return out
}

// IsSupported reports whether label is present in supported.
func IsSupported(label SuiteLabel, supported []SuiteLabel) bool {
	for _, s := range supported {
		if s == label {
			return true
		}
	}
	return false
}
