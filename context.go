package edhoc

import (
	"github.com/go-edhoc/edhoc/crypto"
	"github.com/go-edhoc/edhoc/protocol"
)

// ResponderContext holds everything the caller supplies before Run: the
// per-session configuration plus the responder's own credential
// material. The core treats it as read-only for the duration of a Run
// and zeroises the ephemeral/static private key material it copied
// internally on every exit path.
type ResponderContext struct {
	// SupportedSuites gates which SUITES_I[0] entry is accepted.
	SupportedSuites []protocol.SuiteLabel

	// CR is the responder's own connection identifier, echoed in msg2.
	CR protocol.ConnID

	// SKR is the responder's long-term private key: a signing key if
	// the selected method's responder auth kind is signature, or a
	// static-DH private scalar if static-DH. PKR is its public
	// counterpart, sent to the initiator as part of the responder's
	// credential.
	SKR []byte
	PKR []byte

	// IDCredR/CredR identify and carry the responder's own credential,
	// embedded in ciphertext_2.
	IDCredR []byte
	CredR   []byte

	// EAD2/EAD4 are optional external authorization data the caller
	// wants attached to msg2/msg4.
	EAD2 []byte
	EAD4 []byte

	// MSG4Required forces the optional fourth message.
	MSG4Required bool

	// Rand supplies randomness for ephemeral key generation and
	// signing; defaults to crypto/rand.Reader if nil (set by Run).
	Rand ioReader
}

// PeerCredential is one candidate initiator credential the caller
// supplies; Run selects among these by id_cred_i after decrypting msg3.
type PeerCredential struct {
	IDCredI []byte
	CredI   []byte
	// PKI is the initiator's public signature key, populated for
	// signature-method peers.
	PKI []byte
	// GI is the initiator's static-DH public point, populated for
	// static-DH-method peers.
	GI []byte
}

// RuntimeContext is the per-run scratch state the responder state
// machine threads through its steps: the selected suite plus the
// message buffers and transcript/key-schedule intermediates that only
// exist for the lifetime of one Run call. Nothing here is read by the
// caller; Run exposes only its documented outputs.
type RuntimeContext struct {
	Suite protocol.Suite

	Y  []byte // own ephemeral private key
	GY []byte // own ephemeral public key

	GX []byte // initiator's ephemeral public key, from msg1
	CI protocol.ConnID

	TH2, TH3, TH4 []byte
	PRK2e         []byte
	PRK3e2m       []byte
	PRK4x3m       []byte

	// Msg1Buf/Msg2Buf/Msg3Buf/Msg4Buf are the wire-format bytes of each
	// message, each copied in through CheckedCopy against its
	// Msg*DefaultSize capacity: Msg1Buf/Msg3Buf on receive, Msg2Buf/
	// Msg4Buf before send. Msg4Buf stays nil when MSG4Required is false.
	Msg1Buf []byte
	Msg2Buf []byte
	Msg3Buf []byte
	Msg4Buf []byte
}

// zeroise overwrites the key-schedule intermediates and the ephemeral
// private key in place on every exit path; it is called from a defer
// in Run so it runs on both success and failure.
func (rc *RuntimeContext) zeroise() {
	zero(rc.Y)
	zero(rc.PRK2e)
	zero(rc.PRK3e2m)
	// PRK4x3m and TH4 are Run's documented output and are zeroised by
	// the caller once no longer needed, not here.
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ioReader is the minimal randomness source Run needs; kept as a
// private alias so context.go does not have to import "io" just to
// name the field type in doc comments.
type ioReader = interface {
	Read(p []byte) (n int, err error)
}

// ecdhGroup resolves the ECDH abstraction for this run's suite.
func (rc *RuntimeContext) ecdhGroup() crypto.ECDHGroup {
	return crypto.ECDHGroupFor(rc.Suite.ECDH)
}
