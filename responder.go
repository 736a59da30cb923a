// Package edhoc implements the responder side of an EDHOC exchange: a
// straight-line sequence of message parse/authenticate/encode steps
// driven by Run, with the CBOR schema, suite registry and error
// taxonomy in the protocol subpackage and the key schedule,
// signature-or-MAC and ciphertext constructions in the crypto
// subpackage.
package edhoc

import (
	"crypto/rand"

	"github.com/go-kit/log"

	"github.com/go-edhoc/edhoc/crypto"
	"github.com/go-edhoc/edhoc/protocol"
)

const (
	macLabel2 = "MAC_2"
	macLabel3 = "MAC_3"

	keyLabel3, ivLabel3 = "EDHOC_K_3", "EDHOC_IV_3"
	keyLabel4, ivLabel4 = "EDHOC_K_4", "EDHOC_IV_4"
)

// Result carries responder_run's documented outputs: the final PRK and
// transcript hash the caller hands off to OSCORE (or any higher layer),
// plus any external authorization data the initiator attached.
type Result struct {
	PRK4x3m []byte
	TH4     []byte
	EAD1    []byte
	EAD3    []byte

	// ReceivedError is set when msg3 turned out to be an error message
	// rather than ciphertext_3; the run ends with error_message_received
	// and this field surfaces what was received.
	ReceivedError *protocol.ErrorMessage
}

// Run drives one responder session to completion over transport: parse
// msg1, select a suite, derive the key schedule, authenticate and send
// msg2, receive and authenticate msg3, optionally send msg4. It returns
// as soon as any step fails; no further protocol messages are sent
// after an error except the single explicit error-message transmission
// on an unsupported suite. Ephemeral and intermediate key material is
// zeroised on every exit path.
func Run(ctx *ResponderContext, peers []PeerCredential, transport Transport, logger log.Logger) (Result, error) {
	if logger == nil {
		logger = nopLogger
	}
	rnd := ctx.Rand
	if rnd == nil {
		rnd = rand.Reader
	}

	msg1Buf := make([]byte, Msg1DefaultSize)
	n, err := transport.Rx(msg1Buf)
	if err != nil {
		return Result{}, err
	}
	msg1Bytes, err := CheckedCopy(Msg1DefaultSize, msg1Buf[:n])
	if err != nil {
		return Result{}, err
	}

	m1, _, err := protocol.DecodeMessage1(msg1Bytes)
	if err != nil {
		logError(logger, "step", "rx_msg1", "err", err)
		return Result{}, err
	}

	selected := m1.SuitesI[0]
	if !protocol.IsSupported(selected, ctx.SupportedSuites) {
		return Result{}, sendSuiteError(ctx, m1.CI, transport)
	}
	suite, err := protocol.GetSuite(selected)
	if err != nil {
		return Result{}, err
	}

	authI, authR := m1.Method.AuthKinds()

	// gx is copied out of m1's decoded view (which still borrows from
	// msg1Bytes) and bounds-checked against GXMaxSize, so the ephemeral
	// key the key schedule uses below owns its own storage and can't
	// have been grown past any registered suite's curve by a malformed
	// message1.
	gx, err := CheckedCopy(GXMaxSize, m1.GX)
	if err != nil {
		return Result{}, err
	}

	rc := &RuntimeContext{Suite: suite, GX: gx, CI: m1.CI, Msg1Buf: msg1Bytes}
	defer rc.zeroise()

	skR := append([]byte(nil), ctx.SKR...)
	defer zero(skR)

	group := rc.ecdhGroup()
	signer := crypto.SignerFor(suite.Sig)
	aeadCipher, err := crypto.AEADFor(suite.AEAD)
	if err != nil {
		return Result{}, protocol.Errf(protocol.ErrCryptoOperationFailed, "%v", err)
	}

	y, gY, err := group.GenerateKey(rnd)
	if err != nil {
		return Result{}, protocol.Errf(protocol.ErrCryptoOperationFailed, "generate ephemeral key: %v", err)
	}
	rc.Y, rc.GY = y, gY

	gxy, err := group.SharedSecret(y, gx)
	if err != nil {
		return Result{}, protocol.Errf(protocol.ErrCryptoOperationFailed, "ecdh(y, g_x): %v", err)
	}
	defer zero(gxy)

	rc.TH2 = crypto.TH2(suite.Hash, rc.Msg1Buf, gY, ctx.CR.Bytes())
	rc.PRK2e = crypto.PRK2e(suite.Hash, gxy)

	rc.PRK3e2m, err = crypto.PRKDerive(authR.IsStaticDH(), group, suite.Hash, rc.PRK2e, skR, gx)
	if err != nil {
		return Result{}, err
	}

	signOrMac2, err := crypto.SignatureOrMAC(crypto.OpGenerate, authR.IsStaticDH(), suite, signer, rnd,
		skR, nil, rc.PRK3e2m, rc.TH2, ctx.IDCredR, ctx.CredR, ctx.EAD2, macLabel2, nil)
	if err != nil {
		return Result{}, err
	}

	ciphertext2, err := crypto.EncryptMessage2(suite.Hash, rc.PRK2e, rc.TH2, ctx.IDCredR, signOrMac2, ctx.EAD2)
	if err != nil {
		return Result{}, err
	}

	gYCiphertext2 := append(append([]byte{}, gY...), ciphertext2...)
	msg2Buf, err := protocol.EncodeMessage2(protocol.Message2{GYCiphertext2: gYCiphertext2, CR: ctx.CR})
	if err != nil {
		return Result{}, err
	}
	rc.Msg2Buf, err = CheckedCopy(Msg2DefaultSize, msg2Buf)
	if err != nil {
		return Result{}, err
	}
	if err := transport.Tx(rc.Msg2Buf); err != nil {
		return Result{}, err
	}

	msg3Buf := make([]byte, Msg3DefaultSize)
	n3, err := transport.Rx(msg3Buf)
	if err != nil {
		return Result{}, err
	}
	rc.Msg3Buf, err = CheckedCopy(Msg3DefaultSize, msg3Buf[:n3])
	if err != nil {
		return Result{}, err
	}
	ciphertext3, errMsg, err := protocol.TryDecodeMessage3(rc.Msg3Buf)
	if err != nil {
		logError(logger, "step", "rx_msg3", "err", err)
		return Result{}, err
	}
	if errMsg != nil {
		return Result{ReceivedError: errMsg}, protocol.Errf(protocol.ErrMessageReceived, "peer sent error message instead of msg3: %s", errMsg.Text)
	}

	rc.TH3 = crypto.TH3(suite.Hash, rc.TH2, ciphertext2)

	idCredI, signOrMac, ead3, err := crypto.CiphertextDecryptSplit(suite, aeadCipher, rc.PRK3e2m, rc.TH3, ciphertext3, keyLabel3, ivLabel3)
	if err != nil {
		return Result{}, err
	}

	peerCred, pk, gI, err := RetrieveCred(authI.IsStaticDH(), peers, idCredI)
	if err != nil {
		return Result{}, err
	}

	rc.PRK4x3m, err = crypto.PRKDerive(authI.IsStaticDH(), group, suite.Hash, rc.PRK3e2m, rc.Y, gI)
	if err != nil {
		return Result{}, err
	}

	if _, err := crypto.SignatureOrMAC(crypto.OpVerify, authI.IsStaticDH(), suite, signer, rnd,
		nil, pk, rc.PRK4x3m, rc.TH3, idCredI, peerCred.CredI, ead3, macLabel3, signOrMac); err != nil {
		zero(rc.PRK4x3m)
		return Result{}, err
	}

	rc.TH4 = crypto.TH4(suite.Hash, rc.TH3, ciphertext3)

	if ctx.MSG4Required {
		ciphertext4, err := crypto.EncryptEAD4(suite, aeadCipher, rc.PRK4x3m, rc.TH4, ctx.EAD4, keyLabel4, ivLabel4)
		if err != nil {
			return Result{}, err
		}
		msg4Buf, err := protocol.EncodeByteString(ciphertext4)
		if err != nil {
			return Result{}, err
		}
		rc.Msg4Buf, err = CheckedCopy(Msg4DefaultSize, msg4Buf)
		if err != nil {
			return Result{}, err
		}
		if err := transport.Tx(rc.Msg4Buf); err != nil {
			return Result{}, err
		}
	}

	logDebug(logger, "step", "done", "method", m1.Method, "suite", selected)
	// For a signature-authenticated initiator PRK4x3m shares storage with
	// PRK3e2m/PRK2e, which the deferred zeroise wipes; hand out a copy.
	prk4x3m := append([]byte(nil), rc.PRK4x3m...)
	return Result{PRK4x3m: prk4x3m, TH4: rc.TH4, EAD1: m1.EAD1, EAD3: ead3}, nil
}

// sendSuiteError implements the unsupported-suite path: send an error
// message carrying the responder's supported suites, then return a
// suite_not_supported error. The error taxonomy has no separate
// error_message_sent code; the error's message notes that the error
// message was sent.
func sendSuiteError(ctx *ResponderContext, ci protocol.ConnID, transport Transport) error {
	errMsg := protocol.ErrorMessage{
		Cx:      ci,
		ErrCode: protocol.WireErrWrongSelectedCipherSuite,
		Suites:  protocol.SupportedSuites(ctx.SupportedSuites),
	}
	buf, err := protocol.EncodeErrorMessage(errMsg)
	if err != nil {
		return err
	}
	if err := transport.Tx(buf); err != nil {
		return err
	}
	return protocol.Errf(protocol.ErrSuiteNotSupported, "suite not in %v; error message sent", ctx.SupportedSuites)
}
