package edhoc

import (
	"crypto/ed25519"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-edhoc/edhoc/crypto"
	"github.com/go-edhoc/edhoc/protocol"
)

// fixedRand is a deterministic io.Reader for fixture key material, kept
// local to this package's tests so none of the key generation here
// touches the OS random source.
type fixedRand struct{ seed byte }

func (f fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)*11 + f.seed*37 + 5
	}
	return len(p), nil
}

func encodeMessage1(t *testing.T, method protocol.Method, suite protocol.SuiteLabel, gx []byte, ci protocol.ConnID) []byte {
	t.Helper()
	methodB, err := cbor.Marshal(int64(method))
	require.NoError(t, err)
	suiteB, err := cbor.Marshal(int64(suite))
	require.NoError(t, err)
	gxB, err := cbor.Marshal(gx)
	require.NoError(t, err)
	ciB, err := ci.MarshalCBOR()
	require.NoError(t, err)

	var out []byte
	out = append(out, methodB...)
	out = append(out, suiteB...)
	out = append(out, gxB...)
	out = append(out, ciB...)
	return out
}

// simTransport plays the initiator side of one exchange: Rx first
// yields a precomputed msg1, then (once msg2 has been observed via Tx)
// computes msg3 on the fly from the responder's actual msg2, exactly as
// a real peer would.
type simTransport struct {
	t      *testing.T
	msg1   []byte
	onMsg2 func(msg2 []byte) []byte

	step int
	tx   [][]byte
}

func (s *simTransport) Rx(buf []byte) (int, error) {
	var frame []byte
	switch s.step {
	case 0:
		frame = s.msg1
	case 1:
		require.Len(s.t, s.tx, 1, "msg3 requested before responder sent msg2")
		frame = s.onMsg2(s.tx[0])
	default:
		s.t.Fatalf("unexpected Rx call at step %d", s.step)
	}
	s.step++
	n := copy(buf, frame)
	require.Equal(s.t, len(frame), n, "test buffer too small for frame")
	return n, nil
}

func (s *simTransport) Tx(buf []byte) error {
	cp := append([]byte{}, buf...)
	s.tx = append(s.tx, cp)
	return nil
}

// staticDHFixture builds a full MethodStaticStatic/suite-0 exchange: both
// parties authenticate with static-DH keys, so no signature scheme is
// exercised (see signatureFixture below for that branch).
type staticDHFixture struct {
	ctx   *ResponderContext
	peers []PeerCredential
	tr    *simTransport

	th3       []byte
	ciphertext3 []byte
	prk4x3m   []byte
}

func newStaticDHFixture(t *testing.T, ead2, ead3, ead4 []byte, msg4Required bool) *staticDHFixture {
	t.Helper()
	suite, err := protocol.GetSuite(0)
	require.NoError(t, err)
	group := crypto.ECDHGroupFor(suite.ECDH)
	aeadCipher, err := crypto.AEADFor(suite.AEAD)
	require.NoError(t, err)

	skr, pkr, err := group.GenerateKey(fixedRand{seed: 1})
	require.NoError(t, err)
	ski, gi, err := group.GenerateKey(fixedRand{seed: 2})
	require.NoError(t, err)
	x, gx, err := group.GenerateKey(fixedRand{seed: 3})
	require.NoError(t, err)

	idCredR, credR := []byte{0xA0}, []byte{0xA1, 0xA2}
	idCredI, credI := []byte{0xB0}, []byte{0xB1, 0xB2}
	ci := protocol.NewConnInt(7)

	ctx := &ResponderContext{
		SupportedSuites: []protocol.SuiteLabel{0},
		CR:              protocol.NewConnInt(4),
		SKR:             skr,
		PKR:             pkr,
		IDCredR:         idCredR,
		CredR:           credR,
		EAD2:            ead2,
		EAD4:            ead4,
		MSG4Required:    msg4Required,
		Rand:            fixedRand{seed: 9},
	}
	peers := []PeerCredential{
		{IDCredI: idCredI, CredI: credI, GI: gi},
	}

	msg1 := encodeMessage1(t, protocol.MethodStaticStatic, 0, gx, ci)
	_, authR := protocol.MethodStaticStatic.AuthKinds()
	authI, _ := protocol.MethodStaticStatic.AuthKinds()

	f := &staticDHFixture{ctx: ctx, peers: peers}

	f.tr = &simTransport{
		t:    t,
		msg1: msg1,
		onMsg2: func(msg2Buf []byte) []byte {
			m2, _, err := protocol.DecodeMessage2(msg2Buf)
			require.NoError(t, err)

			gY := m2.GYCiphertext2[:suite.EphKeyLen]
			ciphertext2 := m2.GYCiphertext2[suite.EphKeyLen:]

			gxy, err := group.SharedSecret(x, gY)
			require.NoError(t, err)
			th2 := crypto.TH2(suite.Hash, msg1, gY, m2.CR.Bytes())
			prk2e := crypto.PRK2e(suite.Hash, gxy)

			gotIDCredR, signOrMac2, gotEAD2, err := crypto.DecryptMessage2(suite.Hash, prk2e, th2, ciphertext2)
			require.NoError(t, err)
			assert.Equal(t, idCredR, gotIDCredR)
			assert.Equal(t, ead2, gotEAD2)

			prk3e2m, err := crypto.PRKDerive(authR.IsStaticDH(), group, suite.Hash, prk2e, x, pkr)
			require.NoError(t, err)

			_, err = crypto.SignatureOrMAC(crypto.OpVerify, authR.IsStaticDH(), suite, nil, nil,
				nil, pkr, prk3e2m, th2, gotIDCredR, credR, gotEAD2, macLabel2, signOrMac2)
			require.NoError(t, err)

			th3 := crypto.TH3(suite.Hash, th2, ciphertext2)

			prk4x3m, err := crypto.PRKDerive(authI.IsStaticDH(), group, suite.Hash, prk3e2m, ski, gY)
			require.NoError(t, err)

			signOrMac3, err := crypto.SignatureOrMAC(crypto.OpGenerate, authI.IsStaticDH(), suite, nil, fixedRand{seed: 20},
				ski, nil, prk4x3m, th3, idCredI, credI, ead3, macLabel3, nil)
			require.NoError(t, err)

			ciphertext3, err := crypto.CiphertextGen(suite, aeadCipher, prk3e2m, th3, idCredI, signOrMac3, ead3, keyLabel3, ivLabel3)
			require.NoError(t, err)

			f.th3 = th3
			f.ciphertext3 = ciphertext3
			f.prk4x3m = prk4x3m

			msg3Buf, err := protocol.EncodeByteString(ciphertext3)
			require.NoError(t, err)
			return msg3Buf
		},
	}
	return f
}

// signatureFixture builds a full MethodSignSign/suite-0 exchange: both
// parties authenticate by signing the transcript with Ed25519, the
// §8 scenario 1 shape the static-DH fixture above never exercises -
// SignatureOrMAC's signing/verifying branch and PRKDerive's pass-through
// (PRK_3e2m == PRK_2e, PRK_4x3m == PRK_3e2m, since neither auth kind is
// static-DH for method 0).
type signatureFixture struct {
	ctx   *ResponderContext
	peers []PeerCredential
	tr    *simTransport

	th3         []byte
	ciphertext3 []byte
	prk4x3m     []byte
}

func newSignatureFixture(t *testing.T, ead2, ead3, ead4 []byte, msg4Required bool) *signatureFixture {
	t.Helper()
	suite, err := protocol.GetSuite(0)
	require.NoError(t, err)
	group := crypto.ECDHGroupFor(suite.ECDH)
	aeadCipher, err := crypto.AEADFor(suite.AEAD)
	require.NoError(t, err)
	signer := crypto.SignerFor(suite.Sig)

	pkR, skR, err := ed25519.GenerateKey(fixedRand{seed: 31})
	require.NoError(t, err)
	pkI, skI, err := ed25519.GenerateKey(fixedRand{seed: 32})
	require.NoError(t, err)
	x, gx, err := group.GenerateKey(fixedRand{seed: 33})
	require.NoError(t, err)

	idCredR, credR := []byte{0xC0}, []byte{0xC1, 0xC2}
	idCredI, credI := []byte{0xD0}, []byte{0xD1, 0xD2}
	ci := protocol.NewConnInt(8)

	ctx := &ResponderContext{
		SupportedSuites: []protocol.SuiteLabel{0},
		CR:              protocol.NewConnInt(5),
		SKR:             []byte(skR),
		PKR:             []byte(pkR),
		IDCredR:         idCredR,
		CredR:           credR,
		EAD2:            ead2,
		EAD4:            ead4,
		MSG4Required:    msg4Required,
		Rand:            fixedRand{seed: 39},
	}
	peers := []PeerCredential{
		{IDCredI: idCredI, CredI: credI, PKI: []byte(pkI)},
	}

	msg1 := encodeMessage1(t, protocol.MethodSignSign, 0, gx, ci)
	authI, authR := protocol.MethodSignSign.AuthKinds()

	f := &signatureFixture{ctx: ctx, peers: peers}

	f.tr = &simTransport{
		t:    t,
		msg1: msg1,
		onMsg2: func(msg2Buf []byte) []byte {
			m2, _, err := protocol.DecodeMessage2(msg2Buf)
			require.NoError(t, err)

			gY := m2.GYCiphertext2[:suite.EphKeyLen]
			ciphertext2 := m2.GYCiphertext2[suite.EphKeyLen:]

			gxy, err := group.SharedSecret(x, gY)
			require.NoError(t, err)
			th2 := crypto.TH2(suite.Hash, msg1, gY, m2.CR.Bytes())
			prk2e := crypto.PRK2e(suite.Hash, gxy)

			gotIDCredR, signOrMac2, gotEAD2, err := crypto.DecryptMessage2(suite.Hash, prk2e, th2, ciphertext2)
			require.NoError(t, err)
			assert.Equal(t, idCredR, gotIDCredR)
			assert.Equal(t, ead2, gotEAD2)

			prk3e2m, err := crypto.PRKDerive(authR.IsStaticDH(), group, suite.Hash, prk2e, x, gY)
			require.NoError(t, err)

			_, err = crypto.SignatureOrMAC(crypto.OpVerify, authR.IsStaticDH(), suite, signer, nil,
				nil, pkR, prk3e2m, th2, gotIDCredR, credR, gotEAD2, macLabel2, signOrMac2)
			require.NoError(t, err)

			th3 := crypto.TH3(suite.Hash, th2, ciphertext2)

			prk4x3m, err := crypto.PRKDerive(authI.IsStaticDH(), group, suite.Hash, prk3e2m, x, gY)
			require.NoError(t, err)

			signOrMac3, err := crypto.SignatureOrMAC(crypto.OpGenerate, authI.IsStaticDH(), suite, signer, fixedRand{seed: 40},
				skI, nil, prk4x3m, th3, idCredI, credI, ead3, macLabel3, nil)
			require.NoError(t, err)

			ciphertext3, err := crypto.CiphertextGen(suite, aeadCipher, prk3e2m, th3, idCredI, signOrMac3, ead3, keyLabel3, ivLabel3)
			require.NoError(t, err)

			f.th3 = th3
			f.ciphertext3 = ciphertext3
			f.prk4x3m = prk4x3m

			msg3Buf, err := protocol.EncodeByteString(ciphertext3)
			require.NoError(t, err)
			return msg3Buf
		},
	}
	return f
}

func TestRunSignatureMethodRoundTrip(t *testing.T) {
	ead3 := []byte{0x09}
	f := newSignatureFixture(t, nil, ead3, nil, false)

	result, err := Run(f.ctx, f.peers, f.tr, nil)
	require.NoError(t, err)
	assert.Equal(t, ead3, result.EAD3)
	assert.Equal(t, f.prk4x3m, result.PRK4x3m)

	expectedTH4 := crypto.TH4(protocol.HashSHA256, f.th3, f.ciphertext3)
	assert.Equal(t, expectedTH4, result.TH4)
	assert.Len(t, f.tr.tx, 1, "msg4 must not be sent when MSG4Required is false")
}

func TestRunSignatureMethodWithMsg4(t *testing.T) {
	ead4 := []byte{0x44, 0x55}
	f := newSignatureFixture(t, nil, nil, ead4, true)

	result, err := Run(f.ctx, f.peers, f.tr, nil)
	require.NoError(t, err)
	require.Len(t, f.tr.tx, 2, "msg4 must be sent when MSG4Required is true")

	suite, err := protocol.GetSuite(0)
	require.NoError(t, err)
	aeadCipher, err := crypto.AEADFor(suite.AEAD)
	require.NoError(t, err)

	ciphertext4, _, err := protocol.DecodeByteString(f.tr.tx[1])
	require.NoError(t, err)
	assert.Len(t, ciphertext4, len(ead4)+aeadCipher.Overhead())

	decrypted, err := crypto.DecryptEAD4(suite, aeadCipher, result.PRK4x3m, result.TH4, ciphertext4, keyLabel4, ivLabel4)
	require.NoError(t, err)
	assert.Equal(t, ead4, decrypted)
}

func TestRunStaticDHRoundTrip(t *testing.T) {
	ead3 := []byte{0x07}
	f := newStaticDHFixture(t, nil, ead3, nil, false)

	result, err := Run(f.ctx, f.peers, f.tr, nil)
	require.NoError(t, err)
	assert.Equal(t, ead3, result.EAD3)
	assert.Equal(t, f.prk4x3m, result.PRK4x3m)

	expectedTH4 := crypto.TH4(protocol.HashSHA256, f.th3, f.ciphertext3)
	assert.Equal(t, expectedTH4, result.TH4)
	assert.Len(t, f.tr.tx, 1, "msg4 must not be sent when MSG4Required is false")
}

func TestRunStaticDHWithMsg4(t *testing.T) {
	ead4 := []byte{0x11, 0x22, 0x33}
	f := newStaticDHFixture(t, nil, nil, ead4, true)

	result, err := Run(f.ctx, f.peers, f.tr, nil)
	require.NoError(t, err)
	require.Len(t, f.tr.tx, 2, "msg4 must be sent when MSG4Required is true")

	suite, err := protocol.GetSuite(0)
	require.NoError(t, err)
	aeadCipher, err := crypto.AEADFor(suite.AEAD)
	require.NoError(t, err)

	ciphertext4, _, err := protocol.DecodeByteString(f.tr.tx[1])
	require.NoError(t, err)
	assert.Len(t, ciphertext4, len(ead4)+aeadCipher.Overhead())

	decrypted, err := crypto.DecryptEAD4(suite, aeadCipher, result.PRK4x3m, result.TH4, ciphertext4, keyLabel4, ivLabel4)
	require.NoError(t, err)
	assert.Equal(t, ead4, decrypted)
}

func TestRunUnsupportedSuiteSendsWireError(t *testing.T) {
	ci := protocol.NewConnInt(3)
	msg1 := encodeMessage1(t, protocol.MethodStaticStatic, 99, []byte{1, 2, 3, 4}, ci)

	ctx := &ResponderContext{
		SupportedSuites: []protocol.SuiteLabel{0, 1},
		CR:              protocol.NewConnInt(4),
		Rand:            fixedRand{seed: 1},
	}
	tr := &BufferTransport{RxFrames: [][]byte{msg1}}

	_, err := Run(ctx, nil, tr, nil)
	require.Error(t, err)
	assert.Equal(t, protocol.ErrSuiteNotSupported, protocol.CodeOf(err))
	require.Len(t, tr.TxFrames, 1)

	sent, _, err := protocol.DecodeErrorMessage(tr.TxFrames[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.WireErrWrongSelectedCipherSuite, sent.ErrCode)
	assert.Equal(t, []protocol.SuiteLabel{0, 1}, sent.Suites)
}

func TestRunTamperedCiphertext3Fails(t *testing.T) {
	f := newStaticDHFixture(t, nil, nil, nil, true)
	wrapped := f.tr.onMsg2
	f.tr.onMsg2 = func(msg2 []byte) []byte {
		msg3Buf := wrapped(msg2)
		// flip a bit inside the bstr payload, after its CBOR head byte.
		msg3Buf[len(msg3Buf)-1] ^= 0xFF
		return msg3Buf
	}

	_, err := Run(f.ctx, f.peers, f.tr, nil)
	require.Error(t, err)
	assert.Equal(t, protocol.ErrAEADAuthenticationFailed, protocol.CodeOf(err))
	assert.Len(t, f.tr.tx, 1, "no msg4 may be sent once msg3 fails to authenticate")
}

func TestRunUnknownIDCredIFails(t *testing.T) {
	f := newStaticDHFixture(t, nil, nil, nil, false)
	f.peers = []PeerCredential{
		{IDCredI: []byte{0xFF}, CredI: []byte{0xFE}, GI: f.peers[0].GI},
	}

	_, err := Run(f.ctx, f.peers, f.tr, nil)
	require.Error(t, err)
	assert.Equal(t, protocol.ErrCredentialNotFound, protocol.CodeOf(err))
}
