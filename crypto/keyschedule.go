package crypto

import "github.com/go-edhoc/edhoc/protocol"

// PRK2e computes PRK_2e = HKDF-Extract(salt=nil, ikm=g_xy).
func PRK2e(alg protocol.HashAlg, gXY []byte) []byte {
	return HKDFExtract(alg, nil, gXY)
}

// PRKDerive implements prk_derive(is_static_dh, suite, PRK_in, dh_pub,
// dh_priv): signature methods pass PRK_in straight through, static-DH
// methods fold in a fresh ECDH secret. The responder calls this twice,
// once for PRK_3e2m and once for PRK_4x3m, each parameterised by its
// own static_dh_i/static_dh_r side.
func PRKDerive(isStaticDH bool, group ECDHGroup, alg protocol.HashAlg, prkIn, dhPriv, dhPub []byte) ([]byte, error) {
	if !isStaticDH {
		return prkIn, nil
	}
	secret, err := group.SharedSecret(dhPriv, dhPub)
	if err != nil {
		return nil, protocol.Errf(protocol.ErrCryptoOperationFailed, "static-dh shared secret: %v", err)
	}
	return HKDFExtract(alg, prkIn, secret), nil
}
