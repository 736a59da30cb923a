package crypto

import "github.com/go-edhoc/edhoc/protocol"

// Transcript accumulates the running transcript hashes TH_2, TH_3 and
// TH_4: each TH is H(prior_input) for a hash-algorithm-specific
// concatenation of the previous transcript hash with the message bytes
// that followed it.

// TH2 computes TH_2 = H( msg1 | g_y | C_R ).
func TH2(alg protocol.HashAlg, message1, gY, cR []byte) []byte {
	buf := make([]byte, 0, len(message1)+len(gY)+len(cR))
	buf = append(buf, message1...)
	buf = append(buf, gY...)
	buf = append(buf, cR...)
	return Hash(alg, buf)
}

// TH3 computes TH_3 = H( TH_2 | CIPHERTEXT_2 ).
func TH3(alg protocol.HashAlg, th2, ciphertext2 []byte) []byte {
	buf := make([]byte, 0, len(th2)+len(ciphertext2))
	buf = append(buf, th2...)
	buf = append(buf, ciphertext2...)
	return Hash(alg, buf)
}

// TH4 computes TH_4 = H( TH_3 | CIPHERTEXT_3 ).
func TH4(alg protocol.HashAlg, th3, ciphertext3 []byte) []byte {
	buf := make([]byte, 0, len(th3)+len(ciphertext3))
	buf = append(buf, th3...)
	buf = append(buf, ciphertext3...)
	return Hash(alg, buf)
}
