package crypto

import "crypto/ed25519"

// genEd25519KeyPair derives a deterministic Ed25519 key pair from rnd,
// for tests that need a signer/verifier pair without touching the OS
// random source.
func genEd25519KeyPair(rnd fixedRand) (sk, pk []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rnd)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// fixedRand is a deterministic io.Reader for tests that need
// reproducible "random" key material without pulling entropy from the
// OS. Two distinct seeds must never collide in the bytes they produce.
type fixedRand struct {
	seed byte
}

func (f fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)*7 + f.seed*31 + 13
	}
	return len(p), nil
}
