package edhoc

import (
	"bytes"

	"github.com/go-edhoc/edhoc/protocol"
)

// RetrieveCred does a linear search of the caller-supplied credential
// set by id_cred_i. Not found maps to credential_not_found. The
// returned public key is populated for signature peers, the static-DH
// point for static-DH peers - exactly one of the two, selected by
// isStaticDHPeer.
func RetrieveCred(isStaticDHPeer bool, peers []PeerCredential, id []byte) (cred PeerCredential, pk, gI []byte, err error) {
	for _, p := range peers {
		if bytes.Equal(p.IDCredI, id) {
			if isStaticDHPeer {
				return p, nil, p.GI, nil
			}
			return p, p.PKI, nil, nil
		}
	}
	return PeerCredential{}, nil, nil, protocol.Errf(protocol.ErrCredentialNotFound, "no peer credential for id_cred_i")
}
