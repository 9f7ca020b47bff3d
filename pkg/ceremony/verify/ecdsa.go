// Copyright 2025 Certen Protocol
//
// secp256k1/ECDSA witness verification using go-ethereum's signing
// primitives, demonstrating that the Verifier capability (spec.md §9) is a
// genuine injection point rather than a single hardwired scheme: unlike
// Ed25519, this scheme recovers the signer's public key from the
// signature itself via ecrecover, so no key registry is needed either.

package verify

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// ECDSAVerifier verifies witness signatures under secp256k1, recovering
// the signer's address via ecrecover and comparing it against the
// claimed AccountID. An AccountID under this scheme is a go-ethereum
// common.Address, zero-padded into the high bytes of the 32-byte
// AccountID.
type ECDSAVerifier struct{}

// NewECDSAVerifier returns a stateless secp256k1 verifier.
func NewECDSAVerifier() *ECDSAVerifier {
	return &ECDSAVerifier{}
}

// Verify implements Verifier. sig must be the 65-byte [R || S || V]
// recoverable signature produced by crypto.Sign over keccak256(msg).
func (ECDSAVerifier) Verify(msg []byte, signer types.AccountID, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	hash := crypto.Keccak256(msg)
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return AccountFromAddress(recovered) == signer
}

// AccountFromAddress derives the AccountID for a go-ethereum address.
func AccountFromAddress(addr common.Address) types.AccountID {
	return types.AccountIDFromBytes(addr.Bytes())
}
