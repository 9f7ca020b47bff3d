// Copyright 2025 Certen Protocol
//
// Ed25519 witness verification — the ceremony module's default attestation
// scheme, adapted from the validator's Ed25519 attestation strategy.

package verify

import (
	"crypto/ed25519"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
)

// Ed25519Verifier verifies witness signatures where an AccountID IS the
// raw 32-byte Ed25519 public key. Unlike the ECDSA scheme, Ed25519 offers
// no way to recover a public key from a signature, so there is no
// registry to maintain here: the account identity carries its own key.
type Ed25519Verifier struct{}

// NewEd25519Verifier returns a stateless Ed25519 verifier.
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// Verify implements Verifier.
func (Ed25519Verifier) Verify(msg []byte, signer types.AccountID, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig)
}

// AccountFromEd25519PublicKey derives the AccountID for an Ed25519
// public key — the identity and the key are the same bytes.
func AccountFromEd25519PublicKey(pub ed25519.PublicKey) types.AccountID {
	return types.AccountIDFromBytes(pub)
}
