// Copyright 2025 Certen Protocol
//
// BLS12-381 witness verification. Unlike Ed25519, a BLS public key (96
// bytes, a G2 point) is too large to serve as the 32-byte AccountID
// itself, and unlike secp256k1 there is no ecrecover-equivalent to
// reconstruct it from a signature — so this scheme is the one that needs
// an explicit account-to-public-key registry, populated out of band
// (typically from the same registration transaction a participant submits
// to join a ceremony).

package verify

import (
	"sync"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/crypto/bls"
)

// BLSVerifier verifies witness signatures under BLS12-381, looking up each
// claimed signer's public key in an internal registry.
type BLSVerifier struct {
	mu      sync.RWMutex
	pubKeys map[types.AccountID]*bls.PublicKey
}

// NewBLSVerifier returns an empty BLS verifier. Accounts must be
// registered with Register before their signatures can be checked.
func NewBLSVerifier() *BLSVerifier {
	return &BLSVerifier{
		pubKeys: make(map[types.AccountID]*bls.PublicKey),
	}
}

// Register associates account with its BLS public key. pubKeyBytes must be
// a valid, in-subgroup G2 point encoding; an invalid one is rejected
// rather than silently admitted into the registry.
func (v *BLSVerifier) Register(account types.AccountID, pubKeyBytes []byte) error {
	if err := bls.ValidateBLSPublicKeySubgroup(pubKeyBytes); err != nil {
		return err
	}
	pub, err := bls.PublicKeyFromBytes(pubKeyBytes)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pubKeys[account] = pub
	return nil
}

// Verify implements Verifier. It fails closed for an unregistered signer.
func (v *BLSVerifier) Verify(msg []byte, signer types.AccountID, sig []byte) bool {
	if !bls.IsValidSignatureSize(sig) {
		return false
	}

	v.mu.RLock()
	pub, ok := v.pubKeys[signer]
	v.mu.RUnlock()
	if !ok {
		return false
	}

	signature, err := bls.SignatureFromBytes(sig)
	if err != nil {
		return false
	}

	return pub.VerifyWithDomain(signature, msg, bls.DomainWitness)
}
