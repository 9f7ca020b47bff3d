package verify

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"testing"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/humanproof-network/ceremonies/pkg/ceremony/types"
	"github.com/humanproof-network/ceremonies/pkg/crypto/bls"
)

func TestEd25519Verifier(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	account := AccountFromEd25519PublicKey(pub)
	msg := []byte("claim of attendance")
	sig := ed25519.Sign(priv, msg)

	v := NewEd25519Verifier()
	if !v.Verify(msg, account, sig) {
		t.Error("valid ed25519 signature should verify")
	}
	if v.Verify([]byte("different message"), account, sig) {
		t.Error("signature should not verify against a different message")
	}
}

func TestECDSAVerifier(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	account := AccountFromAddress(gethcrypto.PubkeyToAddress(key.PublicKey))

	msg := []byte("claim of attendance")
	hash := gethcrypto.Keccak256(msg)
	sig, err := gethcrypto.Sign(hash, key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	v := NewECDSAVerifier()
	if !v.Verify(msg, account, sig) {
		t.Error("valid ECDSA signature should verify")
	}

	var other ecdsa.PrivateKey
	otherKey, _ := gethcrypto.GenerateKey()
	other = *otherKey
	wrongAccount := AccountFromAddress(gethcrypto.PubkeyToAddress(other.PublicKey))
	if v.Verify(msg, wrongAccount, sig) {
		t.Error("signature should not verify against a different account")
	}
}

func TestBLSVerifierRequiresRegistration(t *testing.T) {
	priv, pub, err := bls.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	account := types.AccountIDFromBytes(pub.Bytes()[:32])
	msg := []byte("claim of attendance")
	sig := priv.SignWithDomain(msg, bls.DomainWitness)

	v := NewBLSVerifier()
	if v.Verify(msg, account, sig.Bytes()) {
		t.Error("unregistered BLS signer should fail verification")
	}

	if err := v.Register(account, pub.Bytes()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !v.Verify(msg, account, sig.Bytes()) {
		t.Error("registered BLS signer's valid signature should verify")
	}
	if v.Verify([]byte("different message"), account, sig.Bytes()) {
		t.Error("signature should not verify against a different message")
	}
}
