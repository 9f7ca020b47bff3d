package bls

import "testing"

func TestGenerateKeyPairAndSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	message := []byte("ceremony witness claim")
	sig := priv.Sign(message)

	if !pub.Verify(sig, message) {
		t.Error("signature should verify against matching public key")
	}
	if pub.Verify(sig, []byte("different message")) {
		t.Error("signature should not verify against a different message")
	}
}

func TestGenerateKeyPairFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	priv1, pub1, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("GenerateKeyPairFromSeed: %v", err)
	}
	priv2, pub2, err := GenerateKeyPairFromSeed(seed)
	if err != nil {
		t.Fatalf("GenerateKeyPairFromSeed: %v", err)
	}

	if priv1.Hex() != priv2.Hex() {
		t.Error("same seed should produce the same private key")
	}
	if !pub1.Equal(pub2) {
		t.Error("same seed should produce the same public key")
	}
}

func TestSignWithDomainSeparation(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	message := []byte("claim of attendance")
	sig := priv.SignWithDomain(message, DomainWitness)

	if !pub.VerifyWithDomain(sig, message, DomainWitness) {
		t.Error("signature should verify under the signing domain")
	}
	if pub.VerifyWithDomain(sig, message, "OTHER_DOMAIN_V1") {
		t.Error("signature should not verify under a different domain")
	}
}

func TestPublicKeyAndSignatureRoundTrip(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	pubBytes := pub.Bytes()
	if len(pubBytes) != PublicKeySize {
		t.Errorf("public key size = %d, want %d", len(pubBytes), PublicKeySize)
	}
	pub2, err := PublicKeyFromBytes(pubBytes)
	if err != nil {
		t.Fatalf("PublicKeyFromBytes: %v", err)
	}
	if !pub.Equal(pub2) {
		t.Error("round-tripped public key should equal original")
	}

	sig := priv.Sign([]byte("round trip"))
	sigBytes := sig.Bytes()
	if len(sigBytes) != SignatureSize {
		t.Errorf("signature size = %d, want %d", len(sigBytes), SignatureSize)
	}
	sig2, err := SignatureFromBytes(sigBytes)
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	if !pub.Verify(sig2, []byte("round trip")) {
		t.Error("round-tripped signature should verify")
	}
}

func TestValidateBLSPublicKeySubgroup(t *testing.T) {
	_, pub, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	if err := ValidateBLSPublicKeySubgroup(pub.Bytes()); err != nil {
		t.Errorf("valid public key rejected: %v", err)
	}

	zero := make([]byte, PublicKeySize)
	if err := ValidateBLSPublicKeySubgroup(zero); err == nil {
		t.Error("zero-filled bytes should not validate as a public key")
	}
}

func TestPrivateKeyFromBytesRejectsWrongSize(t *testing.T) {
	if _, err := PrivateKeyFromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for undersized private key bytes")
	}
}
